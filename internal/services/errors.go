package services

import (
	"errors"
	"fmt"
	"strings"

	"optic/internal/checkpoint"
)

var (
	// ErrTransientNetwork covers timeouts, connection resets, 429s, and
	// 5xx-class responses. Callers retry these within their budget.
	ErrTransientNetwork = errors.New("transient network failure")
	// ErrPermanentRequest covers 4xx-class responses and malformed requests.
	// Never retried.
	ErrPermanentRequest = errors.New("permanent request failure")
	// ErrResponseDecode means every decode strategy failed on a response that
	// was otherwise delivered intact.
	ErrResponseDecode = errors.New("response decode failure")
	// ErrRetryExhausted tags a transient failure that persisted past the
	// retry budget.
	ErrRetryExhausted = errors.New("retry budget exhausted")
	// ErrConfiguration covers unusable configuration or environment, fatal to
	// the whole run rather than to a single item.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that carries component and operation context
// while tagging it with the provided marker for later classification. The
// marker should be one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransientNetwork
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether the error chain is tagged transient. Permanent
// request failures and decode failures stop a retry loop immediately.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermanentRequest) || errors.Is(err, ErrResponseDecode) {
		return false
	}
	return errors.Is(err, ErrTransientNetwork)
}

// FailureStatus maps an analysis-stage error to the terminal outcome recorded
// for the item. Decode failures get their own category; everything else that
// survives the retry loop lands in exhausted_retries with the cause preserved
// in the outcome's error text.
func FailureStatus(err error) checkpoint.Status {
	if errors.Is(err, ErrResponseDecode) {
		return checkpoint.StatusParseFailed
	}
	return checkpoint.StatusExhaustedRetries
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
