// Package vision talks to the local vision/LLM endpoint that enriches posts.
//
// The endpoint speaks the OpenAI chat-completions dialect (LM Studio serves
// it on localhost); requests combine the task instructions, the post's text
// context under a deterministic budget, and the cached media as inline data
// URLs. Responses are free-form text expected to contain one JSON verdict
// document, decoded through an ordered chain of strategies that tolerates the
// markup wrappers small local models like to add.
//
// Transport failures are retried within the configured budget; a response
// that defeats every decode strategy is terminal for the item and keeps the
// raw text for offline inspection. A malformed verdict is never coerced into
// an empty one, because "nothing detected" is itself a meaningful result.
package vision
