// Package genx is the generative backend layer used by the view extractors.
//
// A [Generator] turns a [ModelContext] (system prompts plus user messages that
// may carry text and images) into a JSON document shaped by a [FuncTool]
// schema. It does this in two modes:
//
//   - Invoke returns the complete document as a [FuncCall].
//   - InvokeStream returns a [Stream] whose chunks carry the JSON text as it
//     is generated. The concatenation of all Text parts is the document.
//
// Streams terminate with a [State] error. A normal end unwraps to [ErrDone];
// truncation, refusal and backend failures are reported with their own
// status so callers can tell them apart.
//
// Two implementations are provided: [OpenAIGenerator] for OpenAI compatible
// chat completion APIs and [GeminiGenerator] for Google Gemini. Both use
// structured output (a response JSON schema) when available.
//
// # Example
//
//	var mcb genx.ModelContextBuilder
//	mcb.PromptText("knowledge", prompt)
//	mcb.UserText("input", text)
//	_, call, err := gen.Invoke(ctx, "openai/gpt-4o", mcb.Build(), tool)
package genx
