// Package extract runs content through a structured extraction pipeline.
//
// A view extractor implements [Hooks]: it validates and preprocesses the
// [Content], calls a generator, and converts the raw result into its final
// type. [Pipeline] drives those hooks in blocking mode (Process) or streaming
// mode (ProcessStream).
//
// In streaming mode the generator emits the growing JSON document. An
// [Assembler] repairs each prefix into a valid document, wraps tracked fields
// in a {"value", "state"} pair ([StreamState]) and applies the defaults
// declared by a [Schema] so collections are never null. The last chunk of a
// stream has every tracked field in a terminal state.
package extract
