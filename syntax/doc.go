// Package syntax holds the source-level vocabulary shared by the bridge and
// the compiler engine: file identities, interned spans, sources with line
// indexes, syntax node kinds and trees, and the flattened tree encoding
// handed to the host.
//
// A flattened tree is a pre-order list of (Mark, offset) entries. Each node
// contributes a start mark at its first byte and an end mark after its last
// byte; error nodes contribute an error mark indexing a side table of
// messages instead of a start mark. Across the boundary each entry is packed
// into an int64 as mark<<32 | offset, where a start mark is the kind number
// (0 to 133), an end mark is 134 and error mark i is 135+i.
package syntax
