// Package bridge is the boundary surface a host drives the compiler through.
//
// A Bridge owns the transfer arena, the ticket release registry and a
// handle table of worlds and libraries. Entry points take handles and
// buffers and return envelopes:
//
//	lib := b.CreateStdlib(0, inputs)           // Excepted
//	w := b.NewWorld(lib.Handle, main, files, now, 1)
//	env, err := b.CompileSVG(w.Handle, 0, -1)  // Envelope<SVGOutcome>
//	out, err := envelope.Unpack[bridge.SVGOutcome](b.Arena(), b.Codec(), nil, env)
//
// Expected failures such as missing files or compile errors are values in
// the outcome. Unexpected failures such as unknown handles, consumed
// buffers or engine panics are *errors.Exception; NewWorld and CreateStdlib
// also carry them in the Excepted comment.
//
// Every call that uses a world borrows it from the table for its duration,
// so FreeWorld fails while the world is in use.
package bridge
