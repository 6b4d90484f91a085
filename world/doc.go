// Package world implements compiler.World on top of host callbacks.
//
// Project files and files of non-registry packages are requested from the
// host through a FileCallback that exchanges envelopes over a
// boundary.Arena. Files of the preview namespace can instead be served
// from a packages.Store. Every file is cached in a cache.Slot; Reset starts
// a new pass in which each file is loaded again but only re-decoded when
// its content changed.
package world
