// Package docbridge lets a host runtime drive a document compiler across a
// hard in-process boundary.
//
// The bridge solves three problems at once: moving byte buffers between the
// two sides with exact ownership, caching loaded files across repeated
// compilations without serving stale data, and turning rich compiler
// diagnostics into a serializable form the host can present.
//
// # Architecture Overview
//
//	docbridge/         Root package with the boundary Memory and Allocator interfaces
//	├── boundary/      Ownership-transfer buffers in a WASM linear memory arena
//	├── envelope/      Ticketed result envelopes, release registry, wire codecs
//	├── errors/        Structured errors and host-facing exception records
//	├── resource/      Handle tables for worlds, libraries and tickets
//	├── cache/         Fingerprint-invalidated per-file cache cells
//	├── syntax/        File identities, spans, sources and the syntax flattener
//	├── diag/          Diagnostics, file errors and the span resolver
//	├── compiler/      Interfaces the compiler engine is consumed through
//	│   └── mini/      Small reference engine used by tests and the CLI
//	├── world/         The engine-facing world: files, fonts, clock
//	├── fonts/         Immutable font catalog
//	├── packages/      Package storage and registry downloads
//	├── host/          Host-side helpers for serving files across the boundary
//	├── config/        TOML configuration
//	└── bridge/        Entry points: compile, query, format, parse, eval, lifecycle
//
// # Quick Start
//
//	b, err := bridge.New(ctx, bridge.Options{Engine: mini.New()})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Close(ctx)
//
//	lib, err := b.OpenLibrary(0, "(:)")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	h, err := b.OpenWorld(bridge.WorldSpec{
//	    Library:  lib,
//	    MainPath: "/main.typ",
//	    Overlays: map[string][]byte{"/main.typ": []byte("Hello")},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	env, err := b.CompileSVG(h, 0, 1)
//
// # Ownership
//
// Every BufferHandle is owned by exactly one side. Handles handed to the host
// must come back through the bridge's free functions; handles handed to the
// bridge are consumed by it. A handle that is only inspected is borrowed and
// stays valid for its owner.
//
// # Thread Safety
//
// A Bridge and its worlds may be used from several goroutines. Each world
// serializes access to its file cache with a mutex; host callbacks run on the
// calling goroutine and block it for their full duration.
package docbridge
