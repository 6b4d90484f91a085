// Package config loads docbridge.toml.
//
//	[world]
//	root = "."
//	main = "main.typ"
//	fixed_time = "2024-03-10T12:00:00Z"
//	auto_load_registry = true
//
//	[packages]
//	registry_url = "https://packages.typst.org"
//	cache_dir = ".cache/packages"
//	timeout = "30s"
//
//	[fonts]
//	dirs = ["fonts"]
//	include_system = false
//
//	[boundary]
//	codec = "msgpack"
//	memory_limit_pages = 1024
//
//	[log]
//	level = "debug"
package config
