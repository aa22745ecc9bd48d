// Package config loads the TOML configuration of the signals tooling.
//
// Settings are resolved in three steps: built-in defaults, then the
// config file, then SIGNALS_* environment variables. A file looks like:
//
//	[log]
//	level = "debug"
//	format = "json"
//
//	[watch]
//	debounce = "250ms"
//
//	[[executor]]
//	name = "ui"
//	kind = "serial"
//
//	[[executor]]
//	name = "io"
//	kind = "concurrent"
//	workers = 4
//	queue_size = 512
//
// Declaring any [[executor]] table replaces the default executor list.
package config
