// Package cmd provides the command-line interface for spyrun.
//
// spyrun has a single command surface: the root command loads a TOML
// configuration file and runs the supervisor until one of the
// configured sentinel files signals shutdown.
//
// # Command Examples
//
//	// Run with the default spyrun.toml in the current directory
//	spyrun
//
//	// Run with an explicit config path
//	spyrun --config ./configs/prod.toml
//
// # Configuration
//
// See the top-level TOML schema documented in internal/config for the
// full set of `[log]`, `[cfg]`, `[init]`, `[[spys]]`, and `[vars]`
// sections.
//
// # Error Handling
//
// A configuration load failure is fatal: spyrun retries once against
// a sibling `_backup` file, and if that also fails, exits non-zero
// after writing a terse message to error.log beside the executable.
package cmd
