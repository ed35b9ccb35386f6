// Package commands defines the vesper CLI and wires dependencies for subcommands.
//
// Commands
//
//   - init         Create the local identity and registration id
//   - fingerprint  Print the identity fingerprint
//   - prekeys      Generate a prekey batch and print the publishable bundle
//   - sessions     Show the stored session state for a peer address
//
// # Implementation
//
// The root command builds a dependency graph (storage backend, services)
// before any subcommand runs, so handlers share one app context.
package commands
