// Package app wires storage backends and services into a ready-to-use
// dependency graph for the CLI.
package app
