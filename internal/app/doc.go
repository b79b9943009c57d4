// Package app wires application dependencies for the CLI and the directory.
//
// It builds the key store, the directory client and the high-level services
// from config, exposing them via the Wire struct for commands to use.
package app
