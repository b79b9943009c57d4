// Package commands defines the sealroom CLI and wires dependencies for subcommands.
//
// Commands
//
//   - init             Create, restore or derive the local identity
//   - fingerprint      Print the identity fingerprint
//   - export-mnemonic  Print the stored recovery phrase
//   - register         Publish the identity and a fresh signed prekey
//   - channel          Manage channel keys and seal or open channel messages
//   - dm               Seal or open direct messages
//   - reset            Wipe every locally held secret
//
// Sealed messages are printed as one JSON object per line ({"id", "record"}),
// and the read commands consume the same lines on stdin.
//
// # Implementation
//
// The root command loads config with viper (flags over SEALROOM_* env over
// the YAML file over defaults) and builds the dependency graph before any
// subcommand runs.
package commands
