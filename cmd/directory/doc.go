// Command directory serves the sealroom key directory over HTTP.
//
// It stores published identities, signed prekeys, channel member lists and
// sealed channel key shares. It never sees plaintext or private keys.
//
// Storage is selected with store: memory (lost on exit), redis or postgres.
// Requests under /v1 are rate limited per caller and counted in the
// Prometheus metrics served at /metrics. See package internal/directory for
// the routes.
//
// Settings come from flags, SEALROOM_* environment variables and an optional
// YAML file, in that order of precedence. The default listen address is :8080.
package main
