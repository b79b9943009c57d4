// Package directory is the key directory: the server that holds public
// identity keys, signed prekeys, channel membership and sealed channel key
// shares, together with the HTTP client the devices use to reach it.
//
// # Routes
//
//	PUT  /v1/identity/{user}                 publish identity bundle
//	PUT  /v1/prekey/{user}                   publish signed prekey
//	GET  /v1/prekey/{user}                   fetch full prekey bundle
//	PUT  /v1/channels/{channel}/members      replace member list
//	GET  /v1/channels/{channel}/members      members with identity keys
//	POST /v1/channels/{channel}/shares       upsert key shares
//	GET  /v1/channels/{channel}/shares/me    caller's share (?version=N)
//	GET  /metrics                            prometheus
//
// The caller's user id travels in the X-User-ID header. Authenticating it is
// the job of whatever fronts the directory.
//
// # Errors
//
// Failures are JSON bodies of the form {"kind":"KEY_NOT_FOUND","message":"..."}
// so the client can rebuild the same domain error kind on its side.
//
// # Storage
//
// Store has memory, Redis and Postgres implementations. Share writes are
// keyed by (channel, user, version) and never touch another version.
package directory
