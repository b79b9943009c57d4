// Package message encrypts and decrypts channel and DM messages.
//
// Channel messages use the channel's current group key; DM messages use the
// session key. Every message gets a fresh UUID which the per-message key is
// bound to.
package message
