// Package channel owns channel group keys on this device.
//
// Every key version is stored under its own record, and a separate pointer
// record names the current version. Versions only move forward. Older versions
// stay available for reading history.
//
// Sends and rotations on one channel are serialized through WithSendLock so a
// message is never encrypted under a version whose shares have not been
// published.
package channel
