// Package envelope is the per-message cipher shared by channels and DMs.
//
// Every message gets its own key, HKDF(groupOrSessionKey, "message:"+id),
// so two messages under one group key never share a derived key and a
// ciphertext cannot be replayed under another message id.
//
// The wire form is a JSON object tagged by "v":
//
//	{"v":1,"ct":"<b64>","iv":"<b64>","kv":2,"ek":"<b64>"}
//
// "ek" is present only on the first message of a DM session. A new protocol
// version is a new Envelope implementation, never a new optional field on V1.
package envelope
