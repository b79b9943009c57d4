package types

// UserID identifies an account on the directory.
type UserID string

// String returns the string form of the user id.
func (u UserID) String() string { return string(u) }

// ChannelID identifies a group channel or a DM channel.
type ChannelID string

// String returns the string form of the channel id.
func (id ChannelID) String() string { return string(id) }

// MessageID identifies a single message. Message keys are bound to it.
type MessageID string

// String returns the string form of the message id.
func (id MessageID) String() string { return string(id) }

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }
