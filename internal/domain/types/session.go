package types

// DMSession holds the X3DH-derived shared key for one DM channel.
//
// PendingEphemeral is set on the initiating side until the first envelope,
// which must carry it, has been produced.
type DMSession struct {
	ChannelID        ChannelID     `json:"channelId"`
	PeerUserID       UserID        `json:"peerUserId"`
	SharedKey        SymmetricKey  `json:"sharedKey"`
	Version          int           `json:"version"`
	Initiator        bool          `json:"initiator"`
	PendingEphemeral *X25519Public `json:"pendingEphemeral,omitempty"`
	CreatedUTC       int64         `json:"createdUtc"`
}
