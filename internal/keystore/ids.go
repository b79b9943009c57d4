package keystore

import (
	"fmt"

	"sealroom/internal/domain"
)

const (
	IdentityKeysID = "identity-keys"
	MnemonicID     = "mnemonic"
	PrekeySecretID = "prekey-secret"

	canaryID = "__device-canary"
)

// ChannelVersionID is the record holding one version of a channel key.
func ChannelVersionID(channel domain.ChannelID, version int) string {
	return fmt.Sprintf("channel:%s:v%d", channel, version)
}

// ChannelCurrentID is the record holding the channel's current key version.
func ChannelCurrentID(channel domain.ChannelID) string {
	return fmt.Sprintf("channel:%s:current", channel)
}

// DMChannelID is the record holding the DM session for a DM channel.
func DMChannelID(channel domain.ChannelID) string {
	return fmt.Sprintf("dm:%s", channel)
}

// DMPeerID mirrors the DM session under the peer's user id.
func DMPeerID(peer domain.UserID) string {
	return fmt.Sprintf("dm-peer:%s", peer)
}
