package domain

import (
	interfaces "sealroom/internal/domain/interfaces"
	types "sealroom/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	UserID          = types.UserID
	ChannelID       = types.ChannelID
	MessageID       = types.MessageID
	Fingerprint     = types.Fingerprint
	X25519Public    = types.X25519Public
	X25519Private   = types.X25519Private
	Ed25519Public   = types.Ed25519Public
	Ed25519Private  = types.Ed25519Private
	SymmetricKey    = types.SymmetricKey
	X25519KeyPair   = types.X25519KeyPair
	Ed25519KeyPair  = types.Ed25519KeyPair
	Identity        = types.Identity
	PublicKeyBundle = types.PublicKeyBundle
	PrekeyBundle    = types.PrekeyBundle
	SignedPrekey    = types.SignedPrekey
	ChannelKey      = types.ChannelKey
	ChannelKeyShare = types.ChannelKeyShare
	Member          = types.Member
	DMSession       = types.DMSession
	MessageRecord   = types.MessageRecord
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	Directory       = interfaces.Directory
	SecretStore     = interfaces.SecretStore
	IdentityService = interfaces.IdentityService
	PrekeyService   = interfaces.PrekeyService
	ChannelService  = interfaces.ChannelService
	SessionService  = interfaces.SessionService
	MessageService  = interfaces.MessageService
)
