package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"sealroom/internal/config"
	"sealroom/internal/directory"
	"sealroom/internal/domain"
	"sealroom/internal/keystore"
	channelsvc "sealroom/internal/services/channel"
	identitysvc "sealroom/internal/services/identity"
	messagesvc "sealroom/internal/services/message"
	prekeysvc "sealroom/internal/services/prekey"
	sessionsvc "sealroom/internal/services/session"
)

// MemberDirectory is a Directory that can also replace a channel's member list.
type MemberDirectory interface {
	domain.Directory
	SetChannelMembers(ctx context.Context, channel domain.ChannelID, users []domain.UserID) error
}

// Wire bundles the store, directory and services of one device.
type Wire struct {
	User      domain.UserID
	Store     domain.SecretStore
	Directory MemberDirectory
	Identity  *identitysvc.Service
	Prekeys   *prekeysvc.Service
	Channels  *channelsvc.Service
	Sessions  *sessionsvc.Service
	Messages  *messagesvc.Service
	Log       *slog.Logger
}

// Assemble builds the services over an existing store and directory.
func Assemble(user domain.UserID, store domain.SecretStore, dir MemberDirectory, log *slog.Logger) *Wire {
	ids := identitysvc.New(store, dir, log)
	prekeys := prekeysvc.New(ids, store, dir, log)
	channels := channelsvc.New(user, ids, store, dir, log)
	sessions := sessionsvc.New(ids, prekeys, store, dir, log)
	return &Wire{
		User:      user,
		Store:     store,
		Directory: dir,
		Identity:  ids,
		Prekeys:   prekeys,
		Channels:  channels,
		Sessions:  sessions,
		Messages:  messagesvc.New(channels, sessions, log),
		Log:       log,
	}
}

// NewWire constructs the dependency graph from cfg: a file-backed key store
// under cfg.Home and the HTTP directory client.
func NewWire(cfg config.Client, log *slog.Logger) (*Wire, error) {
	if cfg.UserID == "" {
		return nil, errors.New("user_id is not configured")
	}
	store := keystore.New(keystore.NewFileBackend(cfg.Home), DeviceKeySource(cfg), log)
	client := directory.NewClient(cfg.DirectoryURL, domain.UserID(cfg.UserID), &http.Client{Timeout: cfg.HTTPTimeout}, log)
	return Assemble(domain.UserID(cfg.UserID), store, client, log), nil
}

// Register publishes the identity and a fresh signed prekey.
func (w *Wire) Register(ctx context.Context) (domain.PrekeyBundle, error) {
	if err := w.Identity.Publish(ctx, w.User); err != nil {
		return domain.PrekeyBundle{}, err
	}
	return w.Prekeys.Rotate(ctx, w.User)
}
