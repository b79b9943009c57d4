package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"sealroom/internal/domain"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS identities (
		user_id             TEXT PRIMARY KEY,
		identity_public_key BYTEA NOT NULL,
		signing_public_key  BYTEA NOT NULL,
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS prekeys (
		user_id          TEXT PRIMARY KEY REFERENCES identities(user_id) ON DELETE CASCADE,
		prekey_public    BYTEA NOT NULL,
		prekey_signature BYTEA NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS channel_members (
		channel_id TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		PRIMARY KEY (channel_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS channel_key_shares (
		channel_id        TEXT NOT NULL,
		user_id           TEXT NOT NULL,
		key_version       INTEGER NOT NULL CHECK (key_version >= 1),
		encrypted_key     BYTEA NOT NULL,
		sender_public_key BYTEA NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (channel_id, user_id, key_version)
	)`,
}

// PostgresStore keeps the directory in Postgres.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects to dsn and applies the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	s := &PostgresStore{db: db}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates missing tables. It is safe to run repeatedly.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) PutIdentity(ctx context.Context, user domain.UserID, bundle domain.PublicKeyBundle) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO identities (user_id, identity_public_key, signing_public_key, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id) DO UPDATE
		SET identity_public_key = $2, signing_public_key = $3, updated_at = now()`,
		string(user), bundle.IdentityPublicKey.Slice(), bundle.SigningPublicKey.Slice())
	return err
}

func (s *PostgresStore) PutPrekey(ctx context.Context, user domain.UserID, prekey domain.SignedPrekey) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO prekeys (user_id, prekey_public, prekey_signature, updated_at)
		SELECT user_id, $2, $3, now() FROM identities WHERE user_id = $1
		ON CONFLICT (user_id) DO UPDATE
		SET prekey_public = $2, prekey_signature = $3, updated_at = now()`,
		string(user), prekey.PrekeyPublic.Slice(), prekey.PrekeySignature)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errNoIdentity(user)
	}
	return nil
}

func (s *PostgresStore) PrekeyBundle(ctx context.Context, user domain.UserID) (domain.PrekeyBundle, error) {
	var ik, sk, pk, sig []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT i.identity_public_key, i.signing_public_key, p.prekey_public, p.prekey_signature
		FROM identities i JOIN prekeys p USING (user_id)
		WHERE i.user_id = $1`, string(user)).Scan(&ik, &sk, &pk, &sig)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PrekeyBundle{}, errNoBundle(user)
	}
	if err != nil {
		return domain.PrekeyBundle{}, err
	}
	b := domain.PrekeyBundle{PrekeySignature: sig}
	if err := key32(ik, (*[32]byte)(&b.IdentityPublicKey)); err != nil {
		return domain.PrekeyBundle{}, err
	}
	if err := key32(sk, (*[32]byte)(&b.SigningPublicKey)); err != nil {
		return domain.PrekeyBundle{}, err
	}
	if err := key32(pk, (*[32]byte)(&b.PrekeyPublic)); err != nil {
		return domain.PrekeyBundle{}, err
	}
	return b, nil
}

func (s *PostgresStore) PutMembers(ctx context.Context, channel domain.ChannelID, users []domain.UserID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM channel_members WHERE channel_id = $1`, string(channel)); err != nil {
		return err
	}
	for _, u := range users {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO channel_members (channel_id, user_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, string(channel), string(u)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) Members(ctx context.Context, channel domain.ChannelID) ([]domain.Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.user_id, i.identity_public_key
		FROM channel_members m JOIN identities i USING (user_id)
		WHERE m.channel_id = $1
		ORDER BY m.user_id`, string(channel))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Member
	for rows.Next() {
		var (
			user string
			ik   []byte
			m    domain.Member
		)
		if err := rows.Scan(&user, &ik); err != nil {
			return nil, err
		}
		m.UserID = domain.UserID(user)
		if err := key32(ik, (*[32]byte)(&m.PublicKey)); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PutShares(ctx context.Context, channel domain.ChannelID, shares []domain.ChannelKeyShare) error {
	if err := validShares(shares); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, sh := range shares {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO channel_key_shares (channel_id, user_id, key_version, encrypted_key, sender_public_key)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (channel_id, user_id, key_version) DO UPDATE
			SET encrypted_key = $4, sender_public_key = $5`,
			string(channel), string(sh.UserID), sh.Version, sh.EncryptedKey, sh.SenderPublicKey.Slice())
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) Share(ctx context.Context, channel domain.ChannelID, user domain.UserID, version int) (domain.ChannelKeyShare, error) {
	var (
		sh     = domain.ChannelKeyShare{UserID: user}
		sender []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT key_version, encrypted_key, sender_public_key
		FROM channel_key_shares
		WHERE channel_id = $1 AND user_id = $2 AND ($3 = 0 OR key_version = $3)
		ORDER BY key_version DESC
		LIMIT 1`, string(channel), string(user), version).Scan(&sh.Version, &sh.EncryptedKey, &sender)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ChannelKeyShare{}, errNoShare(channel, user, version)
	}
	if err != nil {
		return domain.ChannelKeyShare{}, err
	}
	if err := key32(sender, (*[32]byte)(&sh.SenderPublicKey)); err != nil {
		return domain.ChannelKeyShare{}, err
	}
	return sh, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func key32(b []byte, dst *[32]byte) error {
	if len(b) != len(dst) {
		return fmt.Errorf("stored key has %d bytes, want %d", len(b), len(dst))
	}
	copy(dst[:], b)
	return nil
}

var _ Store = (*PostgresStore)(nil)

// Reset truncates every table. Tests use it to start from an empty directory.
func (s *PostgresStore) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `TRUNCATE channel_key_shares, channel_members, prekeys, identities`)
	return err
}
