package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"sealroom/internal/domain"
)

// Client implements domain.Directory over the directory's HTTP API.
//
// Fetches are idempotent and retried with exponential backoff on transport
// errors, 429 and 5xx. Publishes are retried on transport errors only.
type Client struct {
	Base string
	User domain.UserID
	HTTP *http.Client

	log        *slog.Logger
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

// NewClient returns a client acting as user against base.
func NewClient(base string, user domain.UserID, httpClient *http.Client, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		Base:       strings.TrimRight(base, "/"),
		User:       user,
		HTTP:       httpClient,
		log:        log,
		maxRetries: 4,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
}

var _ domain.Directory = (*Client)(nil)

func (c *Client) PublishIdentity(ctx context.Context, user domain.UserID, bundle domain.PublicKeyBundle) error {
	return c.do(ctx, http.MethodPut, "/v1/identity/"+url.PathEscape(string(user)), bundle, nil)
}

func (c *Client) PublishPrekey(ctx context.Context, user domain.UserID, prekey domain.SignedPrekey) error {
	return c.do(ctx, http.MethodPut, "/v1/prekey/"+url.PathEscape(string(user)), prekey, nil)
}

func (c *Client) FetchPrekeyBundle(ctx context.Context, user domain.UserID) (domain.PrekeyBundle, error) {
	var out domain.PrekeyBundle
	if err := c.do(ctx, http.MethodGet, "/v1/prekey/"+url.PathEscape(string(user)), nil, &out); err != nil {
		return domain.PrekeyBundle{}, err
	}
	return out, nil
}

func (c *Client) PublishChannelShares(ctx context.Context, channel domain.ChannelID, shares []domain.ChannelKeyShare) error {
	return c.do(ctx, http.MethodPost, channelPath(channel, "/shares"), shares, nil)
}

func (c *Client) FetchOwnChannelShare(ctx context.Context, channel domain.ChannelID, version int) (domain.ChannelKeyShare, error) {
	path := channelPath(channel, "/shares/me")
	if version > 0 {
		path += "?version=" + strconv.Itoa(version)
	}
	var out domain.ChannelKeyShare
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return domain.ChannelKeyShare{}, err
	}
	return out, nil
}

func (c *Client) FetchChannelMembers(ctx context.Context, channel domain.ChannelID) ([]domain.Member, error) {
	var out []domain.Member
	if err := c.do(ctx, http.MethodGet, channelPath(channel, "/members"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetChannelMembers replaces the channel's member list.
func (c *Client) SetChannelMembers(ctx context.Context, channel domain.ChannelID, users []domain.UserID) error {
	return c.do(ctx, http.MethodPut, channelPath(channel, "/members"), membersBody{Members: users}, nil)
}

func channelPath(channel domain.ChannelID, suffix string) string {
	return "/v1/channels/" + url.PathEscape(string(channel)) + suffix
}

// do sends one request, retrying as described on Client.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		payload = b
	}
	idempotent := method == http.MethodGet

	attempt := 0
	op := func() error {
		attempt++
		err := c.once(ctx, method, path, payload, out)
		if err == nil {
			return nil
		}
		var se *StatusError
		if errors.As(err, &se) {
			if idempotent && (se.Code == http.StatusTooManyRequests || se.Code >= 500) {
				return err
			}
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.log.Debug("directory retry", "method", method, "attempt", attempt, "wait", wait, "err", err)
	}
	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx)
	return backoff.RetryNotify(op, b, notify)
}

func (c *Client) once(ctx context.Context, method, path string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.User != "" {
		req.Header.Set(UserHeader, string(c.User))
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("directory %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("directory %s %s: decode: %w", method, path, err)
	}
	return nil
}
