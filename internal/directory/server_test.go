package directory_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealroom/internal/directory"
	"sealroom/internal/domain"
	"sealroom/internal/platform/ratelimiter"
)

func newServer(t *testing.T, opts directory.ServerOptions) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(directory.NewServer(directory.NewMemoryStore(), opts).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestClientServer_PrekeyFlow(t *testing.T) {
	srv := newServer(t, directory.ServerOptions{})
	ctx := context.Background()
	alice := directory.NewClient(srv.URL, "alice", srv.Client(), nil)
	bob := directory.NewClient(srv.URL, "bob", srv.Client(), nil)

	_, err := bob.FetchPrekeyBundle(ctx, "alice")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNoPrekeyBundle), "got %v", err)
	var se *directory.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)

	require.NoError(t, alice.PublishIdentity(ctx, "alice", bundleFor(1)))
	require.NoError(t, alice.PublishPrekey(ctx, "alice", domain.SignedPrekey{PrekeyPublic: domain.X25519Public{4}, PrekeySignature: []byte("sig")}))

	got, err := bob.FetchPrekeyBundle(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.X25519Public{1}, got.IdentityPublicKey)
	assert.Equal(t, domain.X25519Public{4}, got.PrekeyPublic)
	assert.Equal(t, []byte("sig"), got.PrekeySignature)
}

func TestServer_RejectsPublishingForOthers(t *testing.T) {
	srv := newServer(t, directory.ServerOptions{})
	mallory := directory.NewClient(srv.URL, "mallory", srv.Client(), nil)

	err := mallory.PublishIdentity(context.Background(), "alice", bundleFor(6))
	var se *directory.StatusError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, http.StatusForbidden, se.Code)
}

func TestClientServer_ChannelShares(t *testing.T) {
	srv := newServer(t, directory.ServerOptions{})
	ctx := context.Background()
	alice := directory.NewClient(srv.URL, "alice", srv.Client(), nil)
	bob := directory.NewClient(srv.URL, "bob", srv.Client(), nil)

	require.NoError(t, alice.PublishIdentity(ctx, "alice", bundleFor(1)))
	require.NoError(t, bob.PublishIdentity(ctx, "bob", bundleFor(2)))
	require.NoError(t, alice.SetChannelMembers(ctx, "general", []domain.UserID{"alice", "bob"}))

	members, err := bob.FetchChannelMembers(ctx, "general")
	require.NoError(t, err)
	assert.Len(t, members, 2)

	require.NoError(t, alice.PublishChannelShares(ctx, "general", []domain.ChannelKeyShare{share("alice", 1, 1), share("bob", 1, 2)}))
	require.NoError(t, alice.PublishChannelShares(ctx, "general", []domain.ChannelKeyShare{share("alice", 2, 3)}))

	s, err := bob.FetchOwnChannelShare(ctx, "general", 0)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("bob"), s.UserID)
	assert.Equal(t, []byte{2, 2, 2}, s.EncryptedKey)

	_, err = bob.FetchOwnChannelShare(ctx, "general", 2)
	assert.True(t, errors.Is(err, domain.ErrKeyNotFound), "got %v", err)

	s, err = alice.FetchOwnChannelShare(ctx, "general", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Version)
}

func TestServer_RequiresUserHeader(t *testing.T) {
	srv := newServer(t, directory.ServerOptions{})
	resp, err := srv.Client().Get(srv.URL + "/v1/channels/general/shares/me")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `"kind":"INVALID_ARGUMENT"`)
}

func TestServer_RateLimitAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv := newServer(t, directory.ServerOptions{
		Limiter:  ratelimiter.New(0.001, 2, time.Minute),
		Registry: reg,
	})

	var retryAfter string
	get := func() int {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/prekey/nobody", nil)
		req.Header.Set(directory.UserHeader, "alice")
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		retryAfter = resp.Header.Get("Retry-After")
		return resp.StatusCode
	}
	assert.Equal(t, http.StatusNotFound, get())
	assert.Equal(t, http.StatusNotFound, get())
	assert.Equal(t, http.StatusTooManyRequests, get())
	secs, err := strconv.Atoi(retryAfter)
	require.NoError(t, err, "Retry-After %q", retryAfter)
	assert.Greater(t, secs, 900, "one token per 1000s")

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	text := string(body)
	assert.True(t, strings.Contains(text, `sealroom_directory_requests_total{code="404",method="GET",route="/v1/prekey/{user}"} 2`), text)
	assert.Contains(t, text, "sealroom_directory_rate_limited_total 1")
}

func TestClient_RetriesIdempotentFetches(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c := directory.NewClient(srv.URL, "alice", srv.Client(), nil)
	members, err := c.FetchChannelMembers(context.Background(), "general")
	require.NoError(t, err)
	assert.Empty(t, members)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestClient_DoesNotRetryRejectedPublish(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := directory.NewClient(srv.URL, "alice", srv.Client(), nil)
	err := c.PublishIdentity(context.Background(), "alice", bundleFor(1))
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}
