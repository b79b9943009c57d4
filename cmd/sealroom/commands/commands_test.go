package commands

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealroom/internal/directory"
)

type cli struct {
	t    *testing.T
	home string
	user string
	url  string
}

func (c cli) run(stdin string, args ...string) (string, error) {
	c.t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--home", c.home, "--user", c.user, "--directory", c.url}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (c cli) must(stdin string, args ...string) string {
	c.t.Helper()
	out, err := c.run(stdin, args...)
	require.NoError(c.t, err, "sealroom %s", strings.Join(args, " "))
	return out
}

func TestCLI_ChannelAndDM(t *testing.T) {
	srv := httptest.NewServer(directory.NewServer(directory.NewMemoryStore(), directory.ServerOptions{}).Handler())
	t.Cleanup(srv.Close)
	alice := cli{t: t, home: t.TempDir(), user: "alice", url: srv.URL}
	bob := cli{t: t, home: t.TempDir(), user: "bob", url: srv.URL}

	out := alice.must("", "init", "--mnemonic",
		"abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about")
	assert.Contains(t, out, "Identity restored.")
	out = bob.must("", "init")
	assert.Contains(t, out, "Recovery phrase")
	alice.must("", "register")
	bob.must("", "register")

	fp := alice.must("", "fingerprint")
	assert.True(t, strings.HasPrefix(fp, "Fingerprint: "))
	phrase := alice.must("", "export-mnemonic")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(phrase), "about"))

	alice.must("", "channel", "members", "general", "alice", "bob")
	out = alice.must("", "channel", "create", "general")
	assert.Contains(t, out, "version 1")
	line := alice.must("", "channel", "send", "general", "hello")
	out = bob.must(line, "channel", "read", "general")
	assert.Equal(t, "[v1] hello\n", out)

	first := alice.must("", "dm", "send", "bob", "hi bob")
	second := alice.must("", "dm", "send", "bob", "still me")
	assert.Contains(t, first, "sender_ephemeral_key")
	assert.NotContains(t, second, "sender_ephemeral_key")
	out = bob.must(first+second, "dm", "read", "alice")
	assert.Equal(t, "[alice] hi bob\n[alice] still me\n", out)

	_, err := alice.run("", "reset")
	assert.Error(t, err)
	alice.must("", "reset", "--yes")
	_, err = alice.run("", "fingerprint")
	assert.Error(t, err)
}

func TestCLI_RejectsBadInput(t *testing.T) {
	c := cli{t: t, home: t.TempDir(), user: "carol", url: "http://127.0.0.1:1"}

	_, err := c.run("", "init", "--mnemonic", "not a phrase", "--signature-hex", "00")
	assert.Error(t, err)
	_, err = c.run("", "init", "--signature-hex", "zz")
	assert.Error(t, err)
	_, err = c.run("{not json}\n", "channel", "read", "general")
	assert.Error(t, err)
}

func TestDMChannelIsSymmetric(t *testing.T) {
	assert.Equal(t, dmChannel("alice", "bob"), dmChannel("bob", "alice"))
	assert.Equal(t, "dm:alice:bob", string(dmChannel("bob", "alice")))
}
