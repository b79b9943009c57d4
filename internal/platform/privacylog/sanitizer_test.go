package privacylog

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}
	return payload
}

func TestSanitizingHandlerRedactsSecretsAndIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(WrapHandler(slog.NewJSONHandler(&buf, nil)))
	logger.Info("test",
		"channel_id", "general",
		"user_id", "alice",
		"mnemonic", "abandon abandon about",
		"prekey_signature", "c2ln",
		"key_version", 2,
	)

	payload := decode(t, &buf)
	for _, k := range []string{"channel_id", "user_id"} {
		if _, ok := payload[k]; ok {
			t.Fatalf("%s should not be present", k)
		}
		got, _ := payload[k+"_fp"].(string)
		if !strings.HasPrefix(got, "fp_") {
			t.Fatalf("%s_fp: unexpected value %q", k, got)
		}
	}
	for _, k := range []string{"mnemonic", "prekey_signature"} {
		if got, _ := payload[k].(string); got != redactedValue {
			t.Fatalf("expected %s redacted, got %q", k, got)
		}
	}
	if got, _ := payload["key_version"].(float64); got != 2 {
		t.Fatalf("expected key_version untouched, got %v", payload["key_version"])
	}
}

func TestSanitizingHandlerWithAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(WrapHandler(slog.NewJSONHandler(&buf, nil))).With("peer_id", "bob")
	logger.Info("test", slog.Group("req", slog.String("device_secret", "x"), slog.String("path", "/v1")))

	payload := decode(t, &buf)
	if _, ok := payload["peer_id_fp"]; !ok {
		t.Fatal("peer_id_fp should be present")
	}
	req, _ := payload["req"].(map[string]any)
	if req["device_secret"] != redactedValue {
		t.Fatalf("expected grouped secret redacted, got %v", req["device_secret"])
	}
	if req["path"] != "/v1" {
		t.Fatalf("expected path untouched, got %v", req["path"])
	}
}

func TestFingerprintIDStableWithinProcess(t *testing.T) {
	if FingerprintID("alice") != FingerprintID(" alice ") {
		t.Fatal("fingerprint should ignore surrounding space")
	}
	if FingerprintID("alice") == FingerprintID("bob") {
		t.Fatal("distinct ids should not collide")
	}
	if FingerprintID("") != "" {
		t.Fatal("empty id should stay empty")
	}
}

func TestSanitizingHandlerImplementsSlogHandlerContract(t *testing.T) {
	var buf bytes.Buffer
	h := WrapHandler(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug disabled")
	}
	rec := slog.NewRecord(time.Now().UTC(), slog.LevelInfo, "msg", 0)
	rec.AddAttrs(slog.String("shared_key", "k"))
	if err := h.Handle(context.Background(), rec); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if strings.Contains(buf.String(), `"k"`) {
		t.Fatalf("shared key leaked: %s", buf.String())
	}
	if WrapHandler(nil) != nil {
		t.Fatal("nil next should give nil handler")
	}
}
