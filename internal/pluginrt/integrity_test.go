package pluginrt

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestVerifyScriptRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	v := NewScriptVerifier()
	if err := v.TrustAuthor("alice", hex.EncodeToString(pub)); err != nil {
		t.Fatalf("TrustAuthor: %v", err)
	}
	if !v.IsTrusted("alice") {
		t.Fatal("expected alice to be trusted")
	}

	script := `function get_manifest() { return {}; }`
	digest := sha256.Sum256([]byte(script))
	sig := ed25519.Sign(priv, digest[:])

	if err := v.VerifyScript("alice", script, hex.EncodeToString(sig)); err != nil {
		t.Fatalf("VerifyScript: %v", err)
	}
}

func TestVerifyScriptTamperedBodyFails(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	v := NewScriptVerifier()
	v.TrustAuthor("alice", hex.EncodeToString(pub))

	digest := sha256.Sum256([]byte("original script"))
	sig := ed25519.Sign(priv, digest[:])

	if err := v.VerifyScript("alice", "tampered script", hex.EncodeToString(sig)); err == nil {
		t.Fatal("expected verification to fail for tampered script")
	}
}

func TestVerifyScriptUnknownAuthorFails(t *testing.T) {
	v := NewScriptVerifier()
	if err := v.VerifyScript("mallory", "script", "00"); err == nil {
		t.Fatal("expected error for unregistered author")
	}
}

func TestTrustAuthorRejectsInvalidKey(t *testing.T) {
	v := NewScriptVerifier()
	if err := v.TrustAuthor("alice", "not-hex"); err == nil {
		t.Fatal("expected error for invalid hex")
	}
	if err := v.TrustAuthor("alice", "aabb"); err == nil {
		t.Fatal("expected error for wrong-size key")
	}
}
