package tokens_test

import (
	"encoding/base64"
	"strings"
	"testing"

	tokens "github.com/dropDatabas3/authcore/internal/security/token"
)

func TestGenerateOpaqueToken(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		tok, err := tokens.GenerateOpaqueToken(32)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		raw, err := base64.RawURLEncoding.DecodeString(tok)
		if err != nil {
			t.Fatalf("token %q is not base64url: %v", tok, err)
		}
		if len(raw) != 32 {
			t.Fatalf("expected 32 bytes of entropy, got %d", len(raw))
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token generated: %q", tok)
		}
		seen[tok] = struct{}{}
	}
}

func TestDigest_DeterministicPerKey(t *testing.T) {
	keyA := []byte("0123456789abcdef0123456789abcdef")
	keyB := []byte("fedcba9876543210fedcba9876543210")

	d1 := tokens.Digest(keyA, "secret-1")
	d2 := tokens.Digest(keyA, "secret-1")
	if d1 != d2 {
		t.Fatalf("same key+secret must digest equal: %q vs %q", d1, d2)
	}
	if len(d1) != 64 {
		t.Fatalf("expected hex sha256 (64 chars), got %d", len(d1))
	}

	if tokens.Digest(keyA, "secret-2") == d1 {
		t.Fatal("different secrets must not collide")
	}
	// Cambiar la clave cambia todos los digests: es lo que hace inútil un
	// dump de la base sin el config.
	if tokens.Digest(keyB, "secret-1") == d1 {
		t.Fatal("different keys must produce different digests")
	}
}

func TestDigestEqual(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	d := tokens.Digest(key, "secret")

	if !tokens.DigestEqual(d, tokens.Digest(key, "secret")) {
		t.Fatal("equal digests reported as different")
	}
	if tokens.DigestEqual(d, tokens.Digest(key, "other")) {
		t.Fatal("different digests reported as equal")
	}
}

func TestNewUserCode_Shape(t *testing.T) {
	const charset = "ABCDEFGHJKMNPQRSTVWXYZ23456789"

	for i := 0; i < 200; i++ {
		code, err := tokens.NewUserCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != 9 || code[4] != '-' {
			t.Fatalf("expected XXXX-XXXX, got %q", code)
		}
		for _, c := range strings.ReplaceAll(code, "-", "") {
			if !strings.ContainsRune(charset, c) {
				t.Fatalf("code %q contains %q, outside the unambiguous charset", code, c)
			}
		}
	}
}

func TestNormalizeUserCode(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"ABCD-2345", "ABCD-2345", false},
		{"abcd2345", "ABCD-2345", false},
		{"  abcd-2345  ", "ABCD-2345", false},
		{"AB CD 23 45", "ABCD-2345", false},
		{"abcd-234", "", true},    // too short
		{"abcd-23456", "", true},  // too long
		{"abcd-23!5", "", true},   // invalid char
		{"", "", true},
	}

	for _, tc := range cases {
		got, err := tokens.NormalizeUserCode(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("NormalizeUserCode(%q): expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeUserCode(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizeUserCode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeUserCode_RoundTripsGenerated(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := tokens.NewUserCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		got, err := tokens.NormalizeUserCode(strings.ToLower(code))
		if err != nil {
			t.Fatalf("normalize generated code %q: %v", code, err)
		}
		if got != code {
			t.Fatalf("normalize(lower(%q)) = %q", code, got)
		}
	}
}
