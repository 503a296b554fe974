package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashKey(t *testing.T) {
	t.Parallel()

	hash, err := HashKey("tsr_live_abc123_deadbeefdeadbeefdeadbeefdeadbeef")
	if err != nil {
		t.Fatalf("HashKey: %v", err)
	}

	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=4$") {
		t.Errorf("hash %q not in expected PHC format", hash)
	}
	if parts := strings.Split(hash, "$"); len(parts) != 6 {
		t.Errorf("hash has %d parts, want 6", len(parts))
	}
}

func TestHashKey_SaltedPerCall(t *testing.T) {
	t.Parallel()

	const secret = "same-secret"
	h1, err := HashKey(secret)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := HashKey(secret)
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Error("two hashes of the same secret are identical; salt not applied")
	}
}

func TestVerifyKey(t *testing.T) {
	t.Parallel()

	const secret = "tsr_test_7a9f3b_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b"
	hash, err := HashKey(secret)
	if err != nil {
		t.Fatal(err)
	}

	ok, err := VerifyKey(secret, hash)
	if err != nil {
		t.Fatalf("VerifyKey: %v", err)
	}
	if !ok {
		t.Error("correct secret rejected")
	}

	ok, err = VerifyKey("wrong-secret", hash)
	if err != nil {
		t.Fatalf("VerifyKey mismatch: %v", err)
	}
	if ok {
		t.Error("wrong secret accepted")
	}
}

func TestVerifyKey_MalformedHash(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		hash string
		want error
	}{
		{"empty", "", ErrInvalidHash},
		{"not phc", "plainhash", ErrInvalidHash},
		{"too few parts", "$argon2id$v=19$m=65536,t=3,p=4$salt", ErrInvalidHash},
		{"wrong algorithm", "$bcrypt$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA", ErrInvalidHash},
		{"bad version", "$argon2id$v=xx$m=65536,t=3,p=4$c2FsdA$aGFzaA", ErrInvalidHash},
		{"old version", "$argon2id$v=16$m=65536,t=3,p=4$c2FsdA$aGFzaA", ErrIncompatibleVersion},
		{"bad params", "$argon2id$v=19$m=what$c2FsdA$aGFzaA", ErrInvalidHash},
		{"bad salt b64", "$argon2id$v=19$m=65536,t=3,p=4$!!!$aGFzaA", ErrInvalidHash},
		{"bad hash b64", "$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$!!!", ErrInvalidHash},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ok, err := VerifyKey("secret", tc.hash)
			if ok {
				t.Error("malformed hash verified")
			}
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestQuickHash(t *testing.T) {
	t.Parallel()

	h := QuickHash("tsr_live_abc123_deadbeefdeadbeefdeadbeefdeadbeef")
	if len(h) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(h))
	}
	if h != QuickHash("tsr_live_abc123_deadbeefdeadbeefdeadbeefdeadbeef") {
		t.Error("QuickHash not deterministic")
	}
	if h == QuickHash("other") {
		t.Error("distinct inputs collide")
	}
}
