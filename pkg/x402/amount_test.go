package x402

import "testing"

func TestUSDToAtomic(t *testing.T) {
	t.Parallel()

	cases := []struct {
		usd  float64
		want string
	}{
		{0.10, "100000"},
		{0.01, "10000"},
		{1.00, "1000000"},
		{2.50, "2500000"},
		{0, "0"},
		{0.000001, "1"},
	}

	for _, tc := range cases {
		got := USDToAtomic(tc.usd).String()
		if got != tc.want {
			t.Errorf("USDToAtomic(%v) = %s, want %s", tc.usd, got, tc.want)
		}
	}
}

func TestAtomicToUSD(t *testing.T) {
	t.Parallel()

	got, err := AtomicToUSD("100000")
	if err != nil {
		t.Fatalf("AtomicToUSD failed: %v", err)
	}
	if got != 0.10 {
		t.Errorf("AtomicToUSD(100000) = %v, want 0.10", got)
	}

	if _, err := AtomicToUSD("not-a-number"); err == nil {
		t.Error("expected error for non-numeric amount")
	}
}

func TestParseAmount(t *testing.T) {
	t.Parallel()

	amount, err := ParseAmount("100000")
	if err != nil {
		t.Fatalf("ParseAmount failed: %v", err)
	}
	if amount.String() != "100000" {
		t.Errorf("ParseAmount(100000) = %s", amount.String())
	}

	for _, bad := range []string{"", "-1", "1.5", "0x10", "abc"} {
		if _, err := ParseAmount(bad); err == nil {
			t.Errorf("ParseAmount(%q) should fail", bad)
		}
	}
}

func TestNewNonce(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		nonce, err := NewNonce()
		if err != nil {
			t.Fatalf("NewNonce failed: %v", err)
		}
		if len(nonce) != 2+NonceLen*2 {
			t.Fatalf("nonce length = %d, want %d", len(nonce), 2+NonceLen*2)
		}
		if nonce[:2] != "0x" {
			t.Fatalf("nonce missing 0x prefix: %s", nonce)
		}
		if seen[nonce] {
			t.Fatalf("duplicate nonce: %s", nonce)
		}
		seen[nonce] = true
	}
}
