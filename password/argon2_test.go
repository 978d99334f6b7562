package password

import (
	"errors"
	"strings"
	"testing"
)

func fastArgon2Config() Argon2Config {
	cfg := DefaultArgon2Config()
	cfg.Memory = 8 * 1024
	cfg.Time = 1
	cfg.Parallelism = 1
	return cfg
}

func TestArgon2HashAndVerify(t *testing.T) {
	hasher, err := NewArgon2(fastArgon2Config())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	hash, err := hasher.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := hasher.Verify("P@ssw0rd-Ascii", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatal("expected password verification to succeed")
	}

	ok, err = hasher.Verify("wrong-password-1", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password verification to fail")
	}
}

func TestArgon2SaltsDiffer(t *testing.T) {
	hasher, _ := NewArgon2(fastArgon2Config())
	a, _ := hasher.Hash("correct-horse-battery")
	b, _ := hasher.Hash("correct-horse-battery")
	if a == b {
		t.Fatal("expected distinct hashes for the same password")
	}
}

func TestArgon2NeedsUpgrade(t *testing.T) {
	weak, _ := NewArgon2(fastArgon2Config())
	hash, err := weak.Hash("upgrade-me-please")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	strongCfg := fastArgon2Config()
	strongCfg.Time = 2
	strong, _ := NewArgon2(strongCfg)

	up, err := strong.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if !up {
		t.Fatal("expected weaker hash to need upgrade")
	}

	same, err := weak.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if same {
		t.Fatal("expected identical config not to need upgrade")
	}
}

func TestArgon2PolicyBounds(t *testing.T) {
	hasher, _ := NewArgon2(fastArgon2Config())

	if _, err := hasher.Hash("short"); !errors.Is(err, ErrPolicy) {
		t.Fatalf("expected ErrPolicy for short password, got %v", err)
	}
	if _, err := hasher.Hash(strings.Repeat("a", 73)); !errors.Is(err, ErrPolicy) {
		t.Fatalf("expected ErrPolicy for long password, got %v", err)
	}
	if _, err := hasher.Hash(strings.Repeat("a", 72)); err != nil {
		t.Fatalf("expected 72 bytes to be accepted, got %v", err)
	}
	if _, err := hasher.Hash(strings.Repeat("a", 12)); err != nil {
		t.Fatalf("expected 12 bytes to be accepted, got %v", err)
	}
}

func TestArgon2VerifyMalformedHash(t *testing.T) {
	hasher, _ := NewArgon2(fastArgon2Config())

	cases := []string{
		"",
		"not-a-phc",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=1,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
	}
	for _, c := range cases {
		if _, err := hasher.Verify("whatever-password", c); err == nil {
			t.Fatalf("expected error for %q", c)
		}
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	cfg := fastArgon2Config()
	cfg.Memory = 1024
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected low memory to be rejected")
	}

	cfg = fastArgon2Config()
	cfg.Policy = Policy{MinLength: 4, MaxLength: 72}
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected tiny min length to be rejected")
	}
}
