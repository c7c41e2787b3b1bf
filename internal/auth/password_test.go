package auth

import (
	"strings"
	"testing"
)

// newTestPasswordService returns a PasswordService with bcrypt cost 4,
// the library minimum. Tests run in milliseconds instead of ~250ms per
// hash; the logic under test doesn't change.
func newTestPasswordService() *PasswordService {
	return NewPasswordServiceForTest(4)
}

// =========================================================================
// Hash TESTS
// =========================================================================

func TestHash_OutputLooksBcrypt(t *testing.T) {
	ps := newTestPasswordService()

	hash, err := ps.Hash("password123")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("Hash() does not look like a bcrypt hash: %q", hash)
	}
}

func TestHash_SamePasswordProducesDifferentHashes(t *testing.T) {
	ps := newTestPasswordService()

	// bcrypt salts each call; identical digests would mean the salt
	// isn't random.
	hash1, _ := ps.Hash("same-password")
	hash2, _ := ps.Hash("same-password")

	if hash1 == hash2 {
		t.Error("Hash() produced identical hashes for the same password")
	}
}

func TestHash_RejectsPasswordOver72Bytes(t *testing.T) {
	ps := newTestPasswordService()

	// bcrypt silently truncates past 72 bytes; we reject instead.
	if _, err := ps.Hash(strings.Repeat("a", 73)); err == nil {
		t.Fatal("Hash() should return an error for passwords longer than 72 bytes")
	}
}

// =========================================================================
// Verify TESTS
// =========================================================================

func TestVerify_CorrectPassword(t *testing.T) {
	ps := newTestPasswordService()

	hash, _ := ps.Hash("correct horse battery staple")
	if err := ps.Verify(hash, "correct horse battery staple"); err != nil {
		t.Errorf("Verify() error = %v for correct password", err)
	}
}

func TestVerify_WrongPassword(t *testing.T) {
	ps := newTestPasswordService()

	hash, _ := ps.Hash("correct horse battery staple")
	if err := ps.Verify(hash, "incorrect horse"); err == nil {
		t.Error("Verify() should fail for the wrong password")
	}
}

func TestVerify_MalformedDigest(t *testing.T) {
	ps := newTestPasswordService()

	// A corrupted stored hash must read as a mismatch, never a panic.
	for _, digest := range []string{"", "not-a-bcrypt-hash", "$2a$garbage"} {
		if err := ps.Verify(digest, "whatever"); err == nil {
			t.Errorf("Verify(%q) should fail", digest)
		}
	}
}

// =========================================================================
// DummyVerify TESTS
// =========================================================================

func TestDummyVerify_AlwaysFails(t *testing.T) {
	ps := newTestPasswordService()

	if err := ps.DummyVerify("anything"); err == nil {
		t.Error("DummyVerify() must always fail")
	}
	// Even the value the dummy digest was derived from must not pass.
	if err := ps.DummyVerify("identity-service-dummy"); err == nil {
		t.Error("DummyVerify() must fail for the dummy plaintext too")
	}
}

func TestNewPasswordService_EnforcesCostFloor(t *testing.T) {
	ps, err := NewPasswordService(4)
	if err != nil {
		t.Fatalf("NewPasswordService() error = %v", err)
	}
	if ps.cost < MinCost {
		t.Errorf("cost = %d, want at least %d", ps.cost, MinCost)
	}
}
