package internal

import (
	"encoding/hex"
	"testing"
)

func TestNewToken(t *testing.T) {
	raw1, hash1, err := NewToken()
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	raw2, hash2, err := NewToken()
	if err != nil {
		t.Fatalf("new token: %v", err)
	}

	if raw1 == raw2 || hash1 == hash2 {
		t.Error("two tokens are identical")
	}
	if HashToken(raw1) != hash1 {
		t.Error("returned hash does not match HashToken of the raw value")
	}
}

func TestHashToken(t *testing.T) {
	hash := HashToken("fixed-input")
	if HashToken("fixed-input") != hash {
		t.Error("hash is not deterministic")
	}
	if decoded, err := hex.DecodeString(hash); err != nil || len(decoded) != 32 {
		t.Errorf("hash %q is not hex SHA-256", hash)
	}
	if HashToken("other-input") == hash {
		t.Error("distinct inputs collide")
	}
}
