package crypto

import "testing"

func TestKeyManager_EncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	km, err := NewKeyManagerWithKey(key)
	if err != nil {
		t.Fatalf("NewKeyManagerWithKey: %v", err)
	}

	ciphertext, err := km.EncryptChunkText("we need your social security number")
	if err != nil {
		t.Fatalf("EncryptChunkText: %v", err)
	}
	if ciphertext == "we need your social security number" {
		t.Fatal("expected ciphertext to differ from plaintext")
	}

	plaintext, err := km.DecryptChunkText(ciphertext)
	if err != nil {
		t.Fatalf("DecryptChunkText: %v", err)
	}
	if plaintext != "we need your social security number" {
		t.Fatalf("expected round trip, got %q", plaintext)
	}
}

func TestNewKeyManagerWithKey_RejectsWrongSize(t *testing.T) {
	if _, err := NewKeyManagerWithKey([]byte("too-short")); err != ErrInvalidMasterKey {
		t.Fatalf("expected ErrInvalidMasterKey, got %v", err)
	}
}
