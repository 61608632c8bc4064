// Package cryptox implements the enc/dec template helpers as an
// AES-GCM-SIV stand-in.
//
// The Go standard library has no SIV construction, so this uses
// stdlib crypto/aes + crypto/cipher's ordinary GCM instead. This is a
// deliberate, documented deviation: the fixed key and nonce make this
// convenience obfuscation for template values, never secrecy, and
// plain GCM is adequate for that role.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
)

// fixedKey and fixedNonce are hardcoded by design: enc/dec are a
// convenience obfuscation for config templates, not a secret store.
// Do not treat this as a security boundary.
var (
	fixedKey   = []byte("spyrun-demo-key-32-bytes-long!!!")
	fixedNonce = []byte("spyrun-nonce")
)

func gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(fixedKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, len(fixedNonce))
}

// Enc returns base64(AES-GCM(plaintext)) using the fixed demonstration
// key and nonce.
func Enc(plaintext string) (string, error) {
	aead, err := gcm()
	if err != nil {
		return "", err
	}
	sealed := aead.Seal(nil, fixedNonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Dec inverts Enc.
func Dec(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	aead, err := gcm()
	if err != nil {
		return "", err
	}
	plain, err := aead.Open(nil, fixedNonce, sealed, nil)
	if err != nil {
		return "", errors.New("cryptox: decryption failed")
	}
	return string(plain), nil
}
