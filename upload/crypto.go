// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package upload

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// ErrCiphertextTooShort is returned by DecryptChunk when the input is
// smaller than a nonce, which can only mean it wasn't produced by
// EncryptChunk.
var ErrCiphertextTooShort = errors.New("upload: ciphertext shorter than gcm nonce")

// EncryptChunk seals chunk under AES-256-GCM with key (sync.encryption_key,
// spec §3 supplement), prefixing the result with a freshly generated
// nonce. No third-party AEAD library appears anywhere in the retrieved
// pack for this exact purpose, so this one transform is built directly
// on crypto/aes and crypto/cipher (see DESIGN.md).
func EncryptChunk(key, chunk []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("upload: constructing aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("upload: constructing gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("upload: generating nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, chunk, nil), nil
}

// DecryptChunk reverses EncryptChunk.
func DecryptChunk(key, sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("upload: constructing aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("upload: constructing gcm: %w", err)
	}

	if len(sealed) < gcm.NonceSize() {
		return nil, ErrCiphertextTooShort
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
