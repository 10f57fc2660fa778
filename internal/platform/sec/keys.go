// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

package sec

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// signingKeyInfo domain-separates the credential signing key from any other
// key later derived from the same secret.
const signingKeyInfo = "resumora.credential.signing.v1"

// DeriveSigningKey expands the configured session secret into a 32-byte
// HMAC signing key using HKDF-SHA256.
//
// The secret itself is never used directly for signing, so rotating the
// derivation info string invalidates all outstanding credentials without
// touching the stored secret.
func DeriveSigningKey(sessionSecret string) ([]byte, error) {
	if sessionSecret == "" {
		return nil, fmt.Errorf("sec: session secret is empty")
	}

	reader := hkdf.New(sha256.New, []byte(sessionSecret), nil, []byte(signingKeyInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("sec: failed to derive signing key: %w", err)
	}

	return key, nil
}
