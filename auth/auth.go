// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/danielhkuo/outing-pick/models"
)

var (
	ErrInvalidAdminKey = errors.New("invalid admin key")
)

// FingerprintLen is the hex length of a voter fingerprint.
const FingerprintLen = sha256.Size * 2

// GenerateAdminKey creates an HMAC-based admin key for a plan
// This is deterministic and verifiable
func GenerateAdminKey(planID, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte("admin\x00"))
	h.Write([]byte(planID))
	sum := h.Sum(nil)
	// Use URL-safe base64 and trim padding for cleaner keys
	return strings.TrimRight(base64.URLEncoding.EncodeToString(sum), "=")
}

// ValidateAdminKey checks if the provided admin key is valid for the plan
func ValidateAdminKey(planID, adminKey, salt string) error {
	expected := GenerateAdminKey(planID, salt)
	if !hmac.Equal([]byte(adminKey), []byte(expected)) {
		return ErrInvalidAdminKey
	}
	return nil
}

// VoterIdentity derives anonymous voter fingerprints.
type VoterIdentity struct {
	Salt string
}

// Fingerprint returns a fixed-length digest of (plan, origin, client).
// Fields are length-prefixed so ("ab","c") and ("a","bc") never collide.
// Two people behind the same address with the same client string get the
// same fingerprint.
func (v VoterIdentity) Fingerprint(planID string, seed models.IdentitySeed) string {
	h := hmac.New(sha256.New, []byte(v.Salt))
	for _, field := range []string{planID, seed.Origin, seed.Client} {
		var n [4]byte
		l := len(field)
		n[0], n[1], n[2], n[3] = byte(l>>24), byte(l>>16), byte(l>>8), byte(l)
		h.Write(n[:])
		h.Write([]byte(field))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// HashIP creates a one-way hash of an IP address for privacy
// Includes salt to prevent rainbow table attacks
func HashIP(ip, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(ip))
	sum := h.Sum(nil)
	// Return first 16 hex chars (64 bits) - enough for rate-limit keys
	return hex.EncodeToString(sum[:8])
}
