// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides admin keys and anonymous voter identity.

# Admin Keys

Admin keys use HMAC-SHA256 to create deterministic, verifiable keys:

	adminKey := auth.GenerateAdminKey(planID, salt)
	err := auth.ValidateAdminKey(planID, adminKey, salt)

The key is URL-safe base64 encoded without padding. Since it's deterministic,
the same plan ID and salt always produce the same key. This allows validation
without storing the key in the database.

# Voter Fingerprints

A VoterIdentity turns a caller's network origin and client string into a
fingerprint scoped to one plan:

	id := auth.VoterIdentity{Salt: cfg.VoterSalt}
	fp := id.Fingerprint(planID, models.IdentitySeed{Origin: ip, Client: ua})

The fingerprint is 64 hex characters of HMAC-SHA256. Only the fingerprint is
stored; the origin and client strings are dropped after hashing.

# IP Hashing

For rate-limit keys that must not carry raw addresses:

	hash := auth.HashIP(ipAddress, salt)

Returns first 8 bytes (16 hex chars) of HMAC-SHA256.
*/
package auth
