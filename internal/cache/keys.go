package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// keyVersion prefixes every key so that incompatible key schemes from
// different SDK versions never collide.
const keyVersion = "v1"

// Key kinds.
const (
	KeyKindToken      = "token"
	KeyKindWallet     = "wallet"
	KeyKindAggregated = "agg"
)

// KeyInfo is the structural metadata recovered from a cache key. Hashed
// segments only expose presence, not content.
type KeyInfo struct {
	Version      string
	Kind         string
	Identifier   string
	HasFields    bool
	HasProviders bool
}

// BuildKey constructs a deterministic cache key. Field and provider sets are
// sorted before hashing so permutations of the same set share a key, and each
// set is represented by a short fixed-length hash so keys stay bounded no
// matter how many fields are requested.
func BuildKey(kind, identifier string, fields, providers []string) string {
	parts := []string{keyVersion, kind, sanitizeIdentifier(identifier)}
	if len(fields) > 0 {
		parts = append(parts, "f:"+hashSet(fields))
	}
	if len(providers) > 0 {
		parts = append(parts, "p:"+hashSet(providers))
	}
	return strings.Join(parts, ":")
}

// BuildTokenKey builds a key for a token data request.
func BuildTokenKey(unit string, fields []string) string {
	return BuildKey(KeyKindToken, unit, fields, nil)
}

// BuildWalletKey builds a key for a wallet data request.
func BuildWalletKey(address string, fields []string) string {
	return BuildKey(KeyKindWallet, address, fields, nil)
}

// BuildAggregatedKey builds a key scoped to a specific provider set.
func BuildAggregatedKey(identifier string, fields, providers []string) string {
	return BuildKey(KeyKindAggregated, identifier, fields, providers)
}

// ParseKey recovers the structural metadata of a key built by BuildKey.
// It returns false for keys from other schemes or versions.
func ParseKey(key string) (KeyInfo, bool) {
	parts := strings.Split(key, ":")
	if len(parts) < 3 || parts[0] != keyVersion {
		return KeyInfo{}, false
	}
	switch parts[1] {
	case KeyKindToken, KeyKindWallet, KeyKindAggregated:
	default:
		return KeyInfo{}, false
	}

	info := KeyInfo{
		Version:    parts[0],
		Kind:       parts[1],
		Identifier: parts[2],
	}
	// Hashed segments split into a marker part and a hex part; only the
	// markers carry structure.
	for _, part := range parts[3:] {
		switch part {
		case "f":
			info.HasFields = true
		case "p":
			info.HasProviders = true
		}
	}
	return info, true
}

// sanitizeIdentifier maps the identifier onto [A-Za-z0-9_-] so arbitrary
// provider identifiers cannot break the key structure.
func sanitizeIdentifier(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// hashSet returns an 8-hex-char digest of the sorted set.
func hashSet(set []string) string {
	sorted := make([]string, len(set))
	copy(sorted, set)
	sort.Strings(sorted)

	sum := sha256.Sum256([]byte(strings.Join(sorted, ",")))
	return hex.EncodeToString(sum[:4])
}
