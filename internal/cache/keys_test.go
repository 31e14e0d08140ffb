package cache

import (
	"strings"
	"testing"
)

func TestBuildKeyFieldOrderIrrelevant(t *testing.T) {
	a := BuildTokenKey("lovelace", []string{"price", "market_cap", "volume_24h"})
	b := BuildTokenKey("lovelace", []string{"volume_24h", "price", "market_cap"})
	if a != b {
		t.Fatalf("permutations of one field set must share a key: %s vs %s", a, b)
	}

	c := BuildTokenKey("lovelace", []string{"price", "market_cap"})
	if a == c {
		t.Fatal("different field sets must not collide")
	}
}

func TestBuildKeyShape(t *testing.T) {
	key := BuildTokenKey("lovelace", []string{"price"})
	if !strings.HasPrefix(key, "v1:token:lovelace:f:") {
		t.Fatalf("unexpected key shape: %s", key)
	}
	segs := strings.Split(key, ":")
	hash := segs[len(segs)-1]
	if len(hash) != 8 {
		t.Fatalf("field hash must be 8 hex chars, got %q", hash)
	}
}

func TestBuildKeyNoFields(t *testing.T) {
	key := BuildWalletKey("addr1qxy", nil)
	if key != "v1:wallet:addr1qxy" {
		t.Fatalf("unexpected key: %s", key)
	}
}

func TestBuildKeySanitizesIdentifier(t *testing.T) {
	key := BuildTokenKey("unit:with spaces/and$junk", nil)
	body := strings.TrimPrefix(key, "v1:token:")
	for _, r := range body {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			t.Fatalf("unsanitized rune %q in %s", r, key)
		}
	}
}

func TestBuildAggregatedKeyProviderScope(t *testing.T) {
	a := BuildAggregatedKey("lovelace", []string{"price"}, []string{"koios", "blockfrost"})
	b := BuildAggregatedKey("lovelace", []string{"price"}, []string{"blockfrost", "koios"})
	if a != b {
		t.Fatal("provider set order must not matter")
	}
	c := BuildAggregatedKey("lovelace", []string{"price"}, []string{"koios"})
	if a == c {
		t.Fatal("different provider sets must not collide")
	}
}

func TestParseKey(t *testing.T) {
	info, ok := ParseKey(BuildAggregatedKey("lovelace", []string{"price"}, []string{"koios"}))
	if !ok {
		t.Fatal("built key must parse")
	}
	if info.Version != "v1" || info.Kind != KeyKindAggregated || info.Identifier != "lovelace" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if !info.HasFields || !info.HasProviders {
		t.Fatalf("segment presence lost: %+v", info)
	}

	if _, ok := ParseKey("v0:token:x"); ok {
		t.Fatal("foreign versions must not parse")
	}
	if _, ok := ParseKey("garbage"); ok {
		t.Fatal("malformed keys must not parse")
	}
}
