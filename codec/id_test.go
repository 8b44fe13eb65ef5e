package codec

import (
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var mintedPattern = regexp.MustCompile(`^design_[0-9]+_[0-9a-z]{12}$`)

func TestMintID(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := MintID(now)
		assert.Regexp(t, mintedPattern, id)
		assert.True(t, ValidID(id))
		assert.Equal(t, id, url.QueryEscape(id), "id must not need escaping")
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestMintedAt(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	got, ok := MintedAt(MintID(now))
	assert.True(t, ok)
	assert.True(t, got.Equal(now))

	_, ok = MintedAt("design_abc_x")
	assert.False(t, ok)
	_, ok = MintedAt("other")
	assert.False(t, ok)
}

func TestValidID(t *testing.T) {
	for id, want := range map[string]bool{
		"design_123":        true,
		"design_1_abc-DEF":  true,
		"":                  false,
		"a/b":               false,
		"a b":               false,
		"ar_design_\u00e9": false,
		"x?designId=y":      false,
		string(make([]byte, MaxIDLen+1)): false,
	} {
		assert.Equal(t, want, ValidID(id), "ValidID(%q)", id)
	}
}
