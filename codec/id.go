package codec

import (
	"encoding/binary"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IDPrefix starts every minted design id.
const IDPrefix = "design_"

// entropyLen is the number of base-36 digits after the timestamp.
const entropyLen = 12

// 36^12 fits in 63 bits.
const entropySpace = 4738381338321616896

// MaxIDLen bounds the length of ids accepted by ValidID.
const MaxIDLen = 128

// MintID returns a new design id, "design_<unix ms>_<12 base-36 digits>".
// Ids sort by creation time and use only characters that need no escaping
// in a URL query.
func MintID(now time.Time) string {
	u := uuid.New()
	n := binary.BigEndian.Uint64(u[8:]) % entropySpace
	ent := strconv.FormatUint(n, 36)
	var b strings.Builder
	b.Grow(len(IDPrefix) + 14 + 1 + entropyLen)
	b.WriteString(IDPrefix)
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 10))
	b.WriteByte('_')
	b.WriteString(strings.Repeat("0", entropyLen-len(ent)))
	b.WriteString(ent)
	return b.String()
}

// ValidID reports whether id is safe to use as a storage key and URL
// query value: 1 to MaxIDLen ASCII letters, digits, '_' or '-'.
func ValidID(id string) bool {
	if id == "" || len(id) > MaxIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}

// MintedAt returns the creation time encoded in a minted id.
func MintedAt(id string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(id, IDPrefix)
	if !ok {
		return time.Time{}, false
	}
	ms, _, ok := strings.Cut(rest, "_")
	if !ok {
		return time.Time{}, false
	}
	v, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(v), true
}
