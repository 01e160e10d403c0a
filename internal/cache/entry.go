package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/preset"
)

var (
	// ErrNotFound is returned by a Tier when the key is absent.
	ErrNotFound = errors.New("cache entry not found")
	// ErrCorrupt is returned by a Tier when a stored entry cannot be decoded.
	ErrCorrupt = errors.New("corrupt cache entry")
)

// #region entry
// Entry is one cached resolution.
type Entry struct {
	Key        string           `json:"key"`
	Payload    preset.Candidate `json:"payload"`
	CreatedAt  time.Time        `json:"created_at"`
	LastAccess time.Time        `json:"last_access"`
	Hits       int64            `json:"hits"`
}

// #endregion entry

// #region key
// keyUnits is how many required units take part in the key.
const keyUnits = 3

// Key derives the cache key for r from its canonical form: vibe tokens
// (lowercased, stopwords dropped, deduped, sorted), max units, lowercased
// genre, and the lowest keyUnits required unit IDs.
func Key(r preset.Request) string {
	units := append([]int(nil), r.RequiredUnits...)
	sort.Ints(units)
	if len(units) > keyUnits {
		units = units[:keyUnits]
	}
	ids := make([]string, len(units))
	for i, id := range units {
		ids[i] = strconv.Itoa(id)
	}

	var b strings.Builder
	b.WriteString("v=")
	b.WriteString(preset.CanonicalVibe(r.VibeText))
	b.WriteString("|n=")
	b.WriteString(strconv.Itoa(r.MaxUnits))
	b.WriteString("|g=")
	b.WriteString(strings.ToLower(strings.TrimSpace(r.Genre)))
	b.WriteString("|u=")
	b.WriteString(strings.Join(ids, ","))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// #endregion key
