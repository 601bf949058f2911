package artifact

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// idTimeLayout keeps IDs lexicographically time-sortable within a type.
const idTimeLayout = "20060102T150405.000"

// NewID builds a globally unique, time-sortable identifier:
// type prefix + UTC timestamp + random suffix.
// Example: fact-20250901T142301.512-a3f29c1d
func NewID(t Type, now time.Time) string {
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%s-%s-%s", t, now.UTC().Format(idTimeLayout), suffix)
}

// TypeOfID extracts the type prefix from an artifact id, or "" if the id
// does not carry a recognizable prefix.
func TypeOfID(id string) Type {
	i := strings.IndexByte(id, '-')
	if i < 0 {
		return ""
	}
	t := Type(id[:i])
	if !validTypes[t] {
		return ""
	}
	return t
}
