package ledger

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID returns a ULID. IDs generated within the same millisecond still sort
// in generation order.
func NewID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now.UTC()), ulid.DefaultEntropy()).String()
}
