package sqlite

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/nkh361/ravel-scheduler/store"
)

// Store implements store.Store on top of a bun.DB as a single type,
// since this repository treats the job store as one cohesive component
// rather than several independently swappable pieces.
//
// The provided *bun.DB must already have InitDB run against it.
type Store struct {
	db *bun.DB
}

// NewStore wraps db. The caller owns db's lifecycle (connection limits,
// WAL/busy_timeout configuration) and must call InitDB before use.
func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// now returns the current time truncated to the second. Every ordering
// tie on created_at is broken by rowid, so second-granularity
// timestamps never lose ordering information.
func (s *Store) now() time.Time {
	return time.Now().Truncate(time.Second)
}

var _ store.Store = (*Store)(nil)
