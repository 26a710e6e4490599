package sqlite

import (
	"strings"

	"github.com/google/uuid"
)

// idLength is the id length in hex digits. newID uses the hex digits a
// uuid already produces, so it never has to allocate a second
// charset/rand source of its own; it just borrows 4 bytes of a
// generated UUID's randomness.
const idLength = 8

// newID returns an 8-character lowercase-hex opaque id. It is not
// guaranteed unique on its own, callers must retry on a primary-key
// collision, which add.go does.
func newID() string {
	u := uuid.New()
	return strings.ReplaceAll(u.String(), "-", "")[:idLength]
}
