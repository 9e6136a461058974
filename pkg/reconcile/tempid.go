package reconcile

import (
	"strings"

	"github.com/google/uuid"
)

// TempIDPrefix marks identifiers generated on the client
const TempIDPrefix = "temp-"

// NewTempID returns a fresh client-side identifier. It never collides with
// server ids, which do not carry the prefix.
func NewTempID() string {
	return TempIDPrefix + uuid.NewString()
}

// IsTempID reports whether id was generated by NewTempID
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}
