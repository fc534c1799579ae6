// Package id provides identifier and label generation for generation attempts.
package id

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Name returns the default label for a request submitted at now.
// Format: Video_<unix-millis>
// Example: Video_1701432000123
func Name(now time.Time) string {
	return fmt.Sprintf("Video_%d", now.UnixMilli())
}

// Attempt creates a new unique identifier for one submit action.
// Format: gen-<uuid>
func Attempt() string {
	return "gen-" + uuid.NewString()
}
