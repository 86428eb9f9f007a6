// Package id provides unique identifier generation for sessions and runs.
package id

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generate creates a new unique identifier with the given prefix.
// Format: <prefix>-<timestamp>-<random>
// Example: sess-1701432000-9f1c2b7e4d6a4c1e8b3a5d7f9e0c2a4b
//
// The random part is a full version 4 UUID; session ids are the only
// credential a client holds.
func Generate(prefix string) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().Unix(), random)
}
