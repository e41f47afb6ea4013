package dal

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a new random entity identifier in canonical form.
func NewID() string {
	return uuid.New().String()
}

// NormalizeID validates an identifier and returns its canonical lower-case form.
func NormalizeID(id string) (string, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

// JoinKey builds the identifier of a row with a composite primary key.
func JoinKey(parts ...string) string {
	return strings.Join(parts, ":")
}

// uniqueIDs removes duplicates and empty entries while keeping the first-seen order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if canonical, ok := NormalizeID(id); ok {
			id = canonical
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
