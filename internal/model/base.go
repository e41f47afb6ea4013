// Package model holds the typed views of catalog records.
package model

import (
	"time"

	"github.com/fekuna/omnipos-product-dal/internal/dal"
)

type BaseModel struct {
	ID        string     `json:"id"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func (m BaseModel) GetID() string {
	return m.ID
}

func baseFrom(r *dal.Record) BaseModel {
	return BaseModel{
		ID:        r.ID,
		CreatedAt: r.Time("createdAt"),
		UpdatedAt: r.Time("updatedAt"),
	}
}

// collect converts the records of a to-many association.
func collect[T any](c *dal.Collection[*dal.Record], fn func(*dal.Record) *T) []T {
	out := make([]T, 0, c.Len())
	for _, r := range c.All() {
		out = append(out, *fn(r))
	}
	return out
}
