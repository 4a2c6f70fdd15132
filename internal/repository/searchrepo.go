package repository

import (
	"context"
	"time"

	"github.com/and161185/lanxat/internal/model"
)

// SearchRepository is the append-only log of completed translations.
type SearchRepository interface {
	// Append stores one entry.
	Append(ctx context.Context, e model.SearchEntry) error
	// Recent lists entries newest first.
	Recent(ctx context.Context, f SearchFilter) ([]model.SearchEntry, error)
}

// SearchFilter narrows Recent. Zero fields are ignored.
type SearchFilter struct {
	UserID int64
	Since  time.Time
	Limit  uint64
}
