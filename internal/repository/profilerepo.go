// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/lanxat/internal/model"
)

// ProfileRepository provides persistent access to user profiles.
type ProfileRepository interface {
	// FindByID loads a profile; returns errs.ErrNotFound when absent.
	FindByID(ctx context.Context, id int64) (*model.UserProfile, error)
	// Upsert inserts a profile with zero Created, otherwise updates it. Created is set on insert.
	Upsert(ctx context.Context, p *model.UserProfile) error
}
