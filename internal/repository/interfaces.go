// Package repository defines data access interfaces for bannerd entities.
// All database access goes through these interfaces, enabling easy testing
// and database backend switching.
package repository

import (
	"context"

	"github.com/openhood/bannerd/internal/models"
)

// BannerSlideRepository defines operations for banner slide persistence.
type BannerSlideRepository interface {
	// Create creates a new banner slide.
	Create(ctx context.Context, slide *models.BannerSlide) error
	// GetByID retrieves a banner slide by ID. Returns nil when not found.
	GetByID(ctx context.Context, id models.ULID) (*models.BannerSlide, error)
	// GetAll retrieves all banner slides in carousel order.
	GetAll(ctx context.Context) ([]*models.BannerSlide, error)
	// GetEnabled retrieves all enabled banner slides in carousel order.
	GetEnabled(ctx context.Context) ([]*models.BannerSlide, error)
	// Update updates an existing banner slide.
	Update(ctx context.Context, slide *models.BannerSlide) error
	// UpdateResolution persists the outcome of a resolution run.
	UpdateResolution(ctx context.Context, id models.ULID, url string, state models.ResolutionState, attempts int) error
	// UpdateSortOrders persists a new carousel order. Slide IDs are assigned
	// ascending sort orders following their position in ids.
	UpdateSortOrders(ctx context.Context, ids []models.ULID) error
	// Delete deletes a banner slide by ID.
	Delete(ctx context.Context, id models.ULID) error
	// Count returns the number of banner slides.
	Count(ctx context.Context) (int64, error)
}
