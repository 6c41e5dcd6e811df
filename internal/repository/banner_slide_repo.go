package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/openhood/bannerd/internal/models"
	"gorm.io/gorm"
)

// bannerSlideRepo implements BannerSlideRepository using GORM.
type bannerSlideRepo struct {
	db *gorm.DB
}

// NewBannerSlideRepository creates a new BannerSlideRepository.
func NewBannerSlideRepository(db *gorm.DB) *bannerSlideRepo {
	return &bannerSlideRepo{db: db}
}

// Create creates a new banner slide.
func (r *bannerSlideRepo) Create(ctx context.Context, slide *models.BannerSlide) error {
	if err := r.db.WithContext(ctx).Create(slide).Error; err != nil {
		return fmt.Errorf("creating banner slide: %w", err)
	}
	return nil
}

// GetByID retrieves a banner slide by ID. Returns nil when not found.
func (r *bannerSlideRepo) GetByID(ctx context.Context, id models.ULID) (*models.BannerSlide, error) {
	var slide models.BannerSlide
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&slide).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting banner slide by ID: %w", err)
	}
	return &slide, nil
}

// GetAll retrieves all banner slides in carousel order.
func (r *bannerSlideRepo) GetAll(ctx context.Context) ([]*models.BannerSlide, error) {
	var slides []*models.BannerSlide
	if err := r.db.WithContext(ctx).Order("sort_order ASC, created_at ASC").Find(&slides).Error; err != nil {
		return nil, fmt.Errorf("getting all banner slides: %w", err)
	}
	return slides, nil
}

// GetEnabled retrieves all enabled banner slides in carousel order.
func (r *bannerSlideRepo) GetEnabled(ctx context.Context) ([]*models.BannerSlide, error) {
	var slides []*models.BannerSlide
	if err := r.db.WithContext(ctx).Where("enabled = ?", true).Order("sort_order ASC, created_at ASC").Find(&slides).Error; err != nil {
		return nil, fmt.Errorf("getting enabled banner slides: %w", err)
	}
	return slides, nil
}

// Update updates an existing banner slide.
func (r *bannerSlideRepo) Update(ctx context.Context, slide *models.BannerSlide) error {
	if err := r.db.WithContext(ctx).Save(slide).Error; err != nil {
		return fmt.Errorf("updating banner slide: %w", err)
	}
	return nil
}

// UpdateResolution persists the outcome of a resolution run.
func (r *bannerSlideRepo) UpdateResolution(ctx context.Context, id models.ULID, url string, state models.ResolutionState, attempts int) error {
	updates := map[string]any{
		"resolved_url":        url,
		"resolution_state":    state,
		"resolution_attempts": attempts,
		"last_resolved_at":    models.Now(),
	}

	if err := r.db.WithContext(ctx).Model(&models.BannerSlide{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("updating banner slide resolution: %w", err)
	}
	return nil
}

// UpdateSortOrders persists a new carousel order in a single transaction.
// Fails without applying anything when any ID is unknown.
func (r *bannerSlideRepo) UpdateSortOrders(ctx context.Context, ids []models.ULID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.BannerSlide{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
			return err
		}
		if count != int64(len(ids)) {
			return gorm.ErrRecordNotFound
		}

		for i, id := range ids {
			if err := tx.Model(&models.BannerSlide{}).Where("id = ?", id).Update("sort_order", i).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("updating sort orders: %w", err)
	}
	return nil
}

// Delete hard-deletes a banner slide by ID.
// Uses Unscoped so re-creating a slide immediately is not blocked by
// soft-deleted rows.
func (r *bannerSlideRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Unscoped().Where("id = ?", id).Delete(&models.BannerSlide{}).Error; err != nil {
		return fmt.Errorf("deleting banner slide: %w", err)
	}
	return nil
}

// Count returns the number of banner slides.
func (r *bannerSlideRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.BannerSlide{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting banner slides: %w", err)
	}
	return count, nil
}
