package models

import (
	"net/url"
	"strings"
)

// MediaType represents the kind of media a banner slide shows.
type MediaType string

const (
	// MediaTypeImage represents a still image slide.
	MediaTypeImage MediaType = "image"
	// MediaTypeVideo represents a video slide.
	MediaTypeVideo MediaType = "video"
)

// ResolutionState mirrors the resolver's terminal states for persistence.
type ResolutionState string

const (
	// ResolutionPending indicates the slide has not been resolved yet.
	ResolutionPending ResolutionState = "pending"
	// ResolutionLoaded indicates a working URL was found.
	ResolutionLoaded ResolutionState = "loaded"
	// ResolutionExhausted indicates every candidate failed and the
	// placeholder is in effect.
	ResolutionExhausted ResolutionState = "exhausted"
)

// BannerSlide represents one slide of the homepage banner carousel. MediaRef
// is the original stored reference; it is replaced wholesale when an editor
// saves new media, which also resets any resolution state for the slide.
type BannerSlide struct {
	BaseModel

	// Title is displayed as the slide caption.
	Title string `gorm:"not null;size:255" json:"title"`

	// MediaRef is the original, unmodified media source string. May be an
	// absolute object storage URL, a relative upload path, or an
	// already-normalized proxy path.
	MediaRef string `gorm:"not null;size:2048" json:"media_ref"`

	// MediaType indicates whether the slide shows an image or a video.
	MediaType MediaType `gorm:"not null;default:'image';size:20" json:"media_type"`

	// LinkURL is an optional click-through target.
	LinkURL string `gorm:"size:2048" json:"link_url,omitempty"`

	// SortOrder determines carousel position. Lower sorts first.
	SortOrder int `gorm:"default:0;index" json:"sort_order"`

	// Enabled indicates whether this slide is shown in the carousel.
	// Pointer to distinguish "not set" (nil, defaults true) from
	// "explicitly false".
	Enabled *bool `gorm:"default:true" json:"enabled"`

	// ResolvedURL is the last known working URL for MediaRef, or the
	// placeholder when resolution was exhausted.
	ResolvedURL string `gorm:"size:2048" json:"resolved_url,omitempty"`

	// ResolutionState records the outcome of the last resolution run.
	ResolutionState ResolutionState `gorm:"not null;default:'pending';size:20" json:"resolution_state"`

	// ResolutionAttempts is how many candidates were probed in the last run.
	ResolutionAttempts int `gorm:"default:0" json:"resolution_attempts"`

	// LastResolvedAt is when resolution last settled.
	LastResolvedAt *Time `json:"last_resolved_at,omitempty"`
}

// TableName returns the table name for BannerSlide.
func (BannerSlide) TableName() string {
	return "banner_slides"
}

// IsEnabled returns whether the slide should be shown.
func (s *BannerSlide) IsEnabled() bool {
	return BoolVal(s.Enabled)
}

// IsVideo returns whether the slide's media is a video.
func (s *BannerSlide) IsVideo() bool {
	return s.MediaType == MediaTypeVideo
}

// Validate checks the slide's fields before persistence.
func (s *BannerSlide) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return ErrTitleRequired
	}
	if strings.TrimSpace(s.MediaRef) == "" {
		return ErrMediaRefRequired
	}
	switch s.MediaType {
	case MediaTypeImage, MediaTypeVideo:
	case "":
		s.MediaType = MediaTypeImage
	default:
		return ErrInvalidMediaType
	}
	if s.LinkURL != "" {
		if _, err := url.Parse(s.LinkURL); err != nil {
			return ErrInvalidLinkURL
		}
	}
	return nil
}

// ClearResolution resets persisted resolution state, used when MediaRef
// changes or a manual retry is requested.
func (s *BannerSlide) ClearResolution() {
	s.ResolvedURL = ""
	s.ResolutionState = ResolutionPending
	s.ResolutionAttempts = 0
	s.LastResolvedAt = nil
}
