package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSlide() *BannerSlide {
	return &BannerSlide{
		Title:    "Summer Fair",
		MediaRef: "https://store.example/banner-uploads/summer.png",
	}
}

func TestBannerSlideValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*BannerSlide)
		wantErr error
	}{
		{
			name:   "valid slide",
			mutate: func(s *BannerSlide) {},
		},
		{
			name:    "missing title",
			mutate:  func(s *BannerSlide) { s.Title = "  " },
			wantErr: ErrTitleRequired,
		},
		{
			name:    "missing media ref",
			mutate:  func(s *BannerSlide) { s.MediaRef = "" },
			wantErr: ErrMediaRefRequired,
		},
		{
			name:    "bad media type",
			mutate:  func(s *BannerSlide) { s.MediaType = "audio" },
			wantErr: ErrInvalidMediaType,
		},
		{
			name:   "video media type",
			mutate: func(s *BannerSlide) { s.MediaType = MediaTypeVideo },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slide := validSlide()
			tt.mutate(slide)
			err := slide.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBannerSlideValidateDefaultsMediaType(t *testing.T) {
	slide := validSlide()
	slide.MediaType = ""
	require.NoError(t, slide.Validate())
	assert.Equal(t, MediaTypeImage, slide.MediaType)
}

func TestBannerSlideEnabled(t *testing.T) {
	slide := validSlide()
	assert.True(t, slide.IsEnabled())

	slide.Enabled = BoolPtr(false)
	assert.False(t, slide.IsEnabled())
}

func TestBannerSlideClearResolution(t *testing.T) {
	now := Time{}
	slide := validSlide()
	slide.ResolvedURL = "/proxy/banner-uploads/summer.png"
	slide.ResolutionState = ResolutionLoaded
	slide.ResolutionAttempts = 2
	slide.LastResolvedAt = &now

	slide.ClearResolution()

	assert.Empty(t, slide.ResolvedURL)
	assert.Equal(t, ResolutionPending, slide.ResolutionState)
	assert.Zero(t, slide.ResolutionAttempts)
	assert.Nil(t, slide.LastResolvedAt)
}
