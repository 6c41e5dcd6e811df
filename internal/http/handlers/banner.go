// Package handlers provides HTTP API handlers for bannerd.
package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/openhood/bannerd/internal/models"
	"github.com/openhood/bannerd/internal/resolver"
	"github.com/openhood/bannerd/internal/service"
)

// BannerHandler handles banner slide API endpoints.
type BannerHandler struct {
	banners *service.BannerService
}

// NewBannerHandler creates a new banner handler.
func NewBannerHandler(banners *service.BannerService) *BannerHandler {
	return &BannerHandler{banners: banners}
}

// Register registers the banner slide routes with the API.
func (h *BannerHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listBannerSlides",
		Method:      "GET",
		Path:        "/api/v1/banners",
		Summary:     "List banner slides",
		Description: "Returns all banner slides in carousel order",
		Tags:        []string{"Banners"},
	}, h.ListSlides)

	huma.Register(api, huma.Operation{
		OperationID: "createBannerSlide",
		Method:      "POST",
		Path:        "/api/v1/banners",
		Summary:     "Create banner slide",
		Tags:        []string{"Banners"},
	}, h.CreateSlide)

	huma.Register(api, huma.Operation{
		OperationID: "resolveAllBannerSlides",
		Method:      "POST",
		Path:        "/api/v1/banners/resolve",
		Summary:     "Resolve all enabled slides",
		Description: "Runs the fallback cascade for every enabled slide",
		Tags:        []string{"Banners"},
	}, h.ResolveAll)

	huma.Register(api, huma.Operation{
		OperationID: "reorderBannerSlides",
		Method:      "PUT",
		Path:        "/api/v1/banners/reorder",
		Summary:     "Reorder banner slides",
		Description: "Assigns carousel positions following the order of the given slide IDs",
		Tags:        []string{"Banners"},
	}, h.ReorderSlides)

	huma.Register(api, huma.Operation{
		OperationID: "getResolverStats",
		Method:      "GET",
		Path:        "/api/v1/resolver/stats",
		Summary:     "Get resolver statistics",
		Description: "Returns slide resolution state tallies and tracked fallback attempts",
		Tags:        []string{"Resolver"},
	}, h.GetResolverStats)

	huma.Register(api, huma.Operation{
		OperationID: "getBannerSlide",
		Method:      "GET",
		Path:        "/api/v1/banners/{id}",
		Summary:     "Get banner slide",
		Tags:        []string{"Banners"},
	}, h.GetSlide)

	huma.Register(api, huma.Operation{
		OperationID: "updateBannerSlide",
		Method:      "PUT",
		Path:        "/api/v1/banners/{id}",
		Summary:     "Update banner slide",
		Description: "Updates a banner slide. Changing the media reference resets its resolution state.",
		Tags:        []string{"Banners"},
	}, h.UpdateSlide)

	huma.Register(api, huma.Operation{
		OperationID: "deleteBannerSlide",
		Method:      "DELETE",
		Path:        "/api/v1/banners/{id}",
		Summary:     "Delete banner slide",
		Tags:        []string{"Banners"},
	}, h.DeleteSlide)

	huma.Register(api, huma.Operation{
		OperationID: "resolveBannerSlide",
		Method:      "POST",
		Path:        "/api/v1/banners/{id}/resolve",
		Summary:     "Resolve banner slide media",
		Description: "Runs the fallback cascade for the slide's media reference and persists the result",
		Tags:        []string{"Banners"},
	}, h.ResolveSlide)

	huma.Register(api, huma.Operation{
		OperationID: "retryBannerSlide",
		Method:      "POST",
		Path:        "/api/v1/banners/{id}/retry",
		Summary:     "Retry banner slide resolution",
		Description: "Discards tried-candidate state and runs the cascade again from the top",
		Tags:        []string{"Banners"},
	}, h.RetrySlide)
}

// BannerSlideResponse represents a banner slide in API responses.
type BannerSlideResponse struct {
	ID                 string  `json:"id"`
	Title              string  `json:"title"`
	MediaRef           string  `json:"media_ref"`
	MediaType          string  `json:"media_type"`
	LinkURL            string  `json:"link_url,omitempty"`
	SortOrder          int     `json:"sort_order"`
	Enabled            bool    `json:"enabled"`
	ResolvedURL        string  `json:"resolved_url,omitempty"`
	ResolutionState    string  `json:"resolution_state"`
	ResolutionAttempts int     `json:"resolution_attempts"`
	LastResolvedAt     *string `json:"last_resolved_at,omitempty"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
}

func slideToResponse(slide *models.BannerSlide) BannerSlideResponse {
	resp := BannerSlideResponse{
		ID:                 slide.ID.String(),
		Title:              slide.Title,
		MediaRef:           slide.MediaRef,
		MediaType:          string(slide.MediaType),
		LinkURL:            slide.LinkURL,
		SortOrder:          slide.SortOrder,
		Enabled:            slide.IsEnabled(),
		ResolvedURL:        slide.ResolvedURL,
		ResolutionState:    string(slide.ResolutionState),
		ResolutionAttempts: slide.ResolutionAttempts,
		CreatedAt:          slide.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:          slide.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if slide.LastResolvedAt != nil {
		formatted := slide.LastResolvedAt.UTC().Format(time.RFC3339)
		resp.LastResolvedAt = &formatted
	}
	return resp
}

// BannerSlideRequest is the request body for creating or updating a slide.
type BannerSlideRequest struct {
	Title     string `json:"title" required:"true" maxLength:"255"`
	MediaRef  string `json:"media_ref" required:"true" maxLength:"2048"`
	MediaType string `json:"media_type,omitempty" enum:"image,video,"`
	LinkURL   string `json:"link_url,omitempty" maxLength:"2048"`
	SortOrder int    `json:"sort_order,omitempty"`
	Enabled   *bool  `json:"enabled,omitempty"`
}

func (r *BannerSlideRequest) apply(slide *models.BannerSlide) {
	slide.Title = r.Title
	slide.MediaRef = r.MediaRef
	slide.MediaType = models.MediaType(r.MediaType)
	slide.LinkURL = r.LinkURL
	slide.SortOrder = r.SortOrder
	if r.Enabled != nil {
		slide.Enabled = r.Enabled
	}
}

// ListSlidesInput is the input for listing banner slides.
type ListSlidesInput struct {
	EnabledOnly bool `query:"enabled_only" default:"false"`
}

// ListSlidesOutput is the output for listing banner slides.
type ListSlidesOutput struct {
	Body struct {
		Slides []BannerSlideResponse `json:"slides"`
		Total  int                   `json:"total"`
	}
}

// ListSlides returns all banner slides in carousel order.
func (h *BannerHandler) ListSlides(ctx context.Context, input *ListSlidesInput) (*ListSlidesOutput, error) {
	var (
		slides []*models.BannerSlide
		err    error
	)
	if input.EnabledOnly {
		slides, err = h.banners.ListEnabled(ctx)
	} else {
		slides, err = h.banners.List(ctx)
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list banner slides: " + err.Error())
	}

	resp := &ListSlidesOutput{}
	resp.Body.Slides = make([]BannerSlideResponse, 0, len(slides))
	for _, slide := range slides {
		resp.Body.Slides = append(resp.Body.Slides, slideToResponse(slide))
	}
	resp.Body.Total = len(slides)
	return resp, nil
}

// CreateSlideInput is the input for creating a banner slide.
type CreateSlideInput struct {
	Body BannerSlideRequest
}

// CreateSlideOutput is the output for creating a banner slide.
type CreateSlideOutput struct {
	Body BannerSlideResponse
}

// CreateSlide creates a new banner slide.
func (h *BannerHandler) CreateSlide(ctx context.Context, input *CreateSlideInput) (*CreateSlideOutput, error) {
	slide := &models.BannerSlide{}
	input.Body.apply(slide)

	if err := h.banners.Create(ctx, slide); err != nil {
		if isValidationError(err) {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		return nil, huma.Error500InternalServerError("Failed to create banner slide: " + err.Error())
	}

	return &CreateSlideOutput{Body: slideToResponse(slide)}, nil
}

// GetSlideInput is the input for getting a banner slide.
type GetSlideInput struct {
	ID string `path:"id" required:"true"`
}

// GetSlideOutput is the output for getting a banner slide.
type GetSlideOutput struct {
	Body BannerSlideResponse
}

// GetSlide returns a banner slide by ID.
func (h *BannerHandler) GetSlide(ctx context.Context, input *GetSlideInput) (*GetSlideOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid slide ID")
	}

	slide, err := h.banners.Get(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrSlideNotFound) {
			return nil, huma.Error404NotFound("Banner slide not found")
		}
		return nil, huma.Error500InternalServerError("Failed to get banner slide: " + err.Error())
	}

	return &GetSlideOutput{Body: slideToResponse(slide)}, nil
}

// UpdateSlideInput is the input for updating a banner slide.
type UpdateSlideInput struct {
	ID   string `path:"id" required:"true"`
	Body BannerSlideRequest
}

// UpdateSlideOutput is the output for updating a banner slide.
type UpdateSlideOutput struct {
	Body BannerSlideResponse
}

// UpdateSlide updates an existing banner slide.
func (h *BannerHandler) UpdateSlide(ctx context.Context, input *UpdateSlideInput) (*UpdateSlideOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid slide ID")
	}

	slide, err := h.banners.Get(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrSlideNotFound) {
			return nil, huma.Error404NotFound("Banner slide not found")
		}
		return nil, huma.Error500InternalServerError("Failed to get banner slide: " + err.Error())
	}

	input.Body.apply(slide)

	if err := h.banners.Update(ctx, slide); err != nil {
		if isValidationError(err) {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		return nil, huma.Error500InternalServerError("Failed to update banner slide: " + err.Error())
	}

	return &UpdateSlideOutput{Body: slideToResponse(slide)}, nil
}

// DeleteSlideInput is the input for deleting a banner slide.
type DeleteSlideInput struct {
	ID string `path:"id" required:"true"`
}

// DeleteSlideOutput is the output for deleting a banner slide.
type DeleteSlideOutput struct {
	Body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
}

// DeleteSlide deletes a banner slide.
func (h *BannerHandler) DeleteSlide(ctx context.Context, input *DeleteSlideInput) (*DeleteSlideOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid slide ID")
	}

	if err := h.banners.Delete(ctx, id); err != nil {
		if errors.Is(err, service.ErrSlideNotFound) {
			return nil, huma.Error404NotFound("Banner slide not found")
		}
		return nil, huma.Error500InternalServerError("Failed to delete banner slide: " + err.Error())
	}

	resp := &DeleteSlideOutput{}
	resp.Body.Success = true
	resp.Body.Message = "Banner slide deleted"
	return resp, nil
}

// ReorderSlidesInput is the input for reordering banner slides.
type ReorderSlidesInput struct {
	Body struct {
		IDs []string `json:"ids" required:"true" minItems:"1"`
	}
}

// ReorderSlidesOutput is the output for reordering banner slides.
type ReorderSlidesOutput struct {
	Body struct {
		Slides []BannerSlideResponse `json:"slides"`
	}
}

// ReorderSlides assigns carousel positions following the given ID order.
func (h *BannerHandler) ReorderSlides(ctx context.Context, input *ReorderSlidesInput) (*ReorderSlidesOutput, error) {
	ids := make([]models.ULID, 0, len(input.Body.IDs))
	seen := make(map[string]bool, len(input.Body.IDs))
	for _, raw := range input.Body.IDs {
		id, err := models.ParseULID(raw)
		if err != nil {
			return nil, huma.Error400BadRequest("Invalid slide ID: " + raw)
		}
		if seen[raw] {
			return nil, huma.Error400BadRequest("Duplicate slide ID: " + raw)
		}
		seen[raw] = true
		ids = append(ids, id)
	}

	if err := h.banners.Reorder(ctx, ids); err != nil {
		if errors.Is(err, service.ErrSlideNotFound) {
			return nil, huma.Error404NotFound("Banner slide not found")
		}
		return nil, huma.Error500InternalServerError("Failed to reorder banner slides: " + err.Error())
	}

	slides, err := h.banners.List(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list banner slides: " + err.Error())
	}

	resp := &ReorderSlidesOutput{}
	resp.Body.Slides = make([]BannerSlideResponse, 0, len(slides))
	for _, slide := range slides {
		resp.Body.Slides = append(resp.Body.Slides, slideToResponse(slide))
	}
	return resp, nil
}

// ResolverStatsOutput is the output for resolver statistics.
type ResolverStatsOutput struct {
	Body service.ResolutionStats
}

// GetResolverStats returns resolution state tallies across all slides.
func (h *BannerHandler) GetResolverStats(ctx context.Context, input *struct{}) (*ResolverStatsOutput, error) {
	stats, err := h.banners.Stats(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to collect resolver stats: " + err.Error())
	}
	return &ResolverStatsOutput{Body: *stats}, nil
}

// ResolutionResponse represents the outcome of a resolution run.
type ResolutionResponse struct {
	Reference string   `json:"reference"`
	URL       string   `json:"url"`
	State     string   `json:"state"`
	Attempts  int      `json:"attempts"`
	Tried     []string `json:"tried,omitempty"`
}

func resultToResponse(result *resolver.Result) ResolutionResponse {
	return ResolutionResponse{
		Reference: result.Reference,
		URL:       result.URL,
		State:     result.State.String(),
		Attempts:  result.Attempts,
		Tried:     result.Tried,
	}
}

// ResolveSlideInput is the input for resolving a banner slide.
type ResolveSlideInput struct {
	ID string `path:"id" required:"true"`
}

// ResolveSlideOutput is the output for resolving a banner slide.
type ResolveSlideOutput struct {
	Body ResolutionResponse
}

// ResolveSlide runs the fallback cascade for a slide's media reference.
func (h *BannerHandler) ResolveSlide(ctx context.Context, input *ResolveSlideInput) (*ResolveSlideOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid slide ID")
	}

	result, err := h.banners.Resolve(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrSlideNotFound) {
			return nil, huma.Error404NotFound("Banner slide not found")
		}
		return nil, huma.Error500InternalServerError("Failed to resolve banner slide: " + err.Error())
	}

	return &ResolveSlideOutput{Body: resultToResponse(result)}, nil
}

// RetrySlideInput is the input for retrying resolution of a banner slide.
type RetrySlideInput struct {
	ID string `path:"id" required:"true"`
}

// RetrySlideOutput is the output for retrying resolution of a banner slide.
type RetrySlideOutput struct {
	Body ResolutionResponse
}

// RetrySlide discards tried-candidate state and resolves from the top.
func (h *BannerHandler) RetrySlide(ctx context.Context, input *RetrySlideInput) (*RetrySlideOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid slide ID")
	}

	result, err := h.banners.RetryResolve(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrSlideNotFound) {
			return nil, huma.Error404NotFound("Banner slide not found")
		}
		return nil, huma.Error500InternalServerError("Failed to retry banner slide: " + err.Error())
	}

	return &RetrySlideOutput{Body: resultToResponse(result)}, nil
}

// ResolveAllInput is the input for resolving all enabled slides.
type ResolveAllInput struct{}

// ResolveAllOutput is the output for resolving all enabled slides.
type ResolveAllOutput struct {
	Body struct {
		Settled   int    `json:"settled"`
		Timestamp string `json:"timestamp"`
	}
}

// ResolveAll resolves every enabled slide.
func (h *BannerHandler) ResolveAll(ctx context.Context, input *ResolveAllInput) (*ResolveAllOutput, error) {
	settled, err := h.banners.ResolveAll(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to resolve banner slides: " + err.Error())
	}

	resp := &ResolveAllOutput{}
	resp.Body.Settled = settled
	resp.Body.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return resp, nil
}

// isValidationError reports whether err is a slide validation failure.
func isValidationError(err error) bool {
	var vErr models.ErrValidation
	if errors.As(err, &vErr) {
		return true
	}
	return errors.Is(err, models.ErrTitleRequired) ||
		errors.Is(err, models.ErrMediaRefRequired) ||
		errors.Is(err, models.ErrInvalidMediaType) ||
		errors.Is(err, models.ErrInvalidLinkURL)
}
