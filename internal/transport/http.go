package transport

import (
	"errors"
	"log/slog"

	"telegram-campaign-dispatch/internal/app"
	"telegram-campaign-dispatch/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handler holds all HTTP handlers of the campaign administration API.
type Handler struct {
	svc      *app.CampaignService
	validate *validator.Validate
	log      *slog.Logger
}

// NewHandler wires up a Handler with its dependencies.
func NewHandler(svc *app.CampaignService, log *slog.Logger) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
		log:      log,
	}
}

// Register mounts all routes onto the given Fiber router.
func (h *Handler) Register(router fiber.Router) {
	router.Post("/campaigns", h.CreateCampaign)
	router.Get("/campaigns", h.ListCampaigns)
	router.Get("/campaigns/:id", h.GetCampaign)
	router.Get("/campaigns/:id/progress", h.Progress)
	router.Post("/campaigns/:id/resend", h.Resend)
	router.Post("/campaigns/:id/cancel", h.Cancel)
}

// ── Campaign API ──────────────────────────────────────────────────────────────

type selectorPayload struct {
	Kind          string            `json:"kind" validate:"required,oneof=all ids segment"`
	RecipientIDs  []int64           `json:"recipient_ids,omitempty"`
	Segment       string            `json:"segment,omitempty"`
	SegmentParams map[string]string `json:"segment_params,omitempty"`
}

type createCampaignRequest struct {
	Message           string          `json:"message" validate:"required,max=4096"`
	AttachmentRefs    []string        `json:"attachment_refs,omitempty" validate:"max=10,dive,required"`
	RecipientSelector selectorPayload `json:"recipient_selector" validate:"required"`
}

type createCampaignResponse struct {
	CampaignID string `json:"campaign_id"`
}

// CreateCampaign accepts a campaign intent and enqueues its launch.
//
// POST /campaigns
// Body: { "message": "...", "attachment_refs": [...], "recipient_selector": {...} }
func (h *Handler) CreateCampaign(c *fiber.Ctx) error {
	var req createCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	campaign, err := h.svc.CreateCampaign(c.Context(), app.CreateCampaignRequest{
		Message:        req.Message,
		AttachmentRefs: req.AttachmentRefs,
		Selector: domain.Selector{
			Kind:          domain.SelectorKind(req.RecipientSelector.Kind),
			RecipientIDs:  req.RecipientSelector.RecipientIDs,
			Segment:       req.RecipientSelector.Segment,
			SegmentParams: req.RecipientSelector.SegmentParams,
		},
	})
	if err != nil {
		var selErr *domain.SelectorError
		if errors.As(err, &selErr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": selErr.Error()})
		}
		h.log.Error("create campaign", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.Status(fiber.StatusAccepted).JSON(createCampaignResponse{
		CampaignID: campaign.ID.String(),
	})
}

// ListCampaigns returns a page of persisted campaigns.
//
// GET /campaigns?page=1&page_size=20
func (h *Handler) ListCampaigns(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	pageSize := c.QueryInt("page_size", 20)

	campaigns, total, err := h.svc.ListCampaigns(c.Context(), page, pageSize)
	if err != nil {
		h.log.Error("list campaigns", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(fiber.Map{
		"campaigns": campaigns,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetCampaign returns one persisted campaign with its aggregates.
//
// GET /campaigns/:id
func (h *Handler) GetCampaign(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "id must be a valid UUID"})
	}

	campaign, err := h.svc.GetCampaign(c.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrCampaignNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "campaign not found"})
		}
		h.log.Error("get campaign", "campaign_id", id, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(campaign)
}

// Progress returns the live counters of a running campaign, or the final
// aggregates once the run is durable.
//
// GET /campaigns/:id/progress
func (h *Handler) Progress(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "id must be a valid UUID"})
	}

	snap, err := h.svc.Progress(c.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrCampaignNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "campaign not found"})
		}
		h.log.Error("campaign progress", "campaign_id", id, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(fiber.Map{
		"current": snap.Current,
		"total":   snap.Total,
		"success": snap.Success,
		"failed":  snap.Failed,
		"status":  snap.State,
	})
}

// Resend enqueues a retry of the failed subset of a campaign.
//
// POST /campaigns/:id/resend
func (h *Handler) Resend(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "id must be a valid UUID"})
	}

	if err := h.svc.Resend(c.Context(), id); err != nil {
		if errors.Is(err, domain.ErrCampaignNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "campaign not found"})
		}
		h.log.Error("resend campaign", "campaign_id", id, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.SendStatus(fiber.StatusAccepted)
}

// Cancel flags a running campaign for cooperative cancellation.
//
// POST /campaigns/:id/cancel
func (h *Handler) Cancel(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "id must be a valid UUID"})
	}

	if err := h.svc.Cancel(c.Context(), id); err != nil {
		h.log.Error("cancel campaign", "campaign_id", id, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.SendStatus(fiber.StatusAccepted)
}
