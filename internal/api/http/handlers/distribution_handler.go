package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/lead-distribution/internal/api/dto"
	"github.com/spec-kit/lead-distribution/internal/auth"
	"github.com/spec-kit/lead-distribution/internal/domain"
	"github.com/spec-kit/lead-distribution/internal/service"
	apperrors "github.com/spec-kit/lead-distribution/pkg/errorutil"
)

const maxListLimit = 500

// DistributionHandler exposes lead distribution endpoints.
type DistributionHandler struct {
	service      *service.DistributionService
	defaultCount int
}

// NewDistributionHandler constructs handler. defaultCount is used when a batch
// request omits count.
func NewDistributionHandler(distributionService *service.DistributionService, defaultCount int) *DistributionHandler {
	return &DistributionHandler{service: distributionService, defaultCount: defaultCount}
}

type countAssigner func(ctx context.Context, companyID int64, assignedBy *int64, count int) (*domain.AssignmentResult, error)

// GetSettings GET /settings. Data is null until settings are first saved.
func (h *DistributionHandler) GetSettings(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	settings, err := h.service.GetSettings(c.UserContext(), principal.CompanyID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSettingsResponse(settings)})
}

// UpdateSettings PUT /settings.
func (h *DistributionHandler) UpdateSettings(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	patch, err := dto.DecodeSettingsPatch(c.Body())
	if err != nil {
		return err
	}
	settings, err := h.service.UpsertSettings(c.UserContext(), principal.CompanyID, principal.Actor(), patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSettingsResponse(settings)})
}

// AssignManual POST /assign/manual.
func (h *DistributionHandler) AssignManual(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ManualAssignmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidArgument("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	result, err := h.service.AssignManual(c.UserContext(), principal.CompanyID, principal.Actor(), req.Batches())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAssignmentResponse(result)})
}

// AssignAutomatic POST /assign/automatic.
func (h *DistributionHandler) AssignAutomatic(c *fiber.Ctx) error {
	return h.assignCount(c, h.service.AssignAutomatic, h.defaultCount)
}

// AssignRoundRobin POST /assign/round-robin.
func (h *DistributionHandler) AssignRoundRobin(c *fiber.Ctx) error {
	return h.assignCount(c, h.service.AssignRoundRobin, h.defaultCount)
}

// AssignPerformanceBased POST /assign/performance-based.
func (h *DistributionHandler) AssignPerformanceBased(c *fiber.Ctx) error {
	return h.assignCount(c, h.service.AssignPerformanceBased, h.defaultCount)
}

// Run POST /run. Without a count the saved default_count applies.
func (h *DistributionHandler) Run(c *fiber.Ctx) error {
	return h.assignCount(c, h.service.RunConfigured, 0)
}

// ReseedRotation POST /round-robin/reseed.
func (h *DistributionHandler) ReseedRotation(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	settings, err := h.service.ReseedRotation(c.UserContext(), principal.CompanyID, principal.Actor())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSettingsResponse(settings)})
}

// ListUnassigned GET /leads/unassigned?limit=.
func (h *DistributionHandler) ListUnassigned(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxListLimit {
			return apperrors.NewInvalidArgument("limit must be between 1 and 500", map[string]any{"limit": raw})
		}
		limit = parsed
	}
	leads, err := h.service.ListUnassigned(c.UserContext(), principal.CompanyID, limit)
	if err != nil {
		return err
	}
	items := make([]dto.LeadSummary, 0, len(leads))
	for _, lead := range leads {
		items = append(items, dto.LeadSummary{
			ID:        lead.ID,
			Name:      lead.Name,
			Email:     lead.Email,
			Phone:     lead.Phone,
			Source:    lead.Source,
			Status:    lead.Status,
			CreatedAt: lead.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// StaffWorkload GET /staff/workload.
func (h *DistributionHandler) StaffWorkload(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	roster, err := h.service.StaffWorkload(c.UserContext(), principal.CompanyID)
	if err != nil {
		return err
	}
	items := make([]dto.StaffWorkloadEntry, 0, len(roster))
	for _, member := range roster {
		items = append(items, dto.StaffWorkloadEntry{
			StaffID:            member.ID,
			Name:               member.Name,
			Role:               member.Role,
			OpenLeadCount:      member.OpenLeadCount,
			AssignedThisPeriod: member.AssignedThisPeriod,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// StaffPerformance GET /staff/performance.
func (h *DistributionHandler) StaffPerformance(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	ranked, err := h.service.StaffPerformance(c.UserContext(), principal.CompanyID)
	if err != nil {
		return err
	}
	items := make([]dto.StaffPerformanceEntry, 0, len(ranked))
	for _, member := range ranked {
		items = append(items, dto.StaffPerformanceEntry{
			StaffID:          member.ID,
			Name:             member.Name,
			Role:             member.Role,
			PerformanceScore: member.PerformanceScore,
			ConversionRate:   member.ConversionRate,
			PerformanceRank:  member.Rank,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

func (h *DistributionHandler) assignCount(c *fiber.Ctx, assign countAssigner, fallback int) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CountRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewInvalidArgument("invalid payload", nil)
		}
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	count := fallback
	if req.Count != nil {
		count = *req.Count
	}
	result, err := assign(c.UserContext(), principal.CompanyID, principal.Actor(), count)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAssignmentResponse(result)})
}

func requirePrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}
