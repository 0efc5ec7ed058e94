package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/service"
)

// ProfilesHandler manages profiles and the technician directory.
type ProfilesHandler struct {
	service *service.ProfileService
}

// NewProfilesHandler constructs handler.
func NewProfilesHandler(profiles *service.ProfileService) *ProfilesHandler {
	return &ProfilesHandler{service: profiles}
}

// Me GET /me.
func (h *ProfilesHandler) Me(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	profile, err := h.service.GetProfile(c.UserContext(), identity.ActorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewProfileResponse(profile)})
}

// UpdateMe PATCH /me.
func (h *ProfilesHandler) UpdateMe(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdateProfileRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	profile, err := h.service.UpdateProfile(c.UserContext(), identity, service.ProfileInput{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewProfileResponse(profile)})
}

// CreateProfile POST /admin/profiles.
func (h *ProfilesHandler) CreateProfile(c *fiber.Ctx) error {
	var req dto.CreateProfileRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	profile, err := h.service.CreateProfile(c.UserContext(), service.ProfileInput{
		ID:       req.ID,
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		IsAdmin:  req.IsAdmin,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewProfileResponse(profile)})
}

// SetTechnicianFlag POST /admin/profiles/:id/technician.
func (h *ProfilesHandler) SetTechnicianFlag(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	var req dto.TechnicianFlagRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	profile, err := h.service.SetTechnicianFlag(c.UserContext(), identity, c.Params("id"), req.Enabled)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewProfileResponse(profile)})
}

// Directory GET /technicians.
func (h *ProfilesHandler) Directory(c *fiber.Ctx) error {
	filter := service.TechnicianDirectoryFilter{
		AvailableOnly: c.QueryBool("available"),
		Specialty:     optionalQuery(c, "specialty"),
		SearchTerm:    optionalQuery(c, "q"),
	}
	filter.Limit, filter.Offset = page(c)

	techs, err := h.service.Directory(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TechnicianResponse, 0, len(techs))
	for i := range techs {
		items = append(items, dto.NewTechnicianResponse(&techs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Technician GET /technicians/:id.
func (h *ProfilesHandler) Technician(c *fiber.Ctx) error {
	detail, err := h.service.Technician(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	reviews := make([]dto.ReviewResponse, 0, len(detail.Reviews))
	for i := range detail.Reviews {
		reviews = append(reviews, dto.NewReviewResponse(&detail.Reviews[i]))
	}
	return c.JSON(fiber.Map{"data": dto.TechnicianDetailResponse{
		TechnicianResponse: dto.NewTechnicianResponse(detail.Technician),
		Reviews:            reviews,
	}})
}

// UpdateTechnicianProfile PUT /technicians/me.
func (h *ProfilesHandler) UpdateTechnicianProfile(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	var req dto.TechnicianProfileRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	tech, err := h.service.UpdateTechnicianProfile(c.UserContext(), identity, service.TechnicianProfileInput{
		Bio:             req.Bio,
		Specialties:     req.Specialties,
		ExperienceYears: req.ExperienceYears,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTechnicianResponse(tech)})
}

// SetAvailability POST /technicians/me/availability.
func (h *ProfilesHandler) SetAvailability(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	var req dto.AvailabilityRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	tech, err := h.service.SetAvailability(c.UserContext(), identity, req.Available)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTechnicianResponse(tech)})
}
