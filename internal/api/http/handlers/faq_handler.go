package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/service"
)

// FAQHandler serves the help center catalogue.
type FAQHandler struct {
	service *service.FAQService
}

// NewFAQHandler constructs handler.
func NewFAQHandler(faq *service.FAQService) *FAQHandler {
	return &FAQHandler{service: faq}
}

// Categories GET /faq/categories.
func (h *FAQHandler) Categories(c *fiber.Ctx) error {
	categories, err := h.service.Categories(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.FAQCategoryResponse, 0, len(categories))
	for _, category := range categories {
		items = append(items, dto.NewFAQCategoryResponse(category))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Sections GET /faq?dashboard=true.
func (h *FAQHandler) Sections(c *fiber.Ctx) error {
	sections, err := h.service.Sections(c.UserContext(), c.QueryBool("dashboard"))
	if err != nil {
		return err
	}
	resp := make([]dto.FAQSectionResponse, 0, len(sections))
	for _, section := range sections {
		resp = append(resp, dto.FAQSectionResponse{
			Category: dto.NewFAQCategoryResponse(section.Category),
			Items:    dto.NewFAQItemResponses(section.Items),
		})
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Category GET /faq/categories/:slug.
func (h *FAQHandler) Category(c *fiber.Ctx) error {
	section, err := h.service.ListByCategory(c.UserContext(), c.Params("slug"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FAQSectionResponse{
		Category: dto.NewFAQCategoryResponse(section.Category),
		Items:    dto.NewFAQItemResponses(section.Items),
	}})
}

// Item GET /faq/items/:id.
func (h *FAQHandler) Item(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	item, err := h.service.GetItem(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewFAQItemResponse(item)})
}

// Search GET /faq/search?q=.
func (h *FAQHandler) Search(c *fiber.Ctx) error {
	matches, err := h.service.Search(c.UserContext(), c.Query("q"))
	if err != nil {
		return err
	}
	resp := make([]dto.FAQMatchResponse, 0, len(matches))
	for i := range matches {
		resp = append(resp, dto.FAQMatchResponse{Item: dto.NewFAQItemResponse(&matches[i].FAQ), Score: matches[i].Score})
	}
	return c.JSON(fiber.Map{"data": resp})
}

// CreateItem POST /faq/items.
func (h *FAQHandler) CreateItem(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	var req dto.FAQItemRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	item, err := h.service.CreateItem(c.UserContext(), identity, faqInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewFAQItemResponse(item)})
}

// UpdateItem PUT /faq/items/:id.
func (h *FAQHandler) UpdateItem(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	var req dto.FAQItemRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	item, err := h.service.UpdateItem(c.UserContext(), identity, c.Params("id"), faqInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewFAQItemResponse(item)})
}

// faqInput maps the request; omitted flags default to true.
func faqInput(req dto.FAQItemRequest) service.FAQItemInput {
	flag := func(v *bool) bool { return v == nil || *v }
	return service.FAQItemInput{
		CategorySlug:     req.CategorySlug,
		Question:         req.Question,
		ShortQuestion:    req.ShortQuestion,
		Answer:           req.Answer,
		ShortAnswer:      req.ShortAnswer,
		Keywords:         req.Keywords,
		Order:            req.Order,
		BotPriority:      req.BotPriority,
		IsActive:         flag(req.IsActive),
		ShowInDashboard:  flag(req.ShowInDashboard),
		ShowInBotButtons: flag(req.ShowInBotButtons),
	}
}
