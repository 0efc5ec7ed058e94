package dto

import (
	"github.com/spec-kit/helpdesk/internal/domain"
)

// FAQItemRequest creates or replaces an item.
type FAQItemRequest struct {
	CategorySlug     string `json:"category_slug"`
	Question         string `json:"question"`
	ShortQuestion    string `json:"short_question"`
	Answer           string `json:"answer"`
	ShortAnswer      string `json:"short_answer"`
	Keywords         string `json:"keywords"`
	Order            int    `json:"order"`
	BotPriority      int    `json:"bot_priority"`
	IsActive         *bool  `json:"is_active"`
	ShowInDashboard  *bool  `json:"show_in_dashboard"`
	ShowInBotButtons *bool  `json:"show_in_bot_buttons"`
}

// FAQCategoryResponse represents a category.
type FAQCategoryResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Icon  string `json:"icon,omitempty"`
	Order int    `json:"order"`
}

// FAQItemResponse represents an item.
type FAQItemResponse struct {
	ID               string `json:"id"`
	CategoryID       string `json:"category_id"`
	Question         string `json:"question"`
	ShortQuestion    string `json:"short_question"`
	Answer           string `json:"answer"`
	ShortAnswer      string `json:"short_answer"`
	Keywords         string `json:"keywords"`
	Order            int    `json:"order"`
	BotPriority      int    `json:"bot_priority"`
	IsActive         bool   `json:"is_active"`
	ShowInDashboard  bool   `json:"show_in_dashboard"`
	ShowInBotButtons bool   `json:"show_in_bot_buttons"`
}

// FAQSectionResponse is a category with its items.
type FAQSectionResponse struct {
	Category FAQCategoryResponse `json:"category"`
	Items    []FAQItemResponse   `json:"items"`
}

// FAQMatchResponse is one ranked search hit.
type FAQMatchResponse struct {
	Item  FAQItemResponse `json:"item"`
	Score int             `json:"score"`
}

// NewFAQCategoryResponse maps a category.
func NewFAQCategoryResponse(c domain.FAQCategory) FAQCategoryResponse {
	return FAQCategoryResponse{ID: c.ID, Name: c.Name, Slug: c.Slug, Icon: c.Icon, Order: c.Order}
}

// NewFAQItemResponse maps an item.
func NewFAQItemResponse(item *domain.FAQItem) FAQItemResponse {
	return FAQItemResponse{
		ID:               item.ID,
		CategoryID:       item.CategoryID,
		Question:         item.Question,
		ShortQuestion:    item.ShortQuestion,
		Answer:           item.Answer,
		ShortAnswer:      item.ShortAnswer,
		Keywords:         item.Keywords,
		Order:            item.Order,
		BotPriority:      item.BotPriority,
		IsActive:         item.IsActive,
		ShowInDashboard:  item.ShowInDashboard,
		ShowInBotButtons: item.ShowInBotButtons,
	}
}

// NewFAQItemResponses maps an item list.
func NewFAQItemResponses(items []domain.FAQItem) []FAQItemResponse {
	out := make([]FAQItemResponse, 0, len(items))
	for i := range items {
		out = append(out, NewFAQItemResponse(&items[i]))
	}
	return out
}
