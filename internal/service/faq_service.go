package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/cache"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/faqbot"
	"github.com/spec-kit/helpdesk/internal/faqseed"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// FAQService serves the help center catalogue and the bot corpus.
type FAQService struct {
	repos  repository.Repositories
	tx     repository.TxManager
	cache  cache.CorpusCache
	engine *faqbot.Engine
	logger *zap.Logger
}

// FAQDependencies bundles collaborators for the FAQ service.
type FAQDependencies struct {
	Repos  repository.Repositories
	Tx     repository.TxManager
	Cache  cache.CorpusCache
	Engine *faqbot.Engine
	Logger *zap.Logger
}

// FAQItemInput is the admin-editable part of an FAQ item.
type FAQItemInput struct {
	CategorySlug     string
	Question         string
	ShortQuestion    string
	Answer           string
	ShortAnswer      string
	Keywords         string
	Order            int
	BotPriority      int
	IsActive         bool
	ShowInDashboard  bool
	ShowInBotButtons bool
}

// FAQSection is one category with its items, as shown on the help center.
type FAQSection struct {
	Category domain.FAQCategory
	Items    []domain.FAQItem
}

// ImportResult summarises a seed import.
type ImportResult struct {
	Categories int
	Created    int
	Updated    int
}

// NewFAQService constructs the service.
func NewFAQService(deps FAQDependencies) *FAQService {
	engine := deps.Engine
	if engine == nil {
		engine = faqbot.NewEngine()
	}
	return &FAQService{
		repos:  deps.Repos,
		tx:     deps.Tx,
		cache:  deps.Cache,
		engine: engine,
		logger: loggerOrNop(deps.Logger),
	}
}

// ActiveCorpus returns every active item, from the cache when possible.
func (s *FAQService) ActiveCorpus(ctx context.Context) ([]domain.FAQItem, error) {
	if s.cache != nil {
		items, hit, err := s.cache.Get(ctx)
		if err != nil {
			s.logger.Warn("faq corpus cache read failed", zap.Error(err))
		} else if hit {
			return items, nil
		}
	}
	items, err := s.repos.FAQ.List(ctx, repository.FAQFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, items); err != nil {
			s.logger.Warn("faq corpus cache write failed", zap.Error(err))
		}
	}
	return items, nil
}

func (s *FAQService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("faq corpus cache invalidation failed", zap.Error(err))
	}
}

// Categories lists the catalogue's categories in display order.
func (s *FAQService) Categories(ctx context.Context) ([]domain.FAQCategory, error) {
	categories, err := s.repos.FAQ.ListCategories(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return categories, nil
}

// Sections groups active items by category. With dashboardOnly only items
// flagged for the dashboard are kept. Empty categories are dropped.
func (s *FAQService) Sections(ctx context.Context, dashboardOnly bool) ([]FAQSection, error) {
	categories, err := s.repos.FAQ.ListCategories(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	items, err := s.repos.FAQ.List(ctx, repository.FAQFilter{ActiveOnly: true, DashboardOnly: dashboardOnly})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	byCategory := make(map[string][]domain.FAQItem, len(categories))
	for _, item := range items {
		byCategory[item.CategoryID] = append(byCategory[item.CategoryID], item)
	}
	sections := make([]FAQSection, 0, len(categories))
	for _, c := range categories {
		if len(byCategory[c.ID]) == 0 {
			continue
		}
		sections = append(sections, FAQSection{Category: c, Items: byCategory[c.ID]})
	}
	return sections, nil
}

// ListByCategory returns the active items of one category.
func (s *FAQService) ListByCategory(ctx context.Context, slug string) (*FAQSection, error) {
	category, err := s.repos.FAQ.GetCategoryBySlug(ctx, slug)
	if err != nil {
		return nil, lookupError(err, "faq category", slug)
	}
	items, err := s.repos.FAQ.List(ctx, repository.FAQFilter{CategoryID: &category.ID, ActiveOnly: true})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &FAQSection{Category: *category, Items: items}, nil
}

// GetItem returns an item. Inactive items are visible to admins only.
func (s *FAQService) GetItem(ctx context.Context, identity domain.Identity, id string) (*domain.FAQItem, error) {
	item, err := s.repos.FAQ.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "faq item", id)
	}
	if !item.IsActive && !identity.IsAdmin() {
		return nil, apperrors.NewNotFound("faq item", map[string]any{"id": id})
	}
	return item, nil
}

// Search ranks the active corpus against query the same way the bot does.
func (s *FAQService) Search(ctx context.Context, query string) ([]faqbot.Match, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.NewValidationError("query is required", nil)
	}
	corpus, err := s.ActiveCorpus(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return s.engine.Score(query, corpus), nil
}

// CreateItem adds an item. Empty bot fields are derived from the question and answer.
func (s *FAQService) CreateItem(ctx context.Context, identity domain.Identity, input FAQItemInput) (*domain.FAQItem, error) {
	if !identity.IsAdmin() {
		return nil, apperrors.NewUnauthorized("only administrators may edit the FAQ")
	}
	item := &domain.FAQItem{}
	if err := s.applyInput(ctx, item, input); err != nil {
		return nil, err
	}
	faqbot.Backfill(item)
	err := s.repos.FAQ.Create(ctx, item)
	if errors.Is(err, repository.ErrConflict) {
		return nil, apperrors.NewConflict("question already exists in this category", map[string]any{"question": item.Question})
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.invalidate(ctx)
	s.logger.Info("faq item created", zap.String("faq_id", item.ID), zap.String("actor_id", identity.ActorID))
	return item, nil
}

// UpdateItem replaces the editable fields of an item.
func (s *FAQService) UpdateItem(ctx context.Context, identity domain.Identity, id string, input FAQItemInput) (*domain.FAQItem, error) {
	if !identity.IsAdmin() {
		return nil, apperrors.NewUnauthorized("only administrators may edit the FAQ")
	}
	item, err := s.repos.FAQ.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "faq item", id)
	}
	if err := s.applyInput(ctx, item, input); err != nil {
		return nil, err
	}
	faqbot.Backfill(item)
	err = s.repos.FAQ.Update(ctx, item)
	if errors.Is(err, repository.ErrConflict) {
		return nil, apperrors.NewConflict("question already exists in this category", map[string]any{"question": item.Question})
	}
	if err != nil {
		return nil, lookupError(err, "faq item", id)
	}
	s.invalidate(ctx)
	s.logger.Info("faq item updated", zap.String("faq_id", item.ID), zap.String("actor_id", identity.ActorID))
	return item, nil
}

func (s *FAQService) applyInput(ctx context.Context, item *domain.FAQItem, input FAQItemInput) error {
	details := map[string]any{}
	if strings.TrimSpace(input.Question) == "" {
		details["question"] = "required"
	}
	if strings.TrimSpace(input.Answer) == "" {
		details["answer"] = "required"
	}
	if input.BotPriority < 0 {
		details["bot_priority"] = "must not be negative"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid faq item", details)
	}
	category, err := s.repos.FAQ.GetCategoryBySlug(ctx, input.CategorySlug)
	if err != nil {
		return lookupError(err, "faq category", input.CategorySlug)
	}

	item.CategoryID = category.ID
	item.Question = strings.TrimSpace(input.Question)
	item.ShortQuestion = strings.TrimSpace(input.ShortQuestion)
	item.Answer = strings.TrimSpace(input.Answer)
	item.ShortAnswer = strings.TrimSpace(input.ShortAnswer)
	item.Keywords = strings.TrimSpace(input.Keywords)
	item.Order = input.Order
	item.BotPriority = input.BotPriority
	item.IsActive = input.IsActive
	item.ShowInDashboard = input.ShowInDashboard
	item.ShowInBotButtons = input.ShowInBotButtons
	return nil
}

// Import upserts a seed: categories by slug, items by (category, question).
func (s *FAQService) Import(ctx context.Context, seed *faqseed.Seed) (*ImportResult, error) {
	if err := seed.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error(), nil)
	}
	result := &ImportResult{}
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		for order, c := range seed.Categories {
			category := c.CategoryModel(order)
			if err := repos.FAQ.UpsertCategory(ctx, &category); err != nil {
				return err
			}
			result.Categories++

			for _, seeded := range c.Items {
				existing, err := repos.FAQ.FindByQuestion(ctx, category.ID, seeded.Question)
				switch {
				case err == nil:
					seeded.Apply(existing)
					if err := repos.FAQ.Update(ctx, existing); err != nil {
						return err
					}
					result.Updated++
				case errors.Is(err, repository.ErrNotFound):
					item := &domain.FAQItem{CategoryID: category.ID}
					seeded.Apply(item)
					if err := repos.FAQ.Create(ctx, item); err != nil {
						return err
					}
					result.Created++
				default:
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.invalidate(ctx)
	s.logger.Info("faq seed imported",
		zap.Int("categories", result.Categories),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated))
	return result, nil
}

// Sync backfills keywords and short texts on every item and reports how many
// items changed. Running it twice changes nothing the second time.
func (s *FAQService) Sync(ctx context.Context) (int, error) {
	items, err := s.repos.FAQ.List(ctx, repository.FAQFilter{})
	if err != nil {
		return 0, err
	}
	changed := 0
	for i := range items {
		if !faqbot.Backfill(&items[i]) {
			continue
		}
		if err := s.repos.FAQ.Update(ctx, &items[i]); err != nil {
			return changed, err
		}
		changed++
	}
	if changed > 0 {
		s.invalidate(ctx)
	}
	s.logger.Info("faq sync finished", zap.Int("scanned", len(items)), zap.Int("changed", changed))
	return changed, nil
}
