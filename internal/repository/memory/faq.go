package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

type faqRepo struct{ s *Store }

func (r *faqRepo) UpsertCategory(_ context.Context, category *domain.FAQCategory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, existing := range r.s.categories {
		if existing.Slug == category.Slug {
			category.ID = id
			r.s.categories[id] = *category
			return nil
		}
	}
	category.ID = newID()
	r.s.categories[category.ID] = *category
	return nil
}

func (r *faqRepo) ListCategories(_ context.Context) ([]domain.FAQCategory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.FAQCategory, 0, len(r.s.categories))
	for _, c := range r.s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *faqRepo) GetCategoryBySlug(_ context.Context, slug string) (*domain.FAQCategory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.categories {
		if c.Slug == slug {
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *faqRepo) Create(_ context.Context, item *domain.FAQItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.faqItems {
		if other.CategoryID == item.CategoryID && other.Question == item.Question {
			return fmt.Errorf("%w: faq_items_category_id_question_key", repository.ErrConflict)
		}
	}
	now := r.s.now()
	item.ID = newID()
	item.CreatedAt = now
	item.UpdatedAt = now
	r.s.faqItems = append(r.s.faqItems, *item)
	return nil
}

func (r *faqRepo) Update(_ context.Context, item *domain.FAQItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, existing := range r.s.faqItems {
		if existing.ID != item.ID {
			continue
		}
		item.CreatedAt = existing.CreatedAt
		item.UpdatedAt = r.s.now()
		r.s.faqItems[i] = *item
		return nil
	}
	return repository.ErrNotFound
}

func (r *faqRepo) GetByID(_ context.Context, id string) (*domain.FAQItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, item := range r.s.faqItems {
		if item.ID == id {
			return &item, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *faqRepo) FindByQuestion(_ context.Context, categoryID, question string) (*domain.FAQItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, item := range r.s.faqItems {
		if item.CategoryID == categoryID && item.Question == question {
			return &item, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *faqRepo) List(_ context.Context, filter repository.FAQFilter) ([]domain.FAQItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.FAQItem
	for _, item := range r.s.faqItems {
		if filter.CategoryID != nil && item.CategoryID != *filter.CategoryID {
			continue
		}
		if filter.ActiveOnly && !item.IsActive {
			continue
		}
		if filter.DashboardOnly && !item.ShowInDashboard {
			continue
		}
		if filter.SearchTerm != nil {
			term := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
			haystack := strings.ToLower(item.Question + " " + item.Answer + " " + item.Keywords)
			if term != "" && !strings.Contains(haystack, term) {
				continue
			}
		}
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := r.s.categories[out[i].CategoryID].Order, r.s.categories[out[j].CategoryID].Order
		if ci != cj {
			return ci < cj
		}
		return out[i].Order < out[j].Order
	})
	return out, nil
}
