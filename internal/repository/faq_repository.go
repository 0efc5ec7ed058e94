package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// FAQFilter narrows FAQ listings.
type FAQFilter struct {
	CategoryID    *string
	ActiveOnly    bool
	DashboardOnly bool
	SearchTerm    *string
}

// FAQRepository persists the FAQ catalogue.
type FAQRepository interface {
	// UpsertCategory inserts or updates a category by slug.
	UpsertCategory(ctx context.Context, category *domain.FAQCategory) error
	ListCategories(ctx context.Context) ([]domain.FAQCategory, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*domain.FAQCategory, error)
	Create(ctx context.Context, item *domain.FAQItem) error
	Update(ctx context.Context, item *domain.FAQItem) error
	GetByID(ctx context.Context, id string) (*domain.FAQItem, error)
	FindByQuestion(ctx context.Context, categoryID, question string) (*domain.FAQItem, error)
	// List returns items ordered by category order, item order, then id.
	List(ctx context.Context, filter FAQFilter) ([]domain.FAQItem, error)
}

type faqRepository struct {
	db DBTX
}

// NewFAQRepository builds repository.
func NewFAQRepository(db DBTX) FAQRepository {
	return &faqRepository{db: db}
}

const faqColumns = `f.id, f.category_id, f.question, f.short_question, f.answer, f.short_answer, f.keywords,
               f.sort_order, f.bot_priority, f.is_active, f.show_in_dashboard, f.show_in_bot_buttons,
               f.created_at, f.updated_at`

func (r *faqRepository) UpsertCategory(ctx context.Context, category *domain.FAQCategory) error {
	const query = `
        INSERT INTO faq_categories (name, slug, icon, sort_order)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (slug) DO UPDATE SET name=EXCLUDED.name, icon=EXCLUDED.icon, sort_order=EXCLUDED.sort_order
        RETURNING id`
	return r.db.QueryRow(ctx, query, category.Name, category.Slug, category.Icon, category.Order).Scan(&category.ID)
}

func (r *faqRepository) ListCategories(ctx context.Context) ([]domain.FAQCategory, error) {
	const query = `SELECT id, name, slug, icon, sort_order FROM faq_categories ORDER BY sort_order ASC, name ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.FAQCategory
	for rows.Next() {
		var c domain.FAQCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Icon, &c.Order); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *faqRepository) GetCategoryBySlug(ctx context.Context, slug string) (*domain.FAQCategory, error) {
	const query = `SELECT id, name, slug, icon, sort_order FROM faq_categories WHERE slug=$1`
	var c domain.FAQCategory
	if err := r.db.QueryRow(ctx, query, slug).Scan(&c.ID, &c.Name, &c.Slug, &c.Icon, &c.Order); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *faqRepository) Create(ctx context.Context, item *domain.FAQItem) error {
	const query = `
        INSERT INTO faq_items (category_id, question, short_question, answer, short_answer, keywords,
            sort_order, bot_priority, is_active, show_in_dashboard, show_in_bot_buttons)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		item.CategoryID,
		item.Question,
		item.ShortQuestion,
		item.Answer,
		item.ShortAnswer,
		item.Keywords,
		item.Order,
		item.BotPriority,
		item.IsActive,
		item.ShowInDashboard,
		item.ShowInBotButtons,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	return mapWriteError(err)
}

func (r *faqRepository) Update(ctx context.Context, item *domain.FAQItem) error {
	const query = `
        UPDATE faq_items
        SET category_id=$1, question=$2, short_question=$3, answer=$4, short_answer=$5, keywords=$6,
            sort_order=$7, bot_priority=$8, is_active=$9, show_in_dashboard=$10, show_in_bot_buttons=$11,
            updated_at=NOW()
        WHERE id=$12
        RETURNING updated_at`
	err := r.db.QueryRow(ctx, query,
		item.CategoryID,
		item.Question,
		item.ShortQuestion,
		item.Answer,
		item.ShortAnswer,
		item.Keywords,
		item.Order,
		item.BotPriority,
		item.IsActive,
		item.ShowInDashboard,
		item.ShowInBotButtons,
		item.ID,
	).Scan(&item.UpdatedAt)
	return mapWriteError(err)
}

func (r *faqRepository) GetByID(ctx context.Context, id string) (*domain.FAQItem, error) {
	query := `SELECT ` + faqColumns + ` FROM faq_items f WHERE f.id=$1`
	var item domain.FAQItem
	if err := scanFAQ(r.db.QueryRow(ctx, query, id), &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *faqRepository) FindByQuestion(ctx context.Context, categoryID, question string) (*domain.FAQItem, error) {
	query := `SELECT ` + faqColumns + ` FROM faq_items f WHERE f.category_id=$1 AND f.question=$2`
	var item domain.FAQItem
	if err := scanFAQ(r.db.QueryRow(ctx, query, categoryID, question), &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *faqRepository) List(ctx context.Context, filter FAQFilter) ([]domain.FAQItem, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		clauses = append(clauses, fmt.Sprintf("f.category_id=$%d", len(args)))
	}
	if filter.ActiveOnly {
		clauses = append(clauses, "f.is_active")
	}
	if filter.DashboardOnly {
		clauses = append(clauses, "f.show_in_dashboard")
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(*filter.SearchTerm))+"%")
		p := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(f.question) LIKE %s OR LOWER(f.answer) LIKE %s OR LOWER(f.keywords) LIKE %s)", p, p, p))
	}

	query := fmt.Sprintf(`SELECT %s FROM faq_items f
        JOIN faq_categories c ON c.id = f.category_id
        WHERE %s
        ORDER BY c.sort_order ASC, f.sort_order ASC, f.id ASC`, faqColumns, strings.Join(clauses, " AND "))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.FAQItem
	for rows.Next() {
		var item domain.FAQItem
		if err := scanFAQ(rows, &item); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func scanFAQ(row pgx.Row, item *domain.FAQItem) error {
	return row.Scan(
		&item.ID,
		&item.CategoryID,
		&item.Question,
		&item.ShortQuestion,
		&item.Answer,
		&item.ShortAnswer,
		&item.Keywords,
		&item.Order,
		&item.BotPriority,
		&item.IsActive,
		&item.ShowInDashboard,
		&item.ShowInBotButtons,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
}
