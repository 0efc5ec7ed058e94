// Package faqseed loads the FAQ catalogue shipped with the service, or one
// supplied by an operator, from YAML.
package faqseed

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/helpdesk/internal/domain"
)

//go:embed faqs.yaml
var defaultSeed []byte

// Seed is the root of a seed document.
type Seed struct {
	Categories []Category `yaml:"categories"`
}

// Category groups seeded items.
type Category struct {
	Name  string `yaml:"name"`
	Slug  string `yaml:"slug"`
	Icon  string `yaml:"icon"`
	Items []Item `yaml:"items"`
}

// Item is one seeded FAQ entry. Visibility flags default to true.
type Item struct {
	Question         string `yaml:"question"`
	ShortQuestion    string `yaml:"short_question"`
	Answer           string `yaml:"answer"`
	ShortAnswer      string `yaml:"short_answer"`
	Keywords         string `yaml:"keywords"`
	Order            int    `yaml:"order"`
	BotPriority      int    `yaml:"bot_priority"`
	ShowInDashboard  *bool  `yaml:"show_in_dashboard"`
	ShowInBotButtons *bool  `yaml:"show_in_bot_buttons"`
}

// Default returns the embedded catalogue.
func Default() (*Seed, error) {
	return Parse(bytes.NewReader(defaultSeed))
}

// LoadFile reads a seed document from path.
func LoadFile(path string) (*Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes and validates a seed document.
func Parse(r io.Reader) (*Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("decode faq seed: %w", err)
	}
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

// Validate checks required fields and duplicate slugs or questions.
func (s *Seed) Validate() error {
	slugs := make(map[string]struct{}, len(s.Categories))
	for i, c := range s.Categories {
		if strings.TrimSpace(c.Slug) == "" || strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("faq seed: category %d needs a name and a slug", i)
		}
		if _, dup := slugs[c.Slug]; dup {
			return fmt.Errorf("faq seed: duplicate category slug %q", c.Slug)
		}
		slugs[c.Slug] = struct{}{}

		questions := make(map[string]struct{}, len(c.Items))
		for j, item := range c.Items {
			if strings.TrimSpace(item.Question) == "" || strings.TrimSpace(item.Answer) == "" {
				return fmt.Errorf("faq seed: %s item %d needs a question and an answer", c.Slug, j)
			}
			if _, dup := questions[item.Question]; dup {
				return fmt.Errorf("faq seed: duplicate question %q in %s", item.Question, c.Slug)
			}
			questions[item.Question] = struct{}{}
		}
	}
	return nil
}

// CategoryModel converts c into a domain category; order is its position in the seed.
func (c Category) CategoryModel(order int) domain.FAQCategory {
	return domain.FAQCategory{Name: c.Name, Slug: c.Slug, Icon: c.Icon, Order: order}
}

// Apply copies the seeded fields onto item, keeping its identity.
func (i Item) Apply(item *domain.FAQItem) {
	item.Question = i.Question
	item.ShortQuestion = i.ShortQuestion
	item.Answer = i.Answer
	item.ShortAnswer = i.ShortAnswer
	item.Keywords = i.Keywords
	item.Order = i.Order
	item.BotPriority = i.BotPriority
	item.IsActive = true
	item.ShowInDashboard = boolOr(i.ShowInDashboard, true)
	item.ShowInBotButtons = boolOr(i.ShowInBotButtons, true)
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
