package faqseed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
)

func TestDefaultSeedIsValid(t *testing.T) {
	seed, err := Default()
	require.NoError(t, err)
	require.Len(t, seed.Categories, 4)
	assert.Equal(t, "account-info", seed.Categories[0].Slug)

	found := false
	for _, item := range seed.Categories[0].Items {
		if item.Question == "How do I reset my password?" {
			found = true
			assert.Equal(t, "password reset, forgot password, change password", item.Keywords)
		}
	}
	assert.True(t, found)
}

func TestParseRejectsDuplicateQuestions(t *testing.T) {
	doc := `
categories:
  - name: Network
    slug: network
    items:
      - question: Why is wifi slow?
        answer: Restart the router.
      - question: Why is wifi slow?
        answer: Move closer.
`
	_, err := Parse(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate question")
}

func TestParseRejectsUnknownFields(t *testing.T) {
	doc := `
categories:
  - name: Network
    slug: network
    colour: blue
`
	_, err := Parse(strings.NewReader(doc))
	require.Error(t, err)
}

func TestParseRequiresSlug(t *testing.T) {
	_, err := Parse(strings.NewReader("categories:\n  - name: Network\n"))
	require.Error(t, err)
}

func TestItemApplyDefaultsVisibility(t *testing.T) {
	hidden := false
	item := domain.FAQItem{ID: "faq-1"}
	Item{Question: "Q?", Answer: "A.", ShowInBotButtons: &hidden, Order: 2}.Apply(&item)

	assert.Equal(t, "faq-1", item.ID)
	assert.True(t, item.IsActive)
	assert.True(t, item.ShowInDashboard)
	assert.False(t, item.ShowInBotButtons)
	assert.Equal(t, 2, item.Order)
}
