package faqbot

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/helpdesk/internal/domain"
)

func TestGenerateKeywords(t *testing.T) {
	got := GenerateKeywords("How do I connect to the office WiFi network from home? WiFi keeps dropping.")
	assert.Equal(t, "connect,office,wifi,network,home,keeps,dropping", got)
}

func TestGenerateKeywordsCapsAtTen(t *testing.T) {
	got := GenerateKeywords("alpha bravo charlie delta echoes foxtrot golfs hotel india juliet kilo lima")
	assert.Len(t, strings.Split(got, ","), maxGeneratedKeywords)
}

func TestBackfillFillsEmptyFields(t *testing.T) {
	item := domain.FAQItem{
		Question: "Why does my laptop battery drain so quickly even when the screen is off?",
		Answer:   strings.Repeat("Lower the screen brightness. ", 10),
		Order:    2,
	}

	assert.True(t, Backfill(&item))
	assert.NotEmpty(t, item.Keywords)
	assert.Equal(t, shortQuestionLimit, utf8.RuneCountInString(item.ShortQuestion))
	assert.True(t, strings.HasSuffix(item.ShortQuestion, "..."))
	assert.Equal(t, shortAnswerLimit, utf8.RuneCountInString(item.ShortAnswer))
	assert.Equal(t, topItemBotPriority, item.BotPriority)

	assert.False(t, Backfill(&item), "second pass must be a no-op")
}

func TestBackfillKeepsAdminValues(t *testing.T) {
	item := domain.FAQItem{
		Question:      "How do I reset my password?",
		ShortQuestion: "Reset password",
		Answer:        "Use the link.",
		ShortAnswer:   "Use the link.",
		Keywords:      "password reset",
		Order:         10,
		BotPriority:   1,
	}

	assert.False(t, Backfill(&item))
	assert.Equal(t, "password reset", item.Keywords)
	assert.Equal(t, 1, item.BotPriority)
}
