package faqbot

import (
	"strings"
	"unicode/utf8"

	"github.com/spec-kit/helpdesk/internal/domain"
)

const (
	maxGeneratedKeywords = 10
	shortQuestionLimit   = 50
	shortAnswerLimit     = 100
	topItemOrder         = 3
	topItemBotPriority   = 5
)

var keywordStopWords = wordSet("what", "how", "why", "when", "where", "which", "that", "this", "with", "from")

// Backfill fills in bot fields an administrator left empty. It reports whether
// the item changed.
func Backfill(item *domain.FAQItem) bool {
	changed := false

	if strings.TrimSpace(item.Keywords) == "" {
		if keywords := GenerateKeywords(item.Question); keywords != "" {
			item.Keywords = keywords
			changed = true
		}
	}
	if (item.ShortQuestion == "" && item.Question != "") || utf8.RuneCountInString(item.ShortQuestion) > shortQuestionLimit {
		item.ShortQuestion = truncate(item.Question, shortQuestionLimit)
		changed = true
	}
	if item.ShortAnswer == "" && item.Answer != "" {
		item.ShortAnswer = truncate(item.Answer, shortAnswerLimit)
		changed = true
	}
	if item.Order <= topItemOrder && item.BotPriority < topItemBotPriority {
		item.BotPriority = topItemBotPriority
		changed = true
	}
	return changed
}

// GenerateKeywords derives up to ten keywords from question words longer than
// three characters, in order of first appearance.
func GenerateKeywords(question string) string {
	seen := make(map[string]struct{})
	keywords := make([]string, 0, maxGeneratedKeywords)
	for _, word := range Tokenize(question) {
		if len(word) <= minQuestionWordLen {
			continue
		}
		if _, stop := keywordStopWords[word]; stop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		keywords = append(keywords, word)
		if len(keywords) == maxGeneratedKeywords {
			break
		}
	}
	return strings.Join(keywords, ",")
}

// truncate shortens text to at most limit runes, ellipsis included.
func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-3]) + "..."
}
