// Package faqbot scores free-text questions against the FAQ corpus and builds
// the bot's replies. It never returns an error: when nothing matches, the
// caller gets a fallback reply.
package faqbot

import (
	"sort"
	"strings"
	"unicode"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// Weights applied while scoring a corpus entry.
const (
	WeightQuestionWord  = 3
	WeightKeyword       = 5
	WeightShortQuestion = 8
	WeightAnswer        = 2

	// Query words must be longer than this to count against the question text.
	minQuestionWordLen = 3

	DefaultMaxResults = 3
)

// ReplyKind identifies which branch produced a reply.
type ReplyKind string

const (
	KindGreeting  ReplyKind = "greeting"
	KindThanks    ReplyKind = "thanks"
	KindFarewell  ReplyKind = "farewell"
	KindMenu      ReplyKind = "menu"
	KindTicket    ReplyKind = "ticket"
	KindDirectory ReplyKind = "technician_directory"
	KindFAQ       ReplyKind = "faq"
	KindFallback  ReplyKind = "fallback"
)

// Quick reply actions understood by the presentation layer.
const (
	ActionShowFAQ        = "show_faq"
	ActionCreateTicket   = "create_ticket"
	ActionMyTickets      = "my_tickets"
	ActionFindTechnician = "technician_directory"
	ActionMenu           = "menu"
	ActionHelpCenter     = "help_center"
)

// Match is a scored corpus entry.
type Match struct {
	FAQ   domain.FAQItem
	Score int
}

// Reply is the bot's answer to one user message.
type Reply struct {
	Kind         ReplyKind
	Text         string
	Matches      []Match
	QuickReplies []domain.QuickReply
}

// Payload converts the reply into the structured payload stored on a message.
func (r Reply) Payload() *domain.BotPayload {
	payload := &domain.BotPayload{Kind: string(r.Kind), QuickReplies: r.QuickReplies}
	for _, m := range r.Matches {
		payload.RelatedFAQs = append(payload.RelatedFAQs, m.FAQ.ID)
	}
	return payload
}

// Engine holds scoring options.
type Engine struct {
	maxResults      int
	fallbackButtons int
}

// Option customises an Engine.
type Option func(*Engine)

// WithMaxResults caps the ranked result list.
func WithMaxResults(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxResults = n
		}
	}
}

// WithFallbackButtons sets how many FAQ buttons accompany the fallback reply.
func WithFallbackButtons(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.fallbackButtons = n
		}
	}
}

// NewEngine builds an engine with defaults applied.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{maxResults: DefaultMaxResults, fallbackButtons: 4}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Score ranks corpus entries against query. Entries with a zero score are dropped,
// ties keep corpus order, and at most maxResults entries are returned.
func (e *Engine) Score(query string, corpus []domain.FAQItem) []Match {
	raw := normalize(query)
	if raw == "" || len(corpus) == 0 {
		return nil
	}
	words := Tokenize(raw)

	matches := make([]Match, 0, len(corpus))
	for _, item := range corpus {
		if !item.IsActive {
			continue
		}
		score := scoreItem(raw, words, item)
		if score <= 0 {
			continue
		}
		matches = append(matches, Match{FAQ: item, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > e.maxResults {
		matches = matches[:e.maxResults]
	}
	return matches
}

// Answer produces the bot reply. Hard-coded triggers win over corpus matches.
func (e *Engine) Answer(query string, corpus []domain.FAQItem) Reply {
	if reply, ok := matchTrigger(query); ok {
		return reply
	}

	matches := e.Score(query, corpus)
	if len(matches) == 0 {
		return e.fallback(corpus)
	}

	best := matches[0].FAQ
	text := best.Answer
	if strings.TrimSpace(text) == "" {
		text = best.ShortAnswer
	}
	replies := make([]domain.QuickReply, 0, len(matches)+1)
	for _, m := range matches[1:] {
		replies = append(replies, faqButton(m.FAQ))
	}
	replies = append(replies,
		domain.QuickReply{Label: "Create a ticket", Action: ActionCreateTicket},
		domain.QuickReply{Label: "Talk to a technician", Action: ActionFindTechnician},
	)
	return Reply{Kind: KindFAQ, Text: text, Matches: matches, QuickReplies: replies}
}

func (e *Engine) fallback(corpus []domain.FAQItem) Reply {
	buttons := make([]domain.FAQItem, 0, len(corpus))
	for _, item := range corpus {
		if item.IsActive && item.ShowInBotButtons {
			buttons = append(buttons, item)
		}
	}
	sort.SliceStable(buttons, func(i, j int) bool {
		return buttons[i].BotPriority > buttons[j].BotPriority
	})
	if len(buttons) > e.fallbackButtons {
		buttons = buttons[:e.fallbackButtons]
	}

	replies := make([]domain.QuickReply, 0, len(buttons)+2)
	for _, item := range buttons {
		replies = append(replies, faqButton(item))
	}
	replies = append(replies,
		domain.QuickReply{Label: "Create a ticket", Action: ActionCreateTicket},
		domain.QuickReply{Label: "Browse the help center", Action: ActionHelpCenter},
	)
	return Reply{
		Kind:         KindFallback,
		Text:         "I couldn't find an answer to that. Try rephrasing, pick a popular topic below, or create a ticket and a technician will help you.",
		QuickReplies: replies,
	}
}

func scoreItem(raw string, words []string, item domain.FAQItem) int {
	question := strings.ToLower(item.Question)
	keywords := KeywordTerms(item.Keywords)

	score := 0
	for _, word := range words {
		if len(word) > minQuestionWordLen && strings.Contains(question, word) {
			score += WeightQuestionWord
		}
		if _, ok := keywords[word]; ok {
			score += WeightKeyword
		}
	}
	if short := strings.ToLower(item.ShortQuestion); short != "" && strings.Contains(short, raw) {
		score += WeightShortQuestion
	}
	if answer := strings.ToLower(item.Answer); answer != "" && strings.Contains(answer, raw) {
		score += WeightAnswer
	}
	if score == 0 {
		return 0
	}
	return score + item.BotPriority
}

// KeywordTerms splits a comma separated keyword list into lookup terms. Each
// keyword phrase is kept whole and also broken into its words, so "reset"
// matches the keyword "password reset".
func KeywordTerms(keywords string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, phrase := range strings.Split(keywords, ",") {
		phrase = normalize(phrase)
		if phrase == "" {
			continue
		}
		terms[phrase] = struct{}{}
		for _, word := range Tokenize(phrase) {
			terms[word] = struct{}{}
		}
	}
	return terms
}

// Tokenize lowercases text and splits it into words, dropping punctuation.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func faqButton(item domain.FAQItem) domain.QuickReply {
	label := item.ShortQuestion
	if label == "" {
		label = item.Question
	}
	return domain.QuickReply{Label: label, Action: ActionShowFAQ, Payload: item.ID}
}
