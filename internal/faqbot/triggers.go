package faqbot

import (
	"strings"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// Conversational triggers fire when any query word is in the set.
var (
	greetingWords = wordSet("hello", "hi", "hey", "hiya", "greetings", "howdy")
	thanksWords   = wordSet("thanks", "thank", "thx", "ty", "cheers", "appreciate", "appreciated")
	farewellWords = wordSet("bye", "goodbye", "farewell", "cya")
)

// Navigation triggers fire only when the whole query is one of the phrases.
var (
	menuPhrases      = wordSet("menu", "main menu", "start", "options", "show menu", "what can you do")
	ticketPhrases    = wordSet("ticket", "tickets", "create ticket", "create a ticket", "new ticket", "open a ticket", "open ticket", "my tickets", "submit ticket")
	directoryPhrases = wordSet("technician", "technicians", "find technician", "find a technician", "technician directory", "talk to a technician", "talk to technician", "human", "agent", "contact technician")
)

func matchTrigger(query string) (Reply, bool) {
	words := Tokenize(query)
	if len(words) == 0 {
		return Reply{}, false
	}
	phrase := strings.Join(words, " ")

	switch {
	case containsAny(words, greetingWords), hasGreetingPrefix(phrase):
		return greetingReply(), true
	case containsAny(words, thanksWords):
		return Reply{
			Kind: KindThanks,
			Text: "You're welcome! Is there anything else I can help you with?",
			QuickReplies: []domain.QuickReply{
				{Label: "Main menu", Action: ActionMenu},
				{Label: "Create a ticket", Action: ActionCreateTicket},
			},
		}, true
	case containsAny(words, farewellWords):
		return Reply{
			Kind: KindFarewell,
			Text: "Goodbye! Come back any time you need help.",
		}, true
	}

	if _, ok := menuPhrases[phrase]; ok {
		return menuReply(), true
	}
	if _, ok := ticketPhrases[phrase]; ok {
		return Reply{
			Kind: KindTicket,
			Text: "You can open a new support ticket or review the ones you already have.",
			QuickReplies: []domain.QuickReply{
				{Label: "Create a ticket", Action: ActionCreateTicket},
				{Label: "My tickets", Action: ActionMyTickets},
			},
		}, true
	}
	if _, ok := directoryPhrases[phrase]; ok {
		return Reply{
			Kind: KindDirectory,
			Text: "Browse the technician directory to find someone available for your problem.",
			QuickReplies: []domain.QuickReply{
				{Label: "Technician directory", Action: ActionFindTechnician},
				{Label: "Create a ticket", Action: ActionCreateTicket},
			},
		}, true
	}
	return Reply{}, false
}

func greetingReply() Reply {
	return Reply{
		Kind: KindGreeting,
		Text: "Hi! I'm the FixIT Assistant. Ask me a question or choose one of the options below.",
		QuickReplies: []domain.QuickReply{
			{Label: "Create a ticket", Action: ActionCreateTicket},
			{Label: "Find a technician", Action: ActionFindTechnician},
			{Label: "Help center", Action: ActionHelpCenter},
		},
	}
}

func menuReply() Reply {
	return Reply{
		Kind: KindMenu,
		Text: "Here's what I can do for you:",
		QuickReplies: []domain.QuickReply{
			{Label: "Create a ticket", Action: ActionCreateTicket},
			{Label: "My tickets", Action: ActionMyTickets},
			{Label: "Find a technician", Action: ActionFindTechnician},
			{Label: "Help center", Action: ActionHelpCenter},
		},
	}
}

func hasGreetingPrefix(phrase string) bool {
	for _, prefix := range []string{"good morning", "good afternoon", "good evening"} {
		if strings.HasPrefix(phrase, prefix) {
			return true
		}
	}
	return false
}

func containsAny(words []string, set map[string]struct{}) bool {
	for _, w := range words {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

func wordSet(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
