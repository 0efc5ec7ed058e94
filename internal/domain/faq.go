package domain

import "time"

// FAQCategory groups FAQ items.
type FAQCategory struct {
	ID    string
	Name  string
	Slug  string
	Icon  string
	Order int
}

// FAQItem is a canned answer used by the help center and the bot.
type FAQItem struct {
	ID               string
	CategoryID       string
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
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
