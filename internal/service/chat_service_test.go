package service

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/faqbot"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

func (f *fixture) techSession(t *testing.T) *domain.ChatSession {
	t.Helper()
	session, err := f.chat.OpenTechnicianSession(f.ctx, f.owner, f.tech.ActorID, nil)
	require.NoError(t, err)
	return session
}

func TestGetOrCreateReturnsOneSessionUnderConcurrency(t *testing.T) {
	f := newFixture(t, withChatConfig(config.ChatConfig{GetOrCreateAttempts: 5}))
	key := domain.SessionKey{UserID: f.owner.ActorID, TechnicianID: strPtr(f.tech.ActorID), Type: domain.SessionUserTechnician}

	const callers = 8
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			session, err := f.chat.GetOrCreate(f.ctx, key)
			if assert.NoError(t, err) {
				ids[i] = session.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Len(t, f.recorder.ofType(events.EventChatSessionOpened), 1)
}

func TestGetOrCreateValidatesKey(t *testing.T) {
	f := newFixture(t)

	_, err := f.chat.GetOrCreate(f.ctx, domain.SessionKey{UserID: f.owner.ActorID, Type: domain.SessionUserTechnician})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = f.chat.GetOrCreate(f.ctx, domain.SessionKey{UserID: f.owner.ActorID, TechnicianID: strPtr(f.tech.ActorID), Type: domain.SessionUserBot})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = f.chat.GetOrCreate(f.ctx, domain.SessionKey{Type: domain.SessionUserBot})
	requireCode(t, err, apperrors.CodeValidation)
}

func TestGetOrCreateReactivatesClosedSession(t *testing.T) {
	f := newFixture(t)
	session := f.techSession(t)

	closed, err := f.chat.CloseSession(f.ctx, f.owner, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionClosed, closed.Status)

	again := f.techSession(t)
	assert.Equal(t, session.ID, again.ID)
	assert.Equal(t, domain.SessionActive, again.Status)
}

func TestDeletedSessionStartsNewThread(t *testing.T) {
	f := newFixture(t)
	session := f.techSession(t)
	_, err := f.chat.AppendMessage(f.ctx, f.owner, session.ID, "hi there")
	require.NoError(t, err)

	_, err = f.chat.DeleteSession(f.ctx, f.owner, session.ID)
	require.NoError(t, err)

	_, err = f.chat.GetSession(f.ctx, f.owner, session.ID)
	requireCode(t, err, apperrors.CodeNotFound)

	audit, err := f.chat.Audit(f.ctx, f.admin, session.ID)
	require.NoError(t, err)
	require.Len(t, audit.Messages, 1)
	assert.True(t, audit.Messages[0].IsDeleted)

	fresh := f.techSession(t)
	assert.NotEqual(t, session.ID, fresh.ID)
}

func TestOpenTechnicianSessionChecks(t *testing.T) {
	f := newFixture(t)

	_, err := f.chat.OpenTechnicianSession(f.ctx, f.owner, f.stranger.ActorID, nil)
	requireCode(t, err, apperrors.CodeNotFound)

	_, err = f.chat.OpenTechnicianSession(f.ctx, f.tech, f.tech.ActorID, nil)
	requireCode(t, err, apperrors.CodeValidation)

	ticket, err := f.tickets.CreateTicket(f.ctx, f.owner, TicketCreateInput{Title: "Broken charger"})
	require.NoError(t, err)
	_, err = f.chat.OpenTechnicianSession(f.ctx, f.stranger, f.tech.ActorID, &ticket.ID)
	requireCode(t, err, apperrors.CodeUnauthorized)
}

func TestAppendMessageDirectionAndNotification(t *testing.T) {
	f := newFixture(t)
	session := f.techSession(t)

	fromUser, err := f.chat.AppendMessage(f.ctx, f.owner, session.ID, "Is anyone there?")
	require.NoError(t, err)
	assert.Equal(t, domain.MessageUserToTechnician, fromUser.Message.Type)
	assert.Equal(t, f.tech.ActorID, *fromUser.Message.ReceiverID)
	assert.Nil(t, fromUser.BotReply)

	fromTech, err := f.chat.AppendMessage(f.ctx, f.tech, session.ID, "Yes, looking now")
	require.NoError(t, err)
	assert.Equal(t, domain.MessageTechnicianToUser, fromTech.Message.Type)
	assert.Equal(t, f.owner.ActorID, *fromTech.Message.ReceiverID)

	appended := f.recorder.ofType(events.EventChatMessageAppended)
	require.Len(t, appended, 2)
	assert.Equal(t, f.tech.ActorID, *appended[0].RecipientID)
	assert.Equal(t, f.owner.ActorID, *appended[1].RecipientID)
}

func TestAppendMessageValidation(t *testing.T) {
	f := newFixture(t, withChatConfig(config.ChatConfig{MaxMessageLength: 10}))
	session := f.techSession(t)

	_, err := f.chat.AppendMessage(f.ctx, f.owner, session.ID, "   ")
	requireCode(t, err, apperrors.CodeValidation)

	_, err = f.chat.AppendMessage(f.ctx, f.owner, session.ID, strings.Repeat("a", 11))
	requireCode(t, err, apperrors.CodeValidation)

	_, err = f.chat.AppendMessage(f.ctx, f.owner, session.ID, "<script></script>")
	requireCode(t, err, apperrors.CodeValidation)

	_, err = f.chat.AppendMessage(f.ctx, f.stranger, session.ID, "hello")
	requireCode(t, err, apperrors.CodeUnauthorized)

	_, err = f.chat.AppendMessage(f.ctx, f.owner, "missing", "hello")
	requireCode(t, err, apperrors.CodeNotFound)

	_, err = f.chat.CloseSession(f.ctx, f.tech, session.ID)
	require.NoError(t, err)
	_, err = f.chat.AppendMessage(f.ctx, f.owner, session.ID, "hello")
	requireCode(t, err, apperrors.CodeInvalidTransition)
}

func TestAppendMessageSanitizesMarkup(t *testing.T) {
	f := newFixture(t)
	session := f.techSession(t)

	result, err := f.chat.AppendMessage(f.ctx, f.owner, session.ID, "<b>hello</b> world")
	require.NoError(t, err)
	assert.Equal(t, "hello world", result.Message.Content)
}

func TestAppendMessageKeepsPunctuation(t *testing.T) {
	f := newFixture(t)
	session := f.techSession(t)

	text := `I can't log in & "Outlook" says 2 < 3`
	result, err := f.chat.AppendMessage(f.ctx, f.owner, session.ID, text)
	require.NoError(t, err)
	assert.Equal(t, text, result.Message.Content)

	msgs, err := f.chat.ListMessages(f.ctx, f.owner, session.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, text, msgs[0].Content)
}

func TestAppendMessageLengthAppliesToStoredText(t *testing.T) {
	f := newFixture(t, withChatConfig(config.ChatConfig{MaxMessageLength: 10}))
	session := f.techSession(t)

	result, err := f.chat.AppendMessage(f.ctx, f.owner, session.ID, "<b>0123456789</b>")
	require.NoError(t, err)
	assert.Equal(t, "0123456789", result.Message.Content)

	_, err = f.chat.AppendMessage(f.ctx, f.owner, session.ID, "Q&A: a & b & c")
	requireCode(t, err, apperrors.CodeValidation)
}

func TestBotMatchesKeywordWithApostrophe(t *testing.T) {
	corpus := staticCorpus{items: []domain.FAQItem{{
		ID:       "mail-offline",
		Question: "Mail client offline",
		Answer:   "Restart the mail client.",
		Keywords: "can't connect",
		IsActive: true,
	}}}
	f := newFixture(t, withCorpus(corpus))
	session, err := f.chat.OpenBotSession(f.ctx, f.owner)
	require.NoError(t, err)

	result, err := f.chat.AppendMessage(f.ctx, f.owner, session.ID, "I can't")
	require.NoError(t, err)
	assert.Equal(t, faqbot.KindFAQ, result.Reply.Kind)
	assert.Equal(t, "Restart the mail client.", result.BotReply.Content)
}

func TestMessagesStayOrderedWhenClockGoesBack(t *testing.T) {
	f := newFixture(t)
	session := f.techSession(t)

	_, err := f.chat.AppendMessage(f.ctx, f.owner, session.ID, "first")
	require.NoError(t, err)
	f.clock.Set(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	_, err = f.chat.AppendMessage(f.ctx, f.tech, session.ID, "second")
	require.NoError(t, err)
	_, err = f.chat.AppendMessage(f.ctx, f.owner, session.ID, "third")
	require.NoError(t, err)

	msgs, err := f.chat.ListMessages(f.ctx, f.owner, session.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt))
	}
	assert.Equal(t, []string{"first", "second", "third"}, []string{msgs[0].Content, msgs[1].Content, msgs[2].Content})
}

func TestBotSessionAnswersFromCorpus(t *testing.T) {
	f := newFixture(t)
	_, err := f.faq.Import(f.ctx, mustSeed(t))
	require.NoError(t, err)
	session, err := f.chat.OpenBotSession(f.ctx, f.owner)
	require.NoError(t, err)

	result, err := f.chat.AppendMessage(f.ctx, f.owner, session.ID, "how do I reset my password")
	require.NoError(t, err)
	assert.Equal(t, domain.MessageUserToBot, result.Message.Type)
	assert.Nil(t, result.Message.ReceiverID)

	require.NotNil(t, result.BotReply)
	assert.Equal(t, domain.MessageBotToUser, result.BotReply.Type)
	assert.Nil(t, result.BotReply.SenderID)
	assert.Equal(t, f.owner.ActorID, *result.BotReply.ReceiverID)
	assert.True(t, result.BotReply.CreatedAt.After(result.Message.CreatedAt))

	require.Equal(t, faqbot.KindFAQ, result.Reply.Kind)
	assert.Equal(t, "How do I reset my password?", result.Reply.Matches[0].FAQ.Question)
	require.NotNil(t, result.BotReply.Payload)
	assert.Equal(t, string(faqbot.KindFAQ), result.BotReply.Payload.Kind)

	msgs, err := f.chat.ListMessages(f.ctx, f.owner, session.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	unread, err := f.chat.UnreadCount(f.ctx, f.owner, &session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
}

func TestBotGreetingWinsOverKeywords(t *testing.T) {
	corpus := staticCorpus{items: []domain.FAQItem{{
		ID:       "hello-faq",
		Question: "Hello world sample",
		Answer:   "Not a greeting",
		Keywords: "hello",
		IsActive: true,
	}}}
	f := newFixture(t, withCorpus(corpus))
	session, err := f.chat.OpenBotSession(f.ctx, f.owner)
	require.NoError(t, err)

	result, err := f.chat.AppendMessage(f.ctx, f.owner, session.ID, "hello")
	require.NoError(t, err)
	assert.Equal(t, faqbot.KindGreeting, result.Reply.Kind)
}

func TestBotFallsBackWhenCorpusUnavailable(t *testing.T) {
	f := newFixture(t, withCorpus(staticCorpus{err: errors.New("cache and database down")}))
	session, err := f.chat.OpenBotSession(f.ctx, f.owner)
	require.NoError(t, err)

	result, err := f.chat.AppendMessage(f.ctx, f.owner, session.ID, "my monitor shows stripes")
	require.NoError(t, err)
	assert.Equal(t, faqbot.KindFallback, result.Reply.Kind)
	assert.NotEmpty(t, result.BotReply.Content)
}

func TestEditAndDeleteMessage(t *testing.T) {
	f := newFixture(t)
	session := f.techSession(t)
	sent, err := f.chat.AppendMessage(f.ctx, f.owner, session.ID, "pritner broken")
	require.NoError(t, err)
	id := sent.Message.ID

	_, err = f.chat.EditMessage(f.ctx, f.tech, id, "printer broken")
	requireCode(t, err, apperrors.CodeUnauthorized)

	edited, err := f.chat.EditMessage(f.ctx, f.owner, id, "printer broken")
	require.NoError(t, err)
	assert.Equal(t, "printer broken", edited.Content)
	assert.NotNil(t, edited.EditedAt)

	require.NoError(t, f.chat.DeleteMessage(f.ctx, f.owner, id))
	require.NoError(t, f.chat.DeleteMessage(f.ctx, f.owner, id))

	_, err = f.chat.EditMessage(f.ctx, f.owner, id, "printer fixed")
	requireCode(t, err, apperrors.CodeInvalidTransition)

	visible, err := f.chat.ListMessages(f.ctx, f.owner, session.ID)
	require.NoError(t, err)
	assert.Empty(t, visible)

	audit, err := f.chat.Audit(f.ctx, f.owner, session.ID)
	require.NoError(t, err)
	require.Len(t, audit.Messages, 1)
	assert.True(t, audit.Messages[0].IsDeleted)
	require.Len(t, audit.Edits, 1)
	assert.Equal(t, "pritner broken", audit.Edits[0].PrevContent)
}

func TestUnreadAndMarkRead(t *testing.T) {
	f := newFixture(t)
	session := f.techSession(t)
	for _, text := range []string{"one", "two", "three"} {
		_, err := f.chat.AppendMessage(f.ctx, f.owner, session.ID, text)
		require.NoError(t, err)
	}

	unread, err := f.chat.UnreadCount(f.ctx, f.tech, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, unread)

	mine, err := f.chat.UnreadCount(f.ctx, f.owner, nil)
	require.NoError(t, err)
	assert.Zero(t, mine)

	n, err := f.chat.MarkRead(f.ctx, f.tech, session.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	unread, err = f.chat.UnreadCount(f.ctx, f.tech, &session.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestSessionStatusTransitions(t *testing.T) {
	f := newFixture(t)
	session := f.techSession(t)

	_, err := f.chat.CloseSession(f.ctx, f.stranger, session.ID)
	requireCode(t, err, apperrors.CodeUnauthorized)

	archived, err := f.chat.ArchiveSession(f.ctx, f.tech, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionArchived, archived.Status)

	_, err = f.chat.CloseSession(f.ctx, f.owner, session.ID)
	requireCode(t, err, apperrors.CodeInvalidTransition)

	changes := f.recorder.ofType(events.EventChatSessionStatusChanged)
	require.Len(t, changes, 1)
	assert.Equal(t, f.owner.ActorID, *changes[0].RecipientID)

	listed, err := f.chat.ListSessions(f.ctx, f.owner, SessionListFilter{})
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestArchiveIdle(t *testing.T) {
	f := newFixture(t)
	idle := f.techSession(t)

	f.clock.Set(time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	busy, err := f.chat.OpenBotSession(f.ctx, f.owner)
	require.NoError(t, err)
	_, err = f.chat.AppendMessage(f.ctx, f.owner, busy.ID, "thanks")
	require.NoError(t, err)

	n, err := f.chat.ArchiveIdle(f.ctx, 72*time.Hour, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.chat.GetSession(f.ctx, f.owner, idle.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionArchived, got.Status)

	got, err = f.chat.GetSession(f.ctx, f.owner, busy.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionActive, got.Status)

	n, err = f.chat.ArchiveIdle(f.ctx, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}
