package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"realtime_chat/internal/chat/domain"
	"realtime_chat/internal/chat/repository"
	"realtime_chat/pkg/logger"

	"github.com/cucumber/godog"
)

// syncWorld state shared by the steps of one scenario
type syncWorld struct {
	store    *repository.MemoryStore
	convRepo *switchableConversations
	msgRepo  repository.MessageRepository
	uc       *SyncUseCase

	sessions       map[string]domain.Session
	conversationID string
	lastErr        error
	clock          time.Time
	remembered     map[string]repository.Document
}

// switchableConversations fails writes for users marked unavailable
type switchableConversations struct {
	repository.ConversationRepository
	down map[string]bool
}

func (s *switchableConversations) UpsertLatest(ctx context.Context, userID string, summary domain.ConversationSummary) error {
	if s.down[userID] {
		return &domain.StoreError{Op: "write", Path: "/" + userID + "/conversations", Err: errors.New("unavailable")}
	}
	return s.ConversationRepository.UpsertLatest(ctx, userID, summary)
}

func (w *syncWorld) reset() {
	w.store = repository.NewMemoryStore()
	w.convRepo = &switchableConversations{
		ConversationRepository: repository.NewConversationRepository(w.store, repository.LastWriteWins),
		down:                   map[string]bool{},
	}
	w.msgRepo = repository.NewMessageRepository(w.store, repository.LastWriteWins)
	w.clock = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	w.uc = NewSyncUseCase(w.convRepo, w.msgRepo, WithClock(func() time.Time {
		w.clock = w.clock.Add(time.Second)
		return w.clock
	}))
	w.sessions = map[string]domain.Session{}
	w.conversationID = ""
	w.lastErr = nil
	w.remembered = map[string]repository.Document{}
}

func (w *syncWorld) signedIn(email, name string) error {
	w.sessions[email] = domain.NewSession(email, name)
	return nil
}

func (w *syncWorld) startConversation(sender, recipient, text string) error {
	s := w.sessions[sender]
	r := w.sessions[recipient]
	msg := w.uc.NewMessage(s, r.UserID(), domain.TextPayload{Body: text})
	id, err := w.uc.CreateConversation(context.Background(), s, r.UserID(), r.Name, msg)
	if err != nil {
		return err
	}
	w.conversationID = id
	return nil
}

func (w *syncWorld) reply(sender, text string) error {
	s := w.sessions[sender]
	var recipient domain.Session
	for _, other := range w.sessions {
		if other.Email != sender {
			recipient = other
		}
	}
	msg := w.uc.NewMessage(s, recipient.UserID(), domain.TextPayload{Body: text})
	w.lastErr = w.uc.SendMessage(context.Background(), s, SendRequest{
		ConversationID: w.conversationID,
		RecipientID:    recipient.UserID(),
		RecipientName:  recipient.Name,
		Message:        msg,
	})
	if w.lastErr != nil && !errors.Is(w.lastErr, domain.ErrPartialSync) {
		return w.lastErr
	}
	return nil
}

func (w *syncWorld) indexUnavailable(userID string) error {
	w.convRepo.down[userID] = true
	return nil
}

func (w *syncWorld) lastSyncPartial() error {
	if !errors.Is(w.lastErr, domain.ErrPartialSync) {
		return fmt.Errorf("expected a partial sync, got %v", w.lastErr)
	}
	return nil
}

func (w *syncWorld) deleteCurrent(email string) error {
	return w.uc.DeleteConversation(context.Background(), w.sessions[email], w.conversationID)
}

func (w *syncWorld) deleteByID(email, id string) error {
	return w.uc.DeleteConversation(context.Background(), w.sessions[email], id)
}

func (w *syncWorld) holdsMessages(n int) error {
	msgs, err := w.uc.Messages(context.Background(), w.conversationID)
	if err != nil {
		return err
	}
	if len(msgs) != n {
		return fmt.Errorf("expected %d messages, got %d", n, len(msgs))
	}
	return nil
}

func (w *syncWorld) messageIs(index int, text, senderID string) error {
	msgs, err := w.uc.Messages(context.Background(), w.conversationID)
	if err != nil {
		return err
	}
	if index < 1 || index > len(msgs) {
		return fmt.Errorf("no message %d", index)
	}
	m := msgs[index-1]
	if m.Payload != (domain.TextPayload{Body: text}) || m.Sender.ID != senderID {
		return fmt.Errorf("message %d is %+v from %s", index, m.Payload, m.Sender.ID)
	}
	return nil
}

func (w *syncWorld) listsConversation(userID, counterparty, name, latest string) error {
	list, err := w.convRepo.ListFor(context.Background(), userID)
	if err != nil {
		return err
	}
	for _, s := range list {
		if s.ID != w.conversationID {
			continue
		}
		if s.CounterpartyID != counterparty || s.DisplayName != name || s.LatestMessage.Text != latest {
			return fmt.Errorf("unexpected summary %+v", s)
		}
		return nil
	}
	return fmt.Errorf("%s has no entry for %s", userID, w.conversationID)
}

func (w *syncWorld) rememberIndex(userID string) error {
	doc, err := w.store.Read(context.Background(), "/"+userID+"/conversations")
	if err != nil {
		return err
	}
	w.remembered[userID] = doc
	return nil
}

// indexUnchanged same bytes and same revision, so nothing was written
func (w *syncWorld) indexUnchanged(userID string) error {
	before, ok := w.remembered[userID]
	if !ok {
		return fmt.Errorf("index of %s was not remembered", userID)
	}
	after, err := w.store.Read(context.Background(), "/"+userID+"/conversations")
	if err != nil {
		return err
	}
	b1, err := json.Marshal(before.Value)
	if err != nil {
		return err
	}
	b2, err := json.Marshal(after.Value)
	if err != nil {
		return err
	}
	if !bytes.Equal(b1, b2) {
		return fmt.Errorf("index of %s changed: %s -> %s", userID, b1, b2)
	}
	if before.Revision != after.Revision {
		return fmt.Errorf("index of %s rewritten: revision %d -> %d", userID, before.Revision, after.Revision)
	}
	return nil
}

func (w *syncWorld) hasConversations(userID string, n int) error {
	list, err := w.convRepo.ListFor(context.Background(), userID)
	if err != nil {
		return err
	}
	if len(list) != n {
		return fmt.Errorf("expected %d conversations for %s, got %d", n, userID, len(list))
	}
	return nil
}

func initializeSyncScenario(ctx *godog.ScenarioContext) {
	w := &syncWorld{}
	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		w.reset()
		return c, nil
	})

	ctx.Step(`^"([^"]*)" is signed in as "([^"]*)"$`, w.signedIn)
	ctx.Step(`^"([^"]*)" (?:starts|started) a conversation with "([^"]*)" saying "([^"]*)"$`, w.startConversation)
	ctx.Step(`^"([^"]*)" replies "([^"]*)"$`, w.reply)
	ctx.Step(`^the conversation index of "([^"]*)" is unavailable$`, w.indexUnavailable)
	ctx.Step(`^the last sync was partial$`, w.lastSyncPartial)
	ctx.Step(`^"([^"]*)" deletes the conversation$`, w.deleteCurrent)
	ctx.Step(`^"([^"]*)" deletes conversation "([^"]*)"$`, w.deleteByID)
	ctx.Step(`^the conversation holds (\d+) messages$`, w.holdsMessages)
	ctx.Step(`^message (\d+) is "([^"]*)" from "([^"]*)"$`, w.messageIs)
	ctx.Step(`^"([^"]*)" lists a conversation with "([^"]*)" named "([^"]*)" showing "([^"]*)"$`, w.listsConversation)
	ctx.Step(`^"([^"]*)" has (\d+) conversations$`, w.hasConversations)
	ctx.Step(`^the conversation index of "([^"]*)" is remembered$`, w.rememberIndex)
	ctx.Step(`^the conversation index of "([^"]*)" is unchanged$`, w.indexUnchanged)
}

func TestSyncFeatures(t *testing.T) {
	logger.SetNewNop()
	suite := godog.TestSuite{
		Name:                "conversation sync",
		ScenarioInitializer: initializeSyncScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"featureFiles"},
			TestingT: t,
			Strict:   true,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
