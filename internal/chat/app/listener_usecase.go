package app

import (
	"context"
	"time"

	"realtime_chat/internal/chat/domain"
	"realtime_chat/internal/chat/repository"
)

// MessagesUpdate one observed state of a conversation. Err is domain.ErrNotFound
// while the conversation document does not exist.
// Records are the stored records as written, Messages the decodable ones.
type MessagesUpdate struct {
	Records  []domain.MessageRecord
	Messages []domain.Message
	Err      error
}

// ListenerUseCase live views of conversation lists and message lists.
// Subscriptions end when ctx is cancelled and the channel is closed.
type ListenerUseCase struct {
	convRepo repository.ConversationRepository
	msgRepo  repository.MessageRepository
	loc      *time.Location
}

// NewListenerUseCase init listener use case
func NewListenerUseCase(
	convRepo repository.ConversationRepository,
	msgRepo repository.MessageRepository,
	loc *time.Location,
) *ListenerUseCase {
	if loc == nil {
		loc = time.UTC
	}
	return &ListenerUseCase{convRepo: convRepo, msgRepo: msgRepo, loc: loc}
}

// SubscribeConversations every state of userID's conversation list, the current one first
func (uc *ListenerUseCase) SubscribeConversations(ctx context.Context, userID string) (<-chan []domain.ConversationSummary, error) {
	return uc.convRepo.Observe(ctx, userID)
}

// SubscribeMessages every state of a conversation's message list, the current one first
func (uc *ListenerUseCase) SubscribeMessages(ctx context.Context, conversationID string) (<-chan MessagesUpdate, error) {
	records, err := uc.msgRepo.Observe(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	out := make(chan MessagesUpdate)
	go func() {
		defer close(out)
		for update := range records {
			next := MessagesUpdate{Err: update.Err}
			if update.Err == nil {
				next.Records = update.Records
				next.Messages = decodeMessages(conversationID, update.Records, uc.loc)
			}
			select {
			case out <- next:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
