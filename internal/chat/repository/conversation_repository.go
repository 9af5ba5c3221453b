package repository

import (
	"context"
	"fmt"

	"realtime_chat/internal/chat/domain"
	"realtime_chat/pkg/logger"

	"go.uber.org/zap"
)

// ConversationRepository per-user conversation summaries at /{userId}/conversations.
// Lookups are linear scans by id, entries keep their position on update.
type ConversationRepository interface {
	// ListFor the user's summaries, empty when the user has none
	ListFor(ctx context.Context, userID string) ([]domain.ConversationSummary, error)
	// Upsert replace the summary with the same id in place, or append it
	Upsert(ctx context.Context, userID string, summary domain.ConversationSummary) error
	// UpsertLatest replace only latest_message of the summary with the same id,
	// or append summary when there is none
	UpsertLatest(ctx context.Context, userID string, summary domain.ConversationSummary) error
	// RemoveByID remove the first summary with conversationID, no-op when absent.
	// The conversation document is left alone.
	RemoveByID(ctx context.Context, userID, conversationID string) error
	// FindByCounterparty id of the first summary whose counterparty is counterpartyID
	FindByCounterparty(ctx context.Context, userID, counterpartyID string) (string, error)
	// Observe the user's summaries
	Observe(ctx context.Context, userID string) (<-chan []domain.ConversationSummary, error)
}

type conversationRepository struct {
	store DocumentStore
	mode  ConsistencyMode
}

// NewConversationRepository create a ConversationRepository on store
func NewConversationRepository(store DocumentStore, mode ConsistencyMode) ConversationRepository {
	return &conversationRepository{store: store, mode: mode}
}

func conversationsPath(userID string) string {
	return "/" + userID + "/conversations"
}

// ListFor the user's summaries
func (r *conversationRepository) ListFor(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	list, _, _, err := readList(ctx, r.store, conversationsPath(userID))
	if err != nil {
		return nil, err
	}
	return decodeSummaries(userID, list), nil
}

// Upsert replace or append summary
func (r *conversationRepository) Upsert(ctx context.Context, userID string, summary domain.ConversationSummary) error {
	node, err := toTree(summary)
	if err != nil {
		return err
	}
	return r.modify(ctx, userID, func(list []interface{}) ([]interface{}, bool) {
		if i := indexOfID(list, summary.ID); i >= 0 {
			list[i] = node
			return list, true
		}
		return append(list, node), true
	})
}

// UpsertLatest refresh latest_message or append summary
func (r *conversationRepository) UpsertLatest(ctx context.Context, userID string, summary domain.ConversationSummary) error {
	node, err := toTree(summary)
	if err != nil {
		return err
	}
	latest, err := toTree(summary.LatestMessage)
	if err != nil {
		return err
	}
	return r.modify(ctx, userID, func(list []interface{}) ([]interface{}, bool) {
		i := indexOfID(list, summary.ID)
		if i < 0 {
			return append(list, node), true
		}
		entry := copyEntry(list[i])
		entry["latest_message"] = latest
		list[i] = entry
		return list, true
	})
}

// RemoveByID drop the first summary with conversationID
func (r *conversationRepository) RemoveByID(ctx context.Context, userID, conversationID string) error {
	return r.modify(ctx, userID, func(list []interface{}) ([]interface{}, bool) {
		i := indexOfID(list, conversationID)
		if i < 0 {
			return list, false
		}
		return append(list[:i], list[i+1:]...), true
	})
}

// FindByCounterparty first summary id whose other_user_email is counterpartyID
func (r *conversationRepository) FindByCounterparty(ctx context.Context, userID, counterpartyID string) (string, error) {
	summaries, err := r.ListFor(ctx, userID)
	if err != nil {
		return "", err
	}
	for _, s := range summaries {
		if s.CounterpartyID == counterpartyID {
			return s.ID, nil
		}
	}
	return "", fmt.Errorf("conversation between %s and %s: %w", userID, counterpartyID, domain.ErrNotFound)
}

// Observe the user's summaries
func (r *conversationRepository) Observe(ctx context.Context, userID string) (<-chan []domain.ConversationSummary, error) {
	snaps, err := r.store.Observe(ctx, conversationsPath(userID))
	if err != nil {
		return nil, err
	}

	out := make(chan []domain.ConversationSummary)
	go func() {
		defer close(out)
		for snap := range snaps {
			summaries := decodeSummaries(userID, asList(snap.Value))
			select {
			case out <- summaries:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// modify read-modify-write of the raw list, unknown entries are written back untouched
func (r *conversationRepository) modify(ctx context.Context, userID string, fn func([]interface{}) ([]interface{}, bool)) error {
	path := conversationsPath(userID)

	list, rev, _, err := readList(ctx, r.store, path)
	if err != nil {
		return err
	}

	work := make([]interface{}, len(list))
	copy(work, list)
	next, changed := fn(work)
	if !changed {
		return nil
	}
	return r.store.Write(ctx, path, next, guard(r.mode, rev)...)
}

func indexOfID(list []interface{}, id string) int {
	for i, node := range list {
		if m, ok := node.(map[string]interface{}); ok {
			if v, _ := m["id"].(string); v == id {
				return i
			}
		}
	}
	return -1
}

func copyEntry(node interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	if m, ok := node.(map[string]interface{}); ok {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// decodeSummaries summaries missing a required field are skipped
func decodeSummaries(userID string, list []interface{}) []domain.ConversationSummary {
	out := make([]domain.ConversationSummary, 0, len(list))
	for i, node := range list {
		s, ok := decodeSummary(node)
		if !ok {
			logger.Log.Warn("skip malformed conversation summary", zap.String("user", userID), zap.Int("index", i))
			continue
		}
		out = append(out, s)
	}
	return out
}

func decodeSummary(node interface{}) (domain.ConversationSummary, bool) {
	m, ok := node.(map[string]interface{})
	if !ok {
		return domain.ConversationSummary{}, false
	}
	id, ok1 := m["id"].(string)
	other, ok2 := m["other_user_email"].(string)
	name, ok3 := m["name"].(string)
	latest, ok4 := m["latest_message"].(map[string]interface{})
	if !(ok1 && ok2 && ok3 && ok4) {
		return domain.ConversationSummary{}, false
	}
	date, ok5 := latest["date"].(string)
	text, ok6 := latest["message"].(string)
	isRead, ok7 := latest["is_read"].(bool)
	if !(ok5 && ok6 && ok7) {
		return domain.ConversationSummary{}, false
	}
	return domain.ConversationSummary{
		ID:             id,
		CounterpartyID: other,
		DisplayName:    name,
		LatestMessage:  domain.LatestMessage{Date: date, Text: text, IsRead: isRead},
	}, true
}
