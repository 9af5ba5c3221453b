package repository

import (
	"context"
	"fmt"

	"realtime_chat/internal/chat/domain"
	"realtime_chat/pkg/logger"

	"go.uber.org/zap"
)

// MessageRepository per-conversation message lists at /{conversationId}/messages
type MessageRepository interface {
	// Start overwrite /{conversationId} with a message list holding only first
	Start(ctx context.Context, conversationID string, first domain.MessageRecord) error
	// Append read the whole list, append record, write it back. domain.ErrNotFound
	// when the conversation has no message list.
	Append(ctx context.Context, conversationID string, record domain.MessageRecord) error
	// ReadAll every record in append order, domain.ErrNotFound when absent
	ReadAll(ctx context.Context, conversationID string) ([]domain.MessageRecord, error)
	// Observe the message list of a conversation
	Observe(ctx context.Context, conversationID string) (<-chan RecordsUpdate, error)
}

// RecordsUpdate one observed state of a message list, Err is domain.ErrNotFound
// while the list does not exist
type RecordsUpdate struct {
	Records []domain.MessageRecord
	Err     error
}

type messageRepository struct {
	store DocumentStore
	mode  ConsistencyMode
}

// NewMessageRepository create a MessageRepository on store
func NewMessageRepository(store DocumentStore, mode ConsistencyMode) MessageRepository {
	return &messageRepository{store: store, mode: mode}
}

func messagesPath(conversationID string) string {
	return "/" + conversationID + "/messages"
}

// Start create the conversation document
func (r *messageRepository) Start(ctx context.Context, conversationID string, first domain.MessageRecord) error {
	node, err := toTree(first)
	if err != nil {
		return err
	}
	value := map[string]interface{}{
		"messages": []interface{}{node},
	}
	return r.store.Write(ctx, "/"+conversationID, value)
}

// Append add record to the end of the conversation
func (r *messageRepository) Append(ctx context.Context, conversationID string, record domain.MessageRecord) error {
	path := messagesPath(conversationID)

	// 1. 讀整個 list
	list, rev, found, err := readList(ctx, r.store, path)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
	}

	// 2. append 後整個寫回
	node, err := toTree(record)
	if err != nil {
		return err
	}
	next := make([]interface{}, 0, len(list)+1)
	next = append(next, list...)
	next = append(next, node)

	return r.store.Write(ctx, path, next, guard(r.mode, rev)...)
}

// ReadAll every record of the conversation
func (r *messageRepository) ReadAll(ctx context.Context, conversationID string) ([]domain.MessageRecord, error) {
	list, _, found, err := readList(ctx, r.store, messagesPath(conversationID))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
	}
	return decodeRecords(conversationID, list), nil
}

// Observe the conversation's message list
func (r *messageRepository) Observe(ctx context.Context, conversationID string) (<-chan RecordsUpdate, error) {
	snaps, err := r.store.Observe(ctx, messagesPath(conversationID))
	if err != nil {
		return nil, err
	}

	out := make(chan RecordsUpdate)
	go func() {
		defer close(out)
		for snap := range snaps {
			u := RecordsUpdate{}
			if !snap.Exists {
				u.Err = fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
			} else {
				u.Records = decodeRecords(conversationID, asList(snap.Value))
			}
			select {
			case out <- u:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func decodeRecords(conversationID string, list []interface{}) []domain.MessageRecord {
	records := make([]domain.MessageRecord, 0, len(list))
	for i, node := range list {
		m, ok := node.(map[string]interface{})
		if !ok {
			continue
		}
		var rec domain.MessageRecord
		if err := fromTree(m, &rec); err != nil || rec.ID == "" {
			logger.Log.Warn("skip malformed message record",
				zap.String("conversation", conversationID), zap.Int("index", i), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records
}
