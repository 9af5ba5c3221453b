package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"realtime_chat/internal/chat/domain"
	"realtime_chat/internal/chat/repository"
	"realtime_chat/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pathBarrier holds each Read of path until n readers of that path arrived,
// other paths pass through
type pathBarrier struct {
	repository.DocumentStore
	path string
	wg   sync.WaitGroup
}

func newPathBarrier(inner repository.DocumentStore, path string, n int) *pathBarrier {
	b := &pathBarrier{DocumentStore: inner, path: path}
	b.wg.Add(n)
	return b
}

func (b *pathBarrier) Read(ctx context.Context, path string) (repository.Document, error) {
	doc, err := b.DocumentStore.Read(ctx, path)
	if path == b.path {
		b.wg.Done()
		b.wg.Wait()
	}
	return doc, err
}

// sendConcurrently run every request at once and collect the errors in order
func sendConcurrently(uc *SyncUseCase, sessions []domain.Session, reqs []SendRequest) []error {
	errs := make([]error, len(reqs))
	var wg sync.WaitGroup
	for i := range reqs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = uc.SendMessage(context.Background(), sessions[i], reqs[i])
		}(i)
	}
	wg.Wait()
	return errs
}

func TestConcurrentSendSameConversation(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()

	run := func(mode repository.ConsistencyMode) (int, []error) {
		mem := repository.NewMemoryStore()
		setup := NewSyncUseCase(repository.NewConversationRepository(mem, mode), repository.NewMessageRepository(mem, mode))
		first := setup.NewMessage(alice, "bob-test-com", domain.TextPayload{Body: "hi"})
		id, err := setup.CreateConversation(ctx, alice, "bob-test-com", "Bob", first)
		require.NoError(t, err)

		racing := newPathBarrier(mem, "/"+id+"/messages", 2)
		uc := NewSyncUseCase(repository.NewConversationRepository(racing, mode), repository.NewMessageRepository(racing, mode))
		reqs := make([]SendRequest, 2)
		for i, body := range []string{"one", "two"} {
			reqs[i] = SendRequest{
				ConversationID: id,
				RecipientID:    "bob-test-com",
				RecipientName:  "Bob",
				Message:        uc.NewMessage(alice, "bob-test-com", domain.TextPayload{Body: body}),
			}
		}
		errs := sendConcurrently(uc, []domain.Session{alice, alice}, reqs)

		records, err := setup.MessageRecords(ctx, id)
		require.NoError(t, err)
		return len(records), errs
	}

	t.Run("last write wins drops one message", func(t *testing.T) {
		n, errs := run(repository.LastWriteWins)
		assert.NoError(t, errs[0])
		assert.NoError(t, errs[1])
		// 兩次都回報成功, 但只留下一筆新訊息
		assert.Equal(t, 2, n)
	})

	t.Run("optimistic rejects the second writer", func(t *testing.T) {
		n, errs := run(repository.Optimistic)
		conflicts := 0
		for _, err := range errs {
			if errors.Is(err, domain.ErrRevisionConflict) {
				// append 沒寫入, 後面的步驟都不跑
				assert.False(t, errors.Is(err, domain.ErrPartialSync))
				conflicts++
				continue
			}
			assert.NoError(t, err)
		}
		assert.Equal(t, 1, conflicts)
		assert.Equal(t, 2, n)
	})
}

func TestConcurrentSendSharedRecipientIndex(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	carol := domain.NewSession("carol@test.com", "Carol")

	run := func(mode repository.ConsistencyMode) ([]domain.ConversationSummary, []error) {
		mem := repository.NewMemoryStore()
		convRepo := repository.NewConversationRepository(mem, mode)
		setup := NewSyncUseCase(convRepo, repository.NewMessageRepository(mem, mode))

		ids := make([]string, 2)
		for i, s := range []domain.Session{alice, carol} {
			first := setup.NewMessage(s, "bob-test-com", domain.TextPayload{Body: "hi"})
			id, err := setup.CreateConversation(ctx, s, "bob-test-com", "Bob", first)
			require.NoError(t, err)
			ids[i] = id
		}
		// bob 把兩個對話都刪掉, 下一則訊息會重新加回列表
		for _, id := range ids {
			require.NoError(t, setup.DeleteConversation(ctx, bob, id))
		}

		racing := newPathBarrier(mem, "/bob-test-com/conversations", 2)
		uc := NewSyncUseCase(repository.NewConversationRepository(racing, mode), repository.NewMessageRepository(racing, mode),
			WithClock(func() time.Time { return fixedAt }))
		sessions := []domain.Session{alice, carol}
		reqs := make([]SendRequest, 2)
		for i, s := range sessions {
			reqs[i] = SendRequest{
				ConversationID: ids[i],
				RecipientID:    "bob-test-com",
				RecipientName:  "Bob",
				Message:        uc.NewMessage(s, "bob-test-com", domain.TextPayload{Body: "again"}),
			}
		}
		errs := sendConcurrently(uc, sessions, reqs)

		list, err := convRepo.ListFor(ctx, "bob-test-com")
		require.NoError(t, err)
		return list, errs
	}

	t.Run("last write wins drops one summary", func(t *testing.T) {
		list, errs := run(repository.LastWriteWins)
		assert.NoError(t, errs[0])
		assert.NoError(t, errs[1])
		assert.Len(t, list, 1)
	})

	t.Run("optimistic reports a partial sync", func(t *testing.T) {
		list, errs := run(repository.Optimistic)
		partial := 0
		for _, err := range errs {
			if err == nil {
				continue
			}
			var ps *domain.PartialSyncError
			require.True(t, errors.As(err, &ps), err)
			assert.Equal(t, []string{StepRecipientIndex}, ps.Failed)
			assert.Equal(t, []string{StepAppendMessage, StepSenderIndex}, ps.Completed)
			assert.True(t, errors.Is(err, domain.ErrRevisionConflict))
			partial++
		}
		assert.Equal(t, 1, partial)
		assert.Len(t, list, 1)
	})
}
