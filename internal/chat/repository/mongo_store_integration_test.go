package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"realtime_chat/internal/chat/domain"
	"realtime_chat/pkg/database"
	"realtime_chat/pkg/logger"
	testtool "realtime_chat/pkg/test_tool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startMongoStore 啟動 mongo + redis 容器, docker 不可用時 skip
func startMongoStore(t *testing.T) *MongoStore {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test")
	}
	logger.SetNewNop()
	ctx := context.Background()

	mongoC, mongoHost, mongoPort, err := testtool.SetupContainer(ctx, testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp"),
	})
	if err != nil {
		t.Skipf("mongo container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = mongoC.Terminate(ctx) })

	redisC, redisHost, redisPort, err := testtool.SetupContainer(ctx, testcontainers.ContainerRequest{
		Image:        "redis:7",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp"),
	})
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = redisC.Terminate(ctx) })

	mongo, err := database.NewMongoDB(ctx, database.Connection{
		ConnectStr:    fmt.Sprintf("mongodb://%s:%s", mongoHost, mongoPort),
		RetryCount:    5,
		RetryInterval: time.Second,
	}, "test_chat_db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = mongo.Close(ctx) })

	rdb, err := database.NewRedis(ctx, database.RedisConnection{Addr: redisHost + ":" + redisPort})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	return NewMongoStore(mongo.Database, "documents", NewRedisPubSub(rdb))
}

func TestMongoStore(t *testing.T) {
	store := startMongoStore(t)
	ctx := context.Background()

	t.Run("read write", func(t *testing.T) {
		_, err := store.Read(ctx, "/a-test-com")
		assert.True(t, errors.Is(err, domain.ErrNotFound))

		require.NoError(t, store.Write(ctx, "/a-test-com", map[string]interface{}{"first_name": "Ann", "last_name": "Lee"}))
		require.NoError(t, store.Write(ctx, "/a-test-com/conversations", []interface{}{
			map[string]interface{}{"id": "c1", "lat": 10.8},
		}))

		doc, err := store.Read(ctx, "/a-test-com")
		require.NoError(t, err)
		assert.Equal(t, int64(2), doc.Revision)
		m := doc.Value.(map[string]interface{})
		assert.Equal(t, "Ann", m["first_name"])

		doc, err = store.Read(ctx, "/a-test-com/conversations")
		require.NoError(t, err)
		assert.Equal(t, []interface{}{map[string]interface{}{"id": "c1", "lat": 10.8}}, doc.Value)

		doc, err = store.Read(ctx, "/a-test-com/missing")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.Equal(t, int64(2), doc.Revision)
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, store.Write(ctx, "/gone", map[string]interface{}{"k": "v"}))
		require.NoError(t, store.Write(ctx, "/gone", nil))
		_, err := store.Read(ctx, "/gone")
		assert.True(t, errors.Is(err, domain.ErrNotFound))

		// 刪除後仍可寫入子路徑
		require.NoError(t, store.Write(ctx, "/gone/k", "again"))
		doc, err := store.Read(ctx, "/gone/k")
		require.NoError(t, err)
		assert.Equal(t, "again", doc.Value)
	})

	t.Run("if revision", func(t *testing.T) {
		require.NoError(t, store.Write(ctx, "/c9/messages", []interface{}{"m1"}, IfRevision(0)))
		err := store.Write(ctx, "/c9/messages", []interface{}{"m2"}, IfRevision(0))
		assert.True(t, errors.Is(err, domain.ErrRevisionConflict))

		require.NoError(t, store.Write(ctx, "/c9/messages", []interface{}{"m1", "m2"}, IfRevision(1)))
		err = store.Write(ctx, "/c9/messages", []interface{}{"m1", "m3"}, IfRevision(1))
		assert.True(t, errors.Is(err, domain.ErrRevisionConflict))
	})

	t.Run("observe", func(t *testing.T) {
		octx, cancel := context.WithCancel(ctx)
		defer cancel()

		ch, err := store.Observe(octx, "/b-test-com/conversations")
		require.NoError(t, err)

		first := recv(t, ch)
		assert.False(t, first.Exists)

		require.NoError(t, store.Write(ctx, "/b-test-com/conversations", []interface{}{"c1"}))
		require.NoError(t, store.Write(ctx, "/b-test-com/first_name", "Bo"))
		require.NoError(t, store.Write(ctx, "/b-test-com/conversations", []interface{}{"c1", "c2"}))

		assert.Equal(t, []interface{}{"c1"}, recv(t, ch).Value)
		assert.Equal(t, []interface{}{"c1", "c2"}, recv(t, ch).Value)
	})
}

func TestMongoStoreRepositories(t *testing.T) {
	store := startMongoStore(t)
	ctx := context.Background()

	messages := NewMessageRepository(store, Optimistic)
	conversations := NewConversationRepository(store, Optimistic)

	require.NoError(t, messages.Start(ctx, "conversation_m1", record("m1", "hi")))
	require.NoError(t, messages.Append(ctx, "conversation_m1", record("m2", "there")))
	got, err := messages.ReadAll(ctx, "conversation_m1")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	require.NoError(t, conversations.Upsert(ctx, "a-test-com", summary("conversation_m1", "b-test-com", "hi")))
	require.NoError(t, conversations.UpsertLatest(ctx, "a-test-com", summary("conversation_m1", "b-test-com", "there")))
	list, err := conversations.ListFor(ctx, "a-test-com")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "there", list[0].LatestMessage.Text)
}
