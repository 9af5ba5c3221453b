package router

import (
	"context"
	"encoding/json"
	"net"
	"net/url"
	"testing"
	"time"

	"realtime_chat/internal/chat/domain"
	"realtime_chat/internal/chat/repository"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startServer serve a test app on a free local port and return its address
func startServer(t *testing.T) string {
	t.Helper()
	return startServerOn(t, repository.NewMemoryStore())
}

func startServerOn(t *testing.T, store repository.DocumentStore) string {
	t.Helper()
	r := newTestAppOn(t, store, 600, 100)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		_ = r.Listener(ln)
	}()
	t.Cleanup(func() { _ = r.Shutdown() })
	return ln.Addr().String()
}

func dialWS(t *testing.T, addr, tok string) *gws.Conn {
	t.Helper()
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws", RawQuery: "auth=" + url.QueryEscape(tok)}

	var (
		conn *gws.Conn
		err  error
	)
	// 等待 server 啟動
	require.Eventually(t, func() bool {
		conn, _, err = gws.DefaultDialer.Dial(u.String(), nil)
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *gws.Conn, req domain.WSRequest) {
	t.Helper()
	b, err := json.Marshal(req)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(gws.TextMessage, b))
}

// readNext the next frame
func readNext(t *testing.T, conn *gws.Conn) domain.WSResponse {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var resp domain.WSResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}

// readUntil skip frames until one with action arrives
func readUntil(t *testing.T, conn *gws.Conn, action domain.Action) domain.WSResponse {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", action)

		var resp domain.WSResponse
		require.NoError(t, json.Unmarshal(raw, &resp))
		if resp.Action == string(action) {
			return resp
		}
	}
}

func TestWebsocketRequiresToken(t *testing.T) {
	addr := startServer(t)

	_, resp, err := gws.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestWebsocketLiveConversation(t *testing.T) {
	addr := startServer(t)
	aliceConn := dialWS(t, addr, authToken(t, "alice@test.com", "Alice"))
	bobConn := dialWS(t, addr, authToken(t, "bob@test.com", "Bob"))

	// 1. bob 訂閱自己的對話列表, 先收到目前狀態
	send(t, bobConn, domain.WSRequest{Action: string(domain.SubscribeConversations)})
	initial := readUntil(t, bobConn, domain.NotifyConversations)
	assert.Empty(t, initial.Payload["conversations"])

	// 2. alice 透過 websocket 開新對話
	send(t, aliceConn, domain.WSRequest{
		Action:         string(domain.SendMessage),
		RecipientEmail: "bob@test.com",
		RecipientName:  "Bob",
		Content:        "hi",
	})
	ack := readUntil(t, aliceConn, domain.SendMessage)
	require.True(t, ack.Success, ack.Error)
	conversationID := ack.Payload["conversation_id"].(string)

	update := readUntil(t, bobConn, domain.NotifyConversations)
	list := update.Payload["conversations"].([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, conversationID, list[0].(map[string]interface{})["id"])

	// 3. bob 訂閱訊息並回覆
	send(t, bobConn, domain.WSRequest{Action: string(domain.SubscribeMessages), ConversationID: conversationID})
	msgs := readUntil(t, bobConn, domain.NotifyMessages)
	assert.Len(t, msgs.Payload["messages"], 1)

	send(t, bobConn, domain.WSRequest{
		Action:         string(domain.SendMessage),
		ConversationID: conversationID,
		RecipientEmail: "alice@test.com",
		RecipientName:  "Alice",
		Content:        "hello",
	})
	msgs = readUntil(t, bobConn, domain.NotifyMessages)
	records := msgs.Payload["messages"].([]interface{})
	require.Len(t, records, 2)
	assert.Equal(t, "hello", records[1].(map[string]interface{})["content"])

	// 4. 取消訂閱
	send(t, bobConn, domain.WSRequest{Action: string(domain.Unsubscribe), ConversationID: conversationID})
	unsub := readUntil(t, bobConn, domain.Unsubscribe)
	assert.True(t, unsub.Success)
}

func TestWebsocketUnknownAction(t *testing.T) {
	addr := startServer(t)
	conn := dialWS(t, addr, authToken(t, "alice@test.com", "Alice"))

	send(t, conn, domain.WSRequest{Action: "dance"})
	resp := readUntil(t, conn, "error")
	assert.Equal(t, "unknown action", resp.Error)

	send(t, conn, domain.WSRequest{Action: string(domain.SubscribeMessages)})
	resp = readUntil(t, conn, domain.SubscribeMessages)
	assert.False(t, resp.Success)
}

func TestWebsocketAckBeforeFirstPush(t *testing.T) {
	store := repository.NewMemoryStore()
	msgRepo := repository.NewMessageRepository(store, repository.LastWriteWins)
	require.NoError(t, msgRepo.Start(context.Background(), "conversation_seen", domain.MessageRecord{
		ID: "m1", Type: domain.KindText, Content: "seen", Date: "Mar 1, 2024 at 5:30:00 PM CST",
		SenderEmail: "bob-test-com", IsRead: true, Name: "Bob",
	}))

	addr := startServerOn(t, store)
	conn := dialWS(t, addr, authToken(t, "alice@test.com", "Alice"))

	// 回覆一定先於第一筆推送
	send(t, conn, domain.WSRequest{Action: string(domain.SubscribeConversations)})
	ack := readNext(t, conn)
	assert.Equal(t, string(domain.SubscribeConversations), ack.Action)
	assert.True(t, ack.Success)
	assert.Equal(t, string(domain.NotifyConversations), readNext(t, conn).Action)

	send(t, conn, domain.WSRequest{Action: string(domain.SubscribeMessages), ConversationID: "conversation_seen"})
	ack = readNext(t, conn)
	assert.Equal(t, string(domain.SubscribeMessages), ack.Action)
	assert.True(t, ack.Success)

	push := readNext(t, conn)
	require.Equal(t, string(domain.NotifyMessages), push.Action)
	records := push.Payload["messages"].([]interface{})
	require.Len(t, records, 1)
	record := records[0].(map[string]interface{})
	assert.Equal(t, true, record["is_read"])
	assert.Equal(t, "Mar 1, 2024 at 5:30:00 PM CST", record["date"])
}
