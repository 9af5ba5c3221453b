package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"realtime_chat/internal/chat/domain"
	"realtime_chat/pkg/logger"
	"realtime_chat/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

const (
	defaultPingInterval = 10 * time.Minute
	conversationsKey    = "conversations"
)

// ChatWebsocketHandler live conversation and message lists over websocket
type ChatWebsocketHandler struct {
	syncUC       *SyncUseCase
	listenerUC   *ListenerUseCase
	pingInterval time.Duration
}

// NewChatWebsocketHandler create ChatWebsocketHandler
func NewChatWebsocketHandler(syncUC *SyncUseCase, listenerUC *ListenerUseCase) *ChatWebsocketHandler {
	return &ChatWebsocketHandler{
		syncUC:       syncUC,
		listenerUC:   listenerUC,
		pingInterval: defaultPingInterval,
	}
}

// wsClient one connection; writes are serialized, subscriptions keyed by target
type wsClient struct {
	conn    *websocket.Conn
	session domain.Session

	writeMu sync.Mutex

	mu   sync.Mutex
	subs map[string]context.CancelFunc
}

// HandleConnection 是 WebSocket 連線的進入點
func (h *ChatWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	email, _ := conn.Locals(middlewares.TokenEmail).(string)
	name, _ := conn.Locals(middlewares.TokenName).(string)
	client := &wsClient{
		conn:    conn,
		session: domain.NewSession(email, name),
		subs:    map[string]context.CancelFunc{},
	}
	userID := client.session.UserID()
	logger.Log.Info("websocket connected", zap.String("user", userID))

	if email == "" {
		client.sendError("missing session")
		conn.Close()
		return
	}

	ticker := time.NewTicker(h.pingInterval)
	ctxClose, cancel := context.WithCancel(ctx)

	defer func() {
		ticker.Stop()
		cancel()
		client.unsubscribeAll()
		logger.Log.Info("websocket close", zap.String("user", userID))
		conn.Close()
	}()

	//client發出close
	conn.SetCloseHandler(func(code int, text string) error {
		logger.Log.Info("websocket closed by client", zap.String("user", userID), zap.Int("code", code))
		return nil
	})

	//server發出ping之後client連線正常會回pong
	conn.SetPongHandler(func(appData string) error {
		logger.Log.Debug("received pong", zap.String("user", userID))
		return nil
	})

	//client發出ping
	conn.SetPingHandler(func(appData string) error {
		client.writeMu.Lock()
		defer client.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})

	// 定期發送 Ping
	go func() {
		for {
			select {
			case <-ticker.C:
				client.writeMu.Lock()
				err := conn.WriteMessage(websocket.PingMessage, []byte("ping"))
				client.writeMu.Unlock()
				if err != nil {
					logger.Log.Error("ping error", zap.String("user", userID), zap.Error(err))
					return
				}
			case <-ctxClose.Done():
				return
			}
		}
	}()

	for {
		// 1. 讀取前端訊息
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Info("connection closed", zap.String("user", userID))
			} else {
				//直接斷線 1006
				logger.Log.Error("websocket read error", zap.String("user", userID), zap.Error(err))
			}
			return
		}

		if mt != websocket.TextMessage {
			client.sendError("unsupported message type")
			continue
		}
		h.textMessageAction(ctxClose, client, message)
	}
}

func (h *ChatWebsocketHandler) textMessageAction(ctx context.Context, client *wsClient, msg []byte) {
	var req domain.WSRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		client.sendError("invalid json")
		return
	}

	resp := domain.WSResponse{Action: req.Action, Payload: map[string]interface{}{}}
	// start 在回覆送出後才開始推送
	var start func()
	switch domain.Action(req.Action) {
	// 訂閱自己的對話列表
	case domain.SubscribeConversations:
		var err error
		start, err = h.subscribeConversations(ctx, client)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
		}

	// 訂閱單一對話的訊息
	case domain.SubscribeMessages:
		if req.ConversationID == "" {
			resp.Error = "conversation_id is required"
			break
		}
		var err error
		if start, err = h.subscribeMessages(ctx, client, req.ConversationID); err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
			resp.Payload["conversation_id"] = req.ConversationID
		}

	case domain.Unsubscribe:
		key := conversationsKey
		if req.ConversationID != "" {
			key = messagesKey(req.ConversationID)
		}
		resp.Success = client.unsubscribe(key)

	// 沒有 conversation_id 時開新對話
	case domain.SendMessage:
		id, msgID, err := h.send(ctx, client.session, req)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
			resp.Payload["conversation_id"] = id
			resp.Payload["message_id"] = msgID
		}

	default:
		client.sendError("unknown action")
		return
	}

	if resp.Error != "" {
		logger.Log.Error("websocket action failed",
			zap.String("user", client.session.UserID()),
			zap.String("action", req.Action),
			zap.String("err", resp.Error))
	}
	client.sendResponse(resp)
	if start != nil {
		start()
	}
}

func (h *ChatWebsocketHandler) send(ctx context.Context, s domain.Session, req domain.WSRequest) (string, string, error) {
	kind := domain.Kind(req.Kind)
	if kind == "" {
		kind = domain.KindText
	}
	payload, err := domain.DecodePayload(kind, req.Content)
	if err != nil {
		return "", "", err
	}

	recipientID := domain.Canonicalize(req.RecipientEmail)
	msg := h.syncUC.NewMessage(s, recipientID, payload)

	if req.ConversationID == "" {
		id, err := h.syncUC.CreateConversation(ctx, s, recipientID, req.RecipientName, msg)
		return id, msg.ID, err
	}
	err = h.syncUC.SendMessage(ctx, s, SendRequest{
		ConversationID: req.ConversationID,
		RecipientID:    recipientID,
		RecipientName:  req.RecipientName,
		Message:        msg,
	})
	return req.ConversationID, msg.ID, err
}

// subscribeConversations open the subscription, the returned func starts pushing updates
func (h *ChatWebsocketHandler) subscribeConversations(ctx context.Context, client *wsClient) (func(), error) {
	subCtx := client.subscribe(ctx, conversationsKey)
	updates, err := h.listenerUC.SubscribeConversations(subCtx, client.session.UserID())
	if err != nil {
		client.unsubscribe(conversationsKey)
		return nil, err
	}

	return func() {
		go func() {
			for list := range updates {
				client.sendResponse(domain.WSResponse{
					Action:  string(domain.NotifyConversations),
					Success: true,
					Payload: map[string]interface{}{"conversations": list},
				})
			}
		}()
	}, nil
}

func (h *ChatWebsocketHandler) subscribeMessages(ctx context.Context, client *wsClient, conversationID string) (func(), error) {
	key := messagesKey(conversationID)
	subCtx := client.subscribe(ctx, key)
	updates, err := h.listenerUC.SubscribeMessages(subCtx, conversationID)
	if err != nil {
		client.unsubscribe(key)
		return nil, err
	}

	return func() {
		go func() {
			for update := range updates {
				resp := domain.WSResponse{
					Action:  string(domain.NotifyMessages),
					Success: update.Err == nil,
					Payload: map[string]interface{}{"conversation_id": conversationID},
				}
				if update.Err != nil {
					resp.Error = update.Err.Error()
				} else {
					resp.Payload["messages"] = update.Records
				}
				client.sendResponse(resp)
			}
		}()
	}, nil
}

func messagesKey(conversationID string) string {
	return "messages:" + conversationID
}

// subscribe replace any subscription under key and return its context
func (c *wsClient) subscribe(ctx context.Context, key string) context.Context {
	subCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	if prev, ok := c.subs[key]; ok {
		prev()
	}
	c.subs[key] = cancel
	c.mu.Unlock()
	return subCtx
}

func (c *wsClient) unsubscribe(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cancel, ok := c.subs[key]
	if ok {
		cancel()
		delete(c.subs, key)
	}
	return ok
}

func (c *wsClient) unsubscribeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, cancel := range c.subs {
		cancel()
		delete(c.subs, key)
	}
}

// sendResponse - 發送 JSON 給前端
func (c *wsClient) sendResponse(resp domain.WSResponse) {
	b, err := json.Marshal(resp)
	if err != nil {
		logger.Log.Error("marshal websocket response", zap.Error(err))
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		logger.Log.Error("write message error", zap.Error(err))
	}
}

func (c *wsClient) sendError(errorMsg string) {
	c.sendResponse(domain.WSResponse{
		Action:  "error",
		Success: false,
		Error:   errorMsg,
	})
}
