package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"

	"realtime_chat/internal/chat/domain"
	"realtime_chat/internal/chat/repository"
	errprocess "realtime_chat/pkg/err"
	"realtime_chat/pkg/logger"
	"realtime_chat/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// HTTPHandler REST endpoints of the chat service
type HTTPHandler struct {
	syncUC    *SyncUseCase
	accountUC *AccountUseCase
	mediaUC   *MediaUseCase
	// memBlobs set when blobs are kept in process, served under /blobs
	memBlobs *repository.MemoryBlobRepository
}

// NewHTTPHandler create HTTPHandler, memBlobs may be nil
func NewHTTPHandler(
	syncUC *SyncUseCase,
	accountUC *AccountUseCase,
	mediaUC *MediaUseCase,
	memBlobs *repository.MemoryBlobRepository,
) *HTTPHandler {
	return &HTTPHandler{
		syncUC:    syncUC,
		accountUC: accountUC,
		mediaUC:   mediaUC,
		memBlobs:  memBlobs,
	}
}

// InsertUserRequest body of POST /users
type InsertUserRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// MessageRequest body of POST /conversations and POST /conversations/:id/messages
type MessageRequest struct {
	RecipientEmail string `json:"recipient_email"`
	RecipientName  string `json:"recipient_name"`
	Kind           string `json:"type"`
	Content        string `json:"content"`
}

// SessionFromCtx session placed by middlewares.JWTMiddleware
func SessionFromCtx(c *fiber.Ctx) (domain.Session, bool) {
	email, ok := c.Locals(middlewares.TokenEmail).(string)
	if !ok || email == "" {
		return domain.Session{}, false
	}
	name, _ := c.Locals(middlewares.TokenName).(string)
	return domain.NewSession(email, name), true
}

// InsertUser POST /users, create the session user on first login
func (h *HTTPHandler) InsertUser(c *fiber.Ctx) error {
	s, ok := SessionFromCtx(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "missing session"})
	}

	var req InsertUserRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	created, err := h.accountUC.EnsureUser(c.UserContext(), domain.ChatAppUser{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     s.Email,
	})
	if err != nil {
		return writeError(c, err)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"created": created, "safe_email": s.UserID()})
}

// UserExists GET /users/exists?email=, defaults to the session user
func (h *HTTPHandler) UserExists(c *fiber.Ctx) error {
	email := c.Query("email")
	if email == "" {
		s, ok := SessionFromCtx(c)
		if !ok {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "missing session"})
		}
		email = s.Email
	}

	exists, err := h.accountUC.UserExists(c.UserContext(), email)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"exists": exists})
}

// SearchUsers GET /users/search?q=
func (h *HTTPHandler) SearchUsers(c *fiber.Ctx) error {
	s, ok := SessionFromCtx(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "missing session"})
	}

	users, err := h.accountUC.SearchUsers(c.UserContext(), s, c.Query("q"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"users": users})
}

// ListConversations GET /conversations
func (h *HTTPHandler) ListConversations(c *fiber.Ctx) error {
	s, ok := SessionFromCtx(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "missing session"})
	}

	list, err := h.syncUC.Conversations(c.UserContext(), s.UserID())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"conversations": list})
}

// CreateConversation POST /conversations
func (h *HTTPHandler) CreateConversation(c *fiber.Ctx) error {
	s, ok := SessionFromCtx(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "missing session"})
	}

	// 1. 解析 body
	req, payload, err := parseMessageRequest(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	// 2. 建立訊息
	recipientID := domain.Canonicalize(req.RecipientEmail)
	msg := h.syncUC.NewMessage(s, recipientID, payload)

	// 3. 同步雙方
	conversationID, err := h.syncUC.CreateConversation(c.UserContext(), s, recipientID, req.RecipientName, msg)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"conversation_id": conversationID,
		"message_id":      msg.ID,
	})
}

// ConversationExists GET /conversations/exists?recipient=
func (h *HTTPHandler) ConversationExists(c *fiber.Ctx) error {
	s, ok := SessionFromCtx(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "missing session"})
	}

	recipient := c.Query("recipient")
	if recipient == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "recipient is required"})
	}

	id, err := h.syncUC.ConversationExists(c.UserContext(), domain.Canonicalize(recipient), s.UserID())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"conversation_id": id})
}

// DeleteConversation DELETE /conversations/:id
func (h *HTTPHandler) DeleteConversation(c *fiber.Ctx) error {
	s, ok := SessionFromCtx(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "missing session"})
	}

	conversationID, err := unescapedParam(c, "id")
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := h.syncUC.DeleteConversation(c.UserContext(), s, conversationID); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListMessages GET /conversations/:id/messages
func (h *HTTPHandler) ListMessages(c *fiber.Ctx) error {
	conversationID, err := unescapedParam(c, "id")
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	records, err := h.syncUC.MessageRecords(c.UserContext(), conversationID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"conversation_id": conversationID,
		"messages":        records,
	})
}

// SendMessage POST /conversations/:id/messages
func (h *HTTPHandler) SendMessage(c *fiber.Ctx) error {
	s, ok := SessionFromCtx(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "missing session"})
	}

	conversationID, err := unescapedParam(c, "id")
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	req, payload, err := parseMessageRequest(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	recipientID := domain.Canonicalize(req.RecipientEmail)
	msg := h.syncUC.NewMessage(s, recipientID, payload)
	err = h.syncUC.SendMessage(c.UserContext(), s, SendRequest{
		ConversationID: conversationID,
		RecipientID:    recipientID,
		RecipientName:  req.RecipientName,
		Message:        msg,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"message_id": msg.ID})
}

// UploadProfilePicture POST /media/profile, multipart field "file"
func (h *HTTPHandler) UploadProfilePicture(c *fiber.Ctx) error {
	s, ok := SessionFromCtx(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "missing session"})
	}

	data, err := formFileBytes(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	u, err := h.mediaUC.UploadProfilePicture(c.UserContext(), s.UserID(), data)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"url": u})
}

// UploadMessagePhoto POST /media/photos, multipart fields "file" and "message_id"
func (h *HTTPHandler) UploadMessagePhoto(c *fiber.Ctx) error {
	return h.uploadAttachment(c, PhotoMessageFileName, h.mediaUC.UploadMessagePhoto)
}

// UploadMessageVideo POST /media/videos, multipart fields "file" and "message_id"
func (h *HTTPHandler) UploadMessageVideo(c *fiber.Ctx) error {
	return h.uploadAttachment(c, VideoMessageFileName, h.mediaUC.UploadMessageVideo)
}

// DownloadURL GET /media/url?path=
func (h *HTTPHandler) DownloadURL(c *fiber.Ctx) error {
	objectPath := c.Query("path")
	if objectPath == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "path is required"})
	}

	u, err := h.mediaUC.DownloadURL(c.UserContext(), objectPath)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"url": u})
}

// ServeBlob GET /blobs/*, only when blobs are kept in process
func (h *HTTPHandler) ServeBlob(c *fiber.Ctx) error {
	if h.memBlobs == nil {
		return c.SendStatus(http.StatusNotFound)
	}
	objectPath, err := unescapedParam(c, "*")
	if err != nil {
		return c.SendStatus(http.StatusBadRequest)
	}
	data, contentType, ok := h.memBlobs.Get(objectPath)
	if !ok {
		return c.SendStatus(http.StatusNotFound)
	}
	c.Set(fiber.HeaderContentType, contentType)
	return c.Send(data)
}

func (h *HTTPHandler) uploadAttachment(
	c *fiber.Ctx,
	fileName func(messageID string) string,
	upload func(ctx context.Context, fileName string, data []byte) (string, error),
) error {
	if _, ok := SessionFromCtx(c); !ok {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "missing session"})
	}

	messageID := c.FormValue("message_id")
	if messageID == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "message_id is required"})
	}
	data, err := formFileBytes(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	name := fileName(messageID)
	u, err := upload(c.UserContext(), name, data)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"url": u, "file_name": name})
}

func parseMessageRequest(c *fiber.Ctx) (MessageRequest, domain.Payload, error) {
	var req MessageRequest
	if err := c.BodyParser(&req); err != nil {
		return req, nil, errors.New("invalid body")
	}
	if req.RecipientEmail == "" {
		return req, nil, errprocess.Set("recipient_email is required")
	}
	if req.Kind == "" {
		req.Kind = string(domain.KindText)
	}
	payload, err := domain.DecodePayload(domain.Kind(req.Kind), req.Content)
	if err != nil {
		return req, nil, err
	}
	return req, payload, nil
}

func formFileBytes(c *fiber.Ctx) ([]byte, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return nil, errors.New("file is required")
	}
	f, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// unescapedParam route param as stored, fiber leaves params percent-encoded
func unescapedParam(c *fiber.Ctx, key string) (string, error) {
	v, err := url.PathUnescape(c.Params(key))
	if err != nil {
		return "", errprocess.Set("invalid path parameter " + key)
	}
	return v, nil
}

// writeError map domain errors to a status code
func writeError(c *fiber.Ctx, err error) error {
	status := http.StatusInternalServerError
	body := fiber.Map{"error": err.Error()}

	var partial *domain.PartialSyncError
	switch {
	case errors.As(err, &partial):
		body["completed"] = partial.Completed
		body["failed"] = partial.Failed
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrRevisionConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidPath),
		errors.Is(err, domain.ErrMalformedLocation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrFailedToUpload),
		errors.Is(err, domain.ErrFailedToDownloadURL):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		logger.Log.Error("http request failed",
			zap.String("path", c.Path()),
			zap.String("method", c.Method()),
			zap.Error(err))
	}
	return c.Status(status).JSON(body)
}

// HealthCheck GET /
func (h *HTTPHandler) HealthCheck(c *fiber.Ctx) error {
	return c.SendString("chat service ok")
}

// Debug POST /debug, toggle debug logging with {"debug": bool}
func (h *HTTPHandler) Debug(c *fiber.Ctx) error {
	var req struct {
		Debug bool `json:"debug"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	logger.Log.SetDebugMode(req.Debug)
	return c.JSON(fiber.Map{"debug": logger.Log.DebugMode()})
}
