package app

import (
	"context"
	"errors"
	"time"

	"realtime_chat/internal/chat/domain"
	"realtime_chat/internal/chat/repository"
	errprocess "realtime_chat/pkg/err"
	"realtime_chat/pkg/logger"

	"go.uber.org/zap"
)

// sync step names reported in domain.PartialSyncError
const (
	StepRecipientIndex = "recipient_index"
	StepSenderIndex    = "sender_index"
	StepConversation   = "conversation_document"
	StepAppendMessage  = "append_message"
)

// SyncUseCase keeps the shared message list and both participants'
// conversation summaries in step. Writes are independent, nothing is rolled back.
type SyncUseCase struct {
	convRepo repository.ConversationRepository
	msgRepo  repository.MessageRepository

	ids                 domain.MessageIDGenerator
	loc                 *time.Location
	now                 func() time.Time
	stopOnSenderFailure bool
}

// SyncOption option of NewSyncUseCase
type SyncOption func(*SyncUseCase)

// WithMessageIDs message id generator, default domain.UniqueIDs
func WithMessageIDs(g domain.MessageIDGenerator) SyncOption {
	return func(uc *SyncUseCase) { uc.ids = g }
}

// WithLocation time zone of formatted dates, default UTC
func WithLocation(loc *time.Location) SyncOption {
	return func(uc *SyncUseCase) { uc.loc = loc }
}

// WithClock clock used for new messages
func WithClock(now func() time.Time) SyncOption {
	return func(uc *SyncUseCase) { uc.now = now }
}

// WithStopOnSenderFailure skip the recipient summary of SendMessage when the sender one failed
func WithStopOnSenderFailure(stop bool) SyncOption {
	return func(uc *SyncUseCase) { uc.stopOnSenderFailure = stop }
}

// NewSyncUseCase init sync use case
func NewSyncUseCase(
	convRepo repository.ConversationRepository,
	msgRepo repository.MessageRepository,
	opts ...SyncOption,
) *SyncUseCase {
	uc := &SyncUseCase{
		convRepo: convRepo,
		msgRepo:  msgRepo,
		ids:      domain.UniqueIDs{},
		loc:      time.UTC,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// NewMessage build a message from the session user to recipientID
func (uc *SyncUseCase) NewMessage(s domain.Session, recipientID string, payload domain.Payload) domain.Message {
	at := uc.now()
	return domain.Message{
		ID:      uc.ids.NewMessageID(s.UserID(), recipientID, at),
		Sender:  s.Sender(),
		SentAt:  at,
		Payload: payload,
	}
}

// CreateConversation open a conversation with recipientID starting with first and
// return its id. The recipient summary, the sender summary and the conversation
// document are written in that order; a sender failure stops before the document.
func (uc *SyncUseCase) CreateConversation(ctx context.Context, s domain.Session, recipientID, recipientName string, first domain.Message) (string, error) {
	const op = "create_conversation"

	// 1. conversation id 由第一則訊息決定
	conversationID := domain.ConversationID(first.ID)
	record := first.Record(uc.loc)

	// 2. 雙方的 summary, 只有文字訊息帶內容
	latest := domain.LatestMessage{
		Date:   record.Date,
		Text:   creationSummaryText(first.Payload),
		IsRead: false,
	}
	senderSummary := domain.ConversationSummary{
		ID:             conversationID,
		CounterpartyID: recipientID,
		DisplayName:    recipientName,
		LatestMessage:  latest,
	}
	recipientSummary := domain.ConversationSummary{
		ID:             conversationID,
		CounterpartyID: s.UserID(),
		DisplayName:    s.Name,
		LatestMessage:  latest,
	}

	var steps stepLog

	// 3. 對方的列表, 失敗不中斷
	steps.record(StepRecipientIndex, uc.convRepo.Upsert(ctx, recipientID, recipientSummary))

	// 4. 自己的列表
	if err := uc.convRepo.Upsert(ctx, s.UserID(), senderSummary); err != nil {
		steps.record(StepSenderIndex, err)
		return "", steps.result(op, conversationID)
	}
	steps.record(StepSenderIndex, nil)

	// 5. conversation document
	steps.record(StepConversation, uc.msgRepo.Start(ctx, conversationID, record))

	if err := steps.result(op, conversationID); err != nil {
		return "", err
	}
	logger.Log.Info("conversation created",
		zap.String("conversation", conversationID),
		zap.String("sender", s.UserID()),
		zap.String("recipient", recipientID))
	return conversationID, nil
}

// SendRequest message to an existing conversation
type SendRequest struct {
	ConversationID string
	RecipientID    string
	RecipientName  string
	Message        domain.Message
}

// SendMessage append the message, then refresh the sender's and the recipient's
// summary. If the append fails nothing else runs; the recipient summary is still
// attempted after a sender failure unless configured otherwise.
func (uc *SyncUseCase) SendMessage(ctx context.Context, s domain.Session, req SendRequest) error {
	const op = "send_message"

	// 1. append
	record := req.Message.Record(uc.loc)
	if err := uc.msgRepo.Append(ctx, req.ConversationID, record); err != nil {
		return errprocess.Wrap("append message", err, zap.String("conversation", req.ConversationID))
	}

	var steps stepLog
	steps.record(StepAppendMessage, nil)

	// 2. latest message snapshot
	latest := domain.LatestMessage{
		Date:   record.Date,
		Text:   latestText(req.Message.Payload),
		IsRead: false,
	}

	// 3. 自己的列表
	senderErr := uc.convRepo.UpsertLatest(ctx, s.UserID(), domain.ConversationSummary{
		ID:             req.ConversationID,
		CounterpartyID: req.RecipientID,
		DisplayName:    req.RecipientName,
		LatestMessage:  latest,
	})
	steps.record(StepSenderIndex, senderErr)
	if senderErr != nil && uc.stopOnSenderFailure {
		return steps.result(op, req.ConversationID)
	}

	// 4. 對方的列表
	steps.record(StepRecipientIndex, uc.convRepo.UpsertLatest(ctx, req.RecipientID, domain.ConversationSummary{
		ID:             req.ConversationID,
		CounterpartyID: s.UserID(),
		DisplayName:    s.Name,
		LatestMessage:  latest,
	}))

	return steps.result(op, req.ConversationID)
}

// ConversationExists id of the conversation recipientID has with senderID,
// domain.ErrNotFound when none
func (uc *SyncUseCase) ConversationExists(ctx context.Context, recipientID, senderID string) (string, error) {
	return uc.convRepo.FindByCounterparty(ctx, recipientID, senderID)
}

// DeleteConversation drop the conversation from the session user's list only.
// Unknown ids succeed. The conversation document is not deleted.
func (uc *SyncUseCase) DeleteConversation(ctx context.Context, s domain.Session, conversationID string) error {
	return errprocess.Wrap("delete conversation", uc.convRepo.RemoveByID(ctx, s.UserID(), conversationID),
		zap.String("user", s.UserID()), zap.String("conversation", conversationID))
}

// Conversations summaries of userID
func (uc *SyncUseCase) Conversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	return uc.convRepo.ListFor(ctx, userID)
}

// MessageRecords stored records of a conversation as written, is_read and date untouched
func (uc *SyncUseCase) MessageRecords(ctx context.Context, conversationID string) ([]domain.MessageRecord, error) {
	return uc.msgRepo.ReadAll(ctx, conversationID)
}

// Messages decoded messages of a conversation, undecodable records are skipped
func (uc *SyncUseCase) Messages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	records, err := uc.msgRepo.ReadAll(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return decodeMessages(conversationID, records, uc.loc), nil
}

func decodeMessages(conversationID string, records []domain.MessageRecord, loc *time.Location) []domain.Message {
	out := make([]domain.Message, 0, len(records))
	for _, r := range records {
		m, err := domain.DecodeMessage(r, loc)
		if err != nil {
			logger.Log.Warn("skip undecodable message",
				zap.String("conversation", conversationID), zap.String("message", r.ID), zap.Error(err))
			continue
		}
		out = append(out, m)
	}
	return out
}

// creationSummaryText summary text of a new conversation, text messages only
func creationSummaryText(p domain.Payload) string {
	if t, ok := p.(domain.TextPayload); ok {
		return t.Body
	}
	return ""
}

// latestText summary text after a send: the content for text, media and
// location, empty for every other kind
func latestText(p domain.Payload) string {
	switch p.(type) {
	case domain.TextPayload, domain.MediaPayload, domain.LocationPayload:
		return p.Content()
	default:
		return ""
	}
}

// stepLog outcome of each step of one sync operation
type stepLog struct {
	completed []string
	failed    []string
	errs      []error
}

func (l *stepLog) record(step string, err error) {
	if err != nil {
		l.failed = append(l.failed, step)
		l.errs = append(l.errs, err)
		return
	}
	l.completed = append(l.completed, step)
}

// result nil when every step succeeded, the plain error when nothing landed,
// otherwise a *domain.PartialSyncError
func (l *stepLog) result(op, conversationID string) error {
	if len(l.errs) == 0 {
		return nil
	}
	err := errors.Join(l.errs...)
	if len(l.errs) == 1 {
		err = l.errs[0]
	}
	if len(l.completed) == 0 {
		logger.Log.Error(op+" failed", zap.String("conversation", conversationID), zap.Error(err))
		return err
	}
	logger.Log.Error(op+" partially applied",
		zap.String("conversation", conversationID),
		zap.Strings("completed", l.completed),
		zap.Strings("failed", l.failed),
		zap.Error(err))
	return &domain.PartialSyncError{
		Op:        op,
		Completed: l.completed,
		Failed:    l.failed,
		Err:       err,
	}
}
