package app

import (
	"context"

	"realtime_chat/internal/chat/domain"
	"realtime_chat/internal/chat/repository"

	"github.com/stretchr/testify/mock"
)

// MockConversationRepository Mock ConversationRepository
type MockConversationRepository struct {
	mock.Mock
}

// ListFor mock list summaries
func (m *MockConversationRepository) ListFor(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.ConversationSummary), args.Error(1)
	}
	return nil, args.Error(1)
}

// Upsert mock upsert summary
func (m *MockConversationRepository) Upsert(ctx context.Context, userID string, summary domain.ConversationSummary) error {
	args := m.Called(ctx, userID, summary)
	return args.Error(0)
}

// UpsertLatest mock upsert latest message
func (m *MockConversationRepository) UpsertLatest(ctx context.Context, userID string, summary domain.ConversationSummary) error {
	args := m.Called(ctx, userID, summary)
	return args.Error(0)
}

// RemoveByID mock remove summary
func (m *MockConversationRepository) RemoveByID(ctx context.Context, userID, conversationID string) error {
	args := m.Called(ctx, userID, conversationID)
	return args.Error(0)
}

// FindByCounterparty mock find conversation by counterparty
func (m *MockConversationRepository) FindByCounterparty(ctx context.Context, userID, counterpartyID string) (string, error) {
	args := m.Called(ctx, userID, counterpartyID)
	return args.String(0), args.Error(1)
}

// Observe mock observe summaries
func (m *MockConversationRepository) Observe(ctx context.Context, userID string) (<-chan []domain.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) != nil {
		return args.Get(0).(<-chan []domain.ConversationSummary), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockMessageRepository Mock MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

// Start mock start conversation document
func (m *MockMessageRepository) Start(ctx context.Context, conversationID string, first domain.MessageRecord) error {
	args := m.Called(ctx, conversationID, first)
	return args.Error(0)
}

// Append mock append record
func (m *MockMessageRepository) Append(ctx context.Context, conversationID string, record domain.MessageRecord) error {
	args := m.Called(ctx, conversationID, record)
	return args.Error(0)
}

// ReadAll mock read records
func (m *MockMessageRepository) ReadAll(ctx context.Context, conversationID string) ([]domain.MessageRecord, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.MessageRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

// Observe mock observe records
func (m *MockMessageRepository) Observe(ctx context.Context, conversationID string) (<-chan repository.RecordsUpdate, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) != nil {
		return args.Get(0).(<-chan repository.RecordsUpdate), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockUserRepository Mock UserRepository
type MockUserRepository struct {
	mock.Mock
}

// Exists mock user exists
func (m *MockUserRepository) Exists(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

// Put mock write user
func (m *MockUserRepository) Put(ctx context.Context, user domain.ChatAppUser) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// AppendDirectory mock append directory entry
func (m *MockUserRepository) AppendDirectory(ctx context.Context, entry domain.DirectoryEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// Directory mock read directory
func (m *MockUserRepository) Directory(ctx context.Context) ([]domain.DirectoryEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.DirectoryEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockBlobRepository Mock BlobRepository
type MockBlobRepository struct {
	mock.Mock
}

// Upload mock upload
func (m *MockBlobRepository) Upload(ctx context.Context, objectPath string, data []byte, contentType string) error {
	args := m.Called(ctx, objectPath, data, contentType)
	return args.Error(0)
}

// DownloadURL mock download url
func (m *MockBlobRepository) DownloadURL(ctx context.Context, objectPath string) (string, error) {
	args := m.Called(ctx, objectPath)
	return args.String(0), args.Error(1)
}
