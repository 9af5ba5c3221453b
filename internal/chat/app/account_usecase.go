package app

import (
	"context"
	"errors"
	"strings"

	"realtime_chat/internal/chat/domain"
	"realtime_chat/internal/chat/repository"
	errprocess "realtime_chat/pkg/err"
	"realtime_chat/pkg/logger"

	"go.uber.org/zap"
)

// AccountUseCase user documents and the search directory
type AccountUseCase struct {
	userRepo repository.UserRepository
}

// NewAccountUseCase init account use case
func NewAccountUseCase(userRepo repository.UserRepository) *AccountUseCase {
	return &AccountUseCase{userRepo: userRepo}
}

// UserExists whether email has a user document
func (uc *AccountUseCase) UserExists(ctx context.Context, email string) (bool, error) {
	return uc.userRepo.Exists(ctx, domain.Canonicalize(email))
}

// InsertUser write the user document, then add the user to the directory.
// A directory failure after the document landed is a *domain.PartialSyncError.
func (uc *AccountUseCase) InsertUser(ctx context.Context, user domain.ChatAppUser) error {
	// 1. user document
	if err := uc.userRepo.Put(ctx, user); err != nil {
		return errprocess.Wrap("insert user", err, zap.String("user", user.SafeEmail()))
	}

	// 2. 搜尋用的 directory
	entry := domain.DirectoryEntry{Name: user.FullName(), Email: user.SafeEmail()}
	if err := uc.userRepo.AppendDirectory(ctx, entry); err != nil {
		logger.Log.Error("append user directory failed", zap.String("user", user.SafeEmail()), zap.Error(err))
		return &domain.PartialSyncError{
			Op:        "insert_user",
			Completed: []string{"user_document"},
			Failed:    []string{"user_directory"},
			Err:       err,
		}
	}
	return nil
}

// EnsureUser insert the user unless a document already exists, reports whether it was created
func (uc *AccountUseCase) EnsureUser(ctx context.Context, user domain.ChatAppUser) (bool, error) {
	exists, err := uc.userRepo.Exists(ctx, user.SafeEmail())
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := uc.InsertUser(ctx, user); err != nil {
		return false, err
	}
	return true, nil
}

// AllUsers every directory entry, empty when the directory does not exist yet
func (uc *AccountUseCase) AllUsers(ctx context.Context) ([]domain.DirectoryEntry, error) {
	entries, err := uc.userRepo.Directory(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return []domain.DirectoryEntry{}, nil
	}
	return entries, err
}

// SearchUsers directory entries whose name starts with term, case-insensitive.
// The caller's own entry is left out.
func (uc *AccountUseCase) SearchUsers(ctx context.Context, s domain.Session, term string) ([]domain.DirectoryEntry, error) {
	entries, err := uc.AllUsers(ctx)
	if err != nil {
		return nil, err
	}

	prefix := strings.ToLower(strings.TrimSpace(term))
	self := s.UserID()
	results := []domain.DirectoryEntry{}
	for _, e := range entries {
		if e.Email == self {
			continue
		}
		if strings.HasPrefix(strings.ToLower(e.Name), prefix) {
			results = append(results, e)
		}
	}
	return results, nil
}
