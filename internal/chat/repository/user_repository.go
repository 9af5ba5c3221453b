package repository

import (
	"context"
	"errors"
	"fmt"

	"realtime_chat/internal/chat/domain"
)

const directoryPath = "/users"

// UserRepository user documents and the /users search directory
type UserRepository interface {
	// Exists report whether /{userId} holds a document
	Exists(ctx context.Context, userID string) (bool, error)
	// Put overwrite /{userId} with the user's names
	Put(ctx context.Context, user domain.ChatAppUser) error
	// AppendDirectory read-modify-write append to /users, created when missing
	AppendDirectory(ctx context.Context, entry domain.DirectoryEntry) error
	// Directory every /users entry, domain.ErrNotFound when there is none
	Directory(ctx context.Context) ([]domain.DirectoryEntry, error)
}

type userRepository struct {
	store DocumentStore
	mode  ConsistencyMode
}

// NewUserRepository create a UserRepository on store
func NewUserRepository(store DocumentStore, mode ConsistencyMode) UserRepository {
	return &userRepository{store: store, mode: mode}
}

// Exists /{userId} is a document
func (r *userRepository) Exists(ctx context.Context, userID string) (bool, error) {
	doc, err := r.store.Read(ctx, "/"+userID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_, ok := doc.Value.(map[string]interface{})
	return ok, nil
}

// Put write the user document
func (r *userRepository) Put(ctx context.Context, user domain.ChatAppUser) error {
	return r.store.Write(ctx, "/"+user.SafeEmail(), map[string]interface{}{
		"first_name": user.FirstName,
		"last_name":  user.LastName,
	})
}

// AppendDirectory add entry to /users
func (r *userRepository) AppendDirectory(ctx context.Context, entry domain.DirectoryEntry) error {
	list, rev, _, err := readList(ctx, r.store, directoryPath)
	if err != nil {
		return err
	}
	node, err := toTree(entry)
	if err != nil {
		return err
	}
	next := make([]interface{}, 0, len(list)+1)
	next = append(next, list...)
	next = append(next, node)
	return r.store.Write(ctx, directoryPath, next, guard(r.mode, rev)...)
}

// Directory all directory entries
func (r *userRepository) Directory(ctx context.Context) ([]domain.DirectoryEntry, error) {
	list, _, found, err := readList(ctx, r.store, directoryPath)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("users directory: %w", domain.ErrNotFound)
	}
	out := make([]domain.DirectoryEntry, 0, len(list))
	for _, node := range list {
		var e domain.DirectoryEntry
		if err := fromTree(node, &e); err != nil || e.Email == "" {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
