// Package store persists archived chat sessions. Backends: in-memory,
// Redis, PostgreSQL (gorm) and S3-compatible object storage (MinIO).
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/lk2023060901/parallax-connect/internal/chat/types"
)

// ErrNotFound is returned when no session has the requested id
var ErrNotFound = errors.New("store: session not found")

// Store is a session repository. Save replaces any session with the same id.
type Store interface {
	Save(ctx context.Context, s types.ChatSession) error
	Get(ctx context.Context, id string) (types.ChatSession, error)
	List(ctx context.Context) ([]types.ChatSession, error)
	Delete(ctx context.Context, id string) error
}

// Sort orders sessions important first, then newest first. Ties keep id
// order so listings are stable.
func Sort(sessions []types.ChatSession) {
	slices.SortStableFunc(sessions, func(a, b types.ChatSession) int {
		if a.IsImportant != b.IsImportant {
			if a.IsImportant {
				return -1
			}
			return 1
		}
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}

// Prune deletes the oldest non-important sessions until at most limit
// remain. Important sessions are never removed, so the result may still
// exceed limit. A limit of 0 disables pruning. It returns the number of
// sessions deleted.
func Prune(ctx context.Context, s Store, limit int) (int, error) {
	if limit <= 0 {
		return 0, nil
	}
	sessions, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	excess := len(sessions) - limit
	if excess <= 0 {
		return 0, nil
	}

	candidates := make([]types.ChatSession, 0, len(sessions))
	for _, sess := range sessions {
		if !sess.IsImportant {
			candidates = append(candidates, sess)
		}
	}
	// oldest first
	slices.SortStableFunc(candidates, func(a, b types.ChatSession) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	deleted := 0
	for _, sess := range candidates {
		if deleted == excess {
			break
		}
		if err := s.Delete(ctx, sess.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return deleted, fmt.Errorf("store: prune %s: %w", sess.ID, err)
		}
		deleted++
	}
	return deleted, nil
}

func checkID(id string) error {
	if id == "" {
		return errors.New("store: session id is required")
	}
	return nil
}
