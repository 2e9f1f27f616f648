package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/nibbleapp/nibble-server/internal/domain"
)

// Annotations returns the allergen annotations saved for a session. A session
// with none gets an empty map.
func (s *Store) Annotations(ctx context.Context, sessionKey string) (map[string]domain.Annotation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	notes := map[string]domain.Annotation{}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(annotationsKey(sessionKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &notes)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read annotations: %w", err)
	}
	return notes, nil
}

// SaveAnnotations replaces the session's annotations. An empty map deletes
// the key.
func (s *Store) SaveAnnotations(ctx context.Context, sessionKey string, notes map[string]domain.Annotation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if len(notes) == 0 {
			return txn.Delete(annotationsKey(sessionKey))
		}
		data, err := json.Marshal(notes)
		if err != nil {
			return fmt.Errorf("failed to marshal annotations: %w", err)
		}
		return txn.Set(annotationsKey(sessionKey), data)
	})
}
