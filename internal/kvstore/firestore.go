package kvstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	pfirestore "github.com/urbenshop/storefront/internal/platform/firestore"
)

type firestoreEntry struct {
	Value     string    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// Firestore keeps one document per key in a single collection.
type Firestore struct {
	provider *pfirestore.Provider
	repo     *pfirestore.BaseRepository[firestoreEntry]
	clock    func() time.Time
}

// NewFirestore binds the store to collection using the shared provider.
func NewFirestore(provider *pfirestore.Provider, collection string) *Firestore {
	return &Firestore{
		provider: provider,
		repo:     pfirestore.NewBaseRepository[firestoreEntry](provider, collection, nil, nil),
		clock:    time.Now,
	}
}

// Get returns the stored value or ErrNotFound.
func (f *Firestore) Get(ctx context.Context, key string) (string, error) {
	doc, err := f.repo.Get(ctx, documentID(key))
	if err != nil {
		if pfirestore.IsNotFound(err) {
			return "", ErrNotFound
		}
		return "", classifyFirestoreError(err)
	}
	return doc.Data.Value, nil
}

// Set upserts the document holding key.
func (f *Firestore) Set(ctx context.Context, key, value string) error {
	entry := firestoreEntry{Value: value, UpdatedAt: f.clock().UTC()}
	if _, err := f.repo.Set(ctx, documentID(key), entry); err != nil {
		return classifyFirestoreError(err)
	}
	return nil
}

// Ping verifies that a client can be created.
func (f *Firestore) Ping(ctx context.Context) error {
	if _, err := f.provider.Client(ctx); err != nil {
		return classifyFirestoreError(err)
	}
	return nil
}

// Document IDs may not contain slashes.
func documentID(key string) string {
	return url.PathEscape(key)
}

func classifyFirestoreError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
