// Package store abstracts the real-time document backend the signaling layer
// writes through: keyed JSON documents with change subscriptions plus
// append-only lists with addition subscriptions. Consistency is last write
// wins per document; there are no cross-document transactions.
package store

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrAlreadyExists = errors.New("document already exists")
	ErrUnavailable   = errors.New("store unavailable")
)

// DocHandler receives the full document on every change. exists is false
// when the document has been deleted (or does not exist yet at subscribe
// time).
type DocHandler func(doc []byte, exists bool)

// ItemHandler receives appended list items. Items are immutable once
// written; there are no edit or removal events.
type ItemHandler func(item []byte)

// Subscription is a cancellable handle returned to the caller, who disposes
// it exactly once. Cancel is safe to call repeatedly and may race with an
// in-flight delivery.
type Subscription interface {
	Cancel()
}

type Store interface {
	Get(ctx context.Context, collection, key string) ([]byte, error)
	// Create writes a document only if the key is absent. Exactly one of two
	// concurrent creates wins; the loser gets ErrAlreadyExists.
	Create(ctx context.Context, collection, key string, doc []byte) error
	Set(ctx context.Context, collection, key string, doc []byte) error
	// Update applies mutate to the current document and writes the result
	// back. ErrNotFound if the document is absent.
	Update(ctx context.Context, collection, key string, mutate func(doc []byte) ([]byte, error)) error
	Delete(ctx context.Context, collection, key string) error
	// Subscribe delivers the current document immediately, then the full
	// document on every subsequent change.
	Subscribe(ctx context.Context, collection, key string, h DocHandler) (Subscription, error)

	Append(ctx context.Context, collection, key, list string, item []byte) error
	// SubscribeList replays items already in the list as addition events,
	// then delivers live appends. Consumers must tolerate an occasional
	// duplicate across the replay/live boundary.
	SubscribeList(ctx context.Context, collection, key, list string, h ItemHandler) (Subscription, error)
}

type cancelSub struct {
	once   sync.Once
	cancel func()
}

func newCancelSub(cancel func()) *cancelSub {
	return &cancelSub{cancel: cancel}
}

func (s *cancelSub) Cancel() {
	s.once.Do(s.cancel)
}
