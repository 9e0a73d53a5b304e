package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store used by tests and single-node runs.
// Deliveries happen on a per-subscriber goroutine so a slow consumer cannot
// block a writer.
type MemoryStore struct {
	mu      sync.RWMutex
	docs    map[string][]byte
	lists   map[string][][]byte
	docSubs map[string]map[int]*memorySub
	lstSubs map[string]map[int]*memorySub
	nextID  int
}

type memoryEvent struct {
	doc    []byte
	exists bool
}

type memorySub struct {
	events chan memoryEvent
	stop   chan struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:    make(map[string][]byte),
		lists:   make(map[string][][]byte),
		docSubs: make(map[string]map[int]*memorySub),
		lstSubs: make(map[string]map[int]*memorySub),
	}
}

func docKey(collection, key string) string {
	return collection + "/" + key
}

func listKey(collection, key, list string) string {
	return collection + "/" + key + "/" + list
}

func (s *MemoryStore) Get(ctx context.Context, collection, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[docKey(collection, key)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBytes(doc), nil
}

func (s *MemoryStore) Create(ctx context.Context, collection, key string, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	k := docKey(collection, key)
	if _, ok := s.docs[k]; ok {
		s.mu.Unlock()
		return ErrAlreadyExists
	}
	s.docs[k] = cloneBytes(doc)
	subs := s.snapshotSubs(s.docSubs[k])
	s.mu.Unlock()

	notify(subs, memoryEvent{doc: cloneBytes(doc), exists: true})
	return nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, key string, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	k := docKey(collection, key)
	s.docs[k] = cloneBytes(doc)
	subs := s.snapshotSubs(s.docSubs[k])
	s.mu.Unlock()

	notify(subs, memoryEvent{doc: cloneBytes(doc), exists: true})
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, key string, mutate func(doc []byte) ([]byte, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	k := docKey(collection, key)
	current, ok := s.docs[k]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}

	next, err := mutate(cloneBytes(current))
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.docs[k] = cloneBytes(next)
	subs := s.snapshotSubs(s.docSubs[k])
	s.mu.Unlock()

	notify(subs, memoryEvent{doc: cloneBytes(next), exists: true})
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	k := docKey(collection, key)
	if _, ok := s.docs[k]; !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.docs, k)
	subs := s.snapshotSubs(s.docSubs[k])
	s.mu.Unlock()

	notify(subs, memoryEvent{exists: false})
	return nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, collection, key string, h DocHandler) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &memorySub{
		events: make(chan memoryEvent, 16),
		stop:   make(chan struct{}),
	}

	s.mu.Lock()
	k := docKey(collection, key)
	if s.docSubs[k] == nil {
		s.docSubs[k] = make(map[int]*memorySub)
	}
	id := s.nextID
	s.nextID++
	s.docSubs[k][id] = sub

	initial := memoryEvent{exists: false}
	if doc, ok := s.docs[k]; ok {
		initial = memoryEvent{doc: cloneBytes(doc), exists: true}
	}
	s.mu.Unlock()

	go func() {
		h(initial.doc, initial.exists)
		for {
			select {
			case <-sub.stop:
				return
			case ev := <-sub.events:
				h(ev.doc, ev.exists)
			}
		}
	}()

	return newCancelSub(func() {
		close(sub.stop)
		s.mu.Lock()
		delete(s.docSubs[k], id)
		s.mu.Unlock()
	}), nil
}

func (s *MemoryStore) Append(ctx context.Context, collection, key, list string, item []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	k := listKey(collection, key, list)
	s.lists[k] = append(s.lists[k], cloneBytes(item))
	subs := s.snapshotSubs(s.lstSubs[k])
	s.mu.Unlock()

	notify(subs, memoryEvent{doc: cloneBytes(item), exists: true})
	return nil
}

func (s *MemoryStore) SubscribeList(ctx context.Context, collection, key, list string, h ItemHandler) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &memorySub{
		events: make(chan memoryEvent, 64),
		stop:   make(chan struct{}),
	}

	s.mu.Lock()
	k := listKey(collection, key, list)
	if s.lstSubs[k] == nil {
		s.lstSubs[k] = make(map[int]*memorySub)
	}
	id := s.nextID
	s.nextID++
	s.lstSubs[k][id] = sub

	replay := make([][]byte, 0, len(s.lists[k]))
	for _, item := range s.lists[k] {
		replay = append(replay, cloneBytes(item))
	}
	s.mu.Unlock()

	go func() {
		for _, item := range replay {
			h(item)
		}
		for {
			select {
			case <-sub.stop:
				return
			case ev := <-sub.events:
				h(ev.doc)
			}
		}
	}()

	return newCancelSub(func() {
		close(sub.stop)
		s.mu.Lock()
		delete(s.lstSubs[k], id)
		s.mu.Unlock()
	}), nil
}

// snapshotSubs is called with s.mu held.
func (s *MemoryStore) snapshotSubs(m map[int]*memorySub) []*memorySub {
	subs := make([]*memorySub, 0, len(m))
	for _, sub := range m {
		subs = append(subs, sub)
	}
	return subs
}

func notify(subs []*memorySub, ev memoryEvent) {
	for _, sub := range subs {
		select {
		case sub.events <- ev:
		case <-sub.stop:
		}
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
