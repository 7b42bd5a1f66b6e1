package infer

import "fmt"

// edge identifies a message by its (origin, destination) node pair.
type edge struct {
	origin, dest int
}

// MessageStore memoizes messages per evidence context. Keys are canonical
// evidence strings (factorgraph.Evidence.Key); within a context every
// (origin, destination) pair is written at most once. The store is the
// only state that outlives a run: entries are immutable after Put, so
// sequential runs share them safely. The engine keeps two stores, one per
// message direction, so origin and destination ids never collide.
type MessageStore struct {
	contexts map[string]map[edge]*Message
}

// NewMessageStore returns an empty store.
func NewMessageStore() *MessageStore {
	return &MessageStore{contexts: make(map[string]map[edge]*Message)}
}

// EnsureContext creates an empty inner map for the evidence key if absent.
func (s *MessageStore) EnsureContext(key string) {
	if _, ok := s.contexts[key]; !ok {
		s.contexts[key] = make(map[edge]*Message)
	}
}

// Contains reports whether the (origin, dest) message exists under key.
func (s *MessageStore) Contains(key string, origin, dest int) bool {
	_, ok := s.contexts[key][edge{origin, dest}]
	return ok
}

// Get returns the cached (origin, dest) message under key, if any.
func (s *MessageStore) Get(key string, origin, dest int) (*Message, bool) {
	m, ok := s.contexts[key][edge{origin, dest}]
	return m, ok
}

// Put caches a message. Messages are write-once: a second Put for the same
// (origin, destination, evidence) is an invariant violation.
func (s *MessageStore) Put(key string, m *Message) error {
	ctx, ok := s.contexts[key]
	if !ok {
		ctx = make(map[edge]*Message)
		s.contexts[key] = ctx
	}
	e := edge{m.Origin(), m.Dest()}
	if _, exists := ctx[e]; exists {
		return fmt.Errorf("%w: origin %d to dest %d under %q", ErrMessageExists, e.origin, e.dest, key)
	}
	ctx[e] = m
	return nil
}

// Into returns the cached messages flowing from each origin into dest, in
// origin order. A missing message means the caller broke the traversal
// synchronization; it fails loudly rather than substitute a default.
func (s *MessageStore) Into(key string, origins []int, dest int) ([]*Message, error) {
	ctx := s.contexts[key]
	msgs := make([]*Message, len(origins))
	for i, origin := range origins {
		m, ok := ctx[edge{origin, dest}]
		if !ok {
			return nil, fmt.Errorf("%w: origin %d to dest %d under %q", ErrMessageMissing, origin, dest, key)
		}
		msgs[i] = m
	}
	return msgs, nil
}

// Clear drops every cached evidence context.
func (s *MessageStore) Clear() {
	s.contexts = make(map[string]map[edge]*Message)
}

// Len returns the total number of cached messages across all contexts.
func (s *MessageStore) Len() int {
	n := 0
	for _, ctx := range s.contexts {
		n += len(ctx)
	}
	return n
}
