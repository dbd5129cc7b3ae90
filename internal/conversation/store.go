// Package conversation provides bounded, LRU-evicted conversation memory for
// the AI chat layer.
//
// A session is keyed by an opaque id (in practice the Discord message id that
// started the exchange) and holds an ordered, length-capped message history.
// A secondary index maps externally visible message ids (the bot's own
// replies and rehydrated chain members) back to their session so a user can
// continue a conversation by replying to any of them.
package conversation

import (
	"container/list"
	"context"
	"sync"

	"github.com/MrWong99/butler/internal/observe"
	"github.com/MrWong99/butler/pkg/provider/chat"
)

const (
	// defaultMaxSessions bounds the number of concurrently remembered
	// conversations; the least recently used one is evicted beyond that.
	defaultMaxSessions = 5

	// defaultMaxMessages bounds the per-session history; older messages are
	// dropped from the front on every mutation.
	defaultMaxMessages = 20
)

type session struct {
	id          string
	messages    []chat.Message
	externalIDs map[string]struct{}
	elem        *list.Element
}

// Store is the LRU-bounded session store. All methods are safe for
// concurrent use; the Discord gateway dispatches events from multiple
// goroutines.
type Store struct {
	mu          sync.Mutex
	maxSessions int
	maxMessages int
	metrics     *observe.Metrics

	sessions map[string]*session
	byExtID  map[string]string

	// lru holds session ids, most recently used at the back.
	lru *list.List
}

// Option is a functional option for Store.
type Option func(*Store)

// WithMaxSessions overrides the session capacity.
func WithMaxSessions(n int) Option {
	return func(s *Store) { s.maxSessions = n }
}

// WithMaxMessages overrides the per-session history length.
func WithMaxMessages(n int) Option {
	return func(s *Store) { s.maxMessages = n }
}

// WithMetrics overrides the metrics sink; defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// NewStore returns an empty store with the default bounds.
func NewStore(opts ...Option) *Store {
	s := &Store{
		maxSessions: defaultMaxSessions,
		maxMessages: defaultMaxMessages,
		metrics:     observe.DefaultMetrics(),
		sessions:    make(map[string]*session),
		byExtID:     make(map[string]string),
		lru:         list.New(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateSession starts an empty session keyed by rootMessageID and returns
// its id.
func (s *Store) CreateSession(rootMessageID string) string {
	s.EnsureSession(rootMessageID, nil, nil)
	return rootMessageID
}

// SessionIDFromReply resolves the session a replied-to message belongs to.
// A hit counts as use for LRU purposes.
func (s *Store) SessionIDFromReply(repliedMessageID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byExtID[repliedMessageID]
	if !ok {
		return "", false
	}
	sess, ok := s.sessions[id]
	if !ok {
		return "", false
	}
	s.touch(sess)
	return id, true
}

// Has reports whether sessionID currently exists.
func (s *Store) Has(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[sessionID]
	return ok
}

// EnsureSession creates or replaces the session, seeding it with messages
// and registering every external id against it. Used for rehydration from a
// reply chain when no in-memory session exists.
func (s *Store) EnsureSession(sessionID string, messages []chat.Message, externalIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &session{id: sessionID, externalIDs: make(map[string]struct{})}
		sess.elem = s.lru.PushBack(sessionID)
		s.sessions[sessionID] = sess
		s.metrics.AddActiveSessions(context.Background(), 1)
	}
	sess.messages = s.trim(append([]chat.Message(nil), messages...))
	for _, extID := range externalIDs {
		s.link(sess, extID)
	}
	s.touch(sess)
	s.evict()
}

// AddUserMessage appends a user turn to the session.
func (s *Store) AddUserMessage(sessionID, content string) {
	s.append(sessionID, chat.UserMessage(content))
}

// AddAssistantMessage appends an assistant turn and registers the id of the
// reply that carried it, so replying to that message resumes this session.
func (s *Store) AddAssistantMessage(sessionID, content, replyMessageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	sess.messages = s.trim(append(sess.messages, chat.AssistantMessage(content)))
	s.link(sess, replyMessageID)
	s.touch(sess)
	s.evict()
}

// Messages returns a copy of the session's history; the empty slice when the
// session does not exist. Reading counts as use for LRU purposes.
func (s *Store) Messages(sessionID string) []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	s.touch(sess)
	return append([]chat.Message(nil), sess.messages...)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) append(sessionID string, msg chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	sess.messages = s.trim(append(sess.messages, msg))
	s.touch(sess)
	s.evict()
}

func (s *Store) link(sess *session, externalID string) {
	if externalID == "" {
		return
	}
	s.byExtID[externalID] = sess.id
	sess.externalIDs[externalID] = struct{}{}
}

func (s *Store) touch(sess *session) {
	s.lru.MoveToBack(sess.elem)
}

// evict removes least-recently-used sessions beyond capacity, including
// their external-id index entries.
func (s *Store) evict() {
	for len(s.sessions) > s.maxSessions {
		front := s.lru.Front()
		if front == nil {
			return
		}
		id := front.Value.(string)
		s.lru.Remove(front)
		sess, ok := s.sessions[id]
		if !ok {
			continue
		}
		for extID := range sess.externalIDs {
			delete(s.byExtID, extID)
		}
		delete(s.sessions, id)
		s.metrics.AddActiveSessions(context.Background(), -1)
	}
}

func (s *Store) trim(messages []chat.Message) []chat.Message {
	if len(messages) <= s.maxMessages {
		return messages
	}
	return messages[len(messages)-s.maxMessages:]
}
