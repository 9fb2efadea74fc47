package service

import (
	"sync"

	"github.com/google/uuid"

	"github.com/cloo-solutions/coursepilot/internal/domain"
)

// Message is one turn of a conversation as handed to the LLM.
type Message struct {
	Role    string
	Content string
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Exchange pairs one user question with one assistant answer.
type Exchange struct {
	Question string
	Answer   string
}

// SessionStore holds bounded per-session conversation history in process
// memory. Nothing survives a restart. Sessions are independent; a per-session
// mutex serializes overlapping requests for the same session.
type SessionStore struct {
	mu           sync.RWMutex
	sessions     map[string]*session
	maxExchanges int
}

type session struct {
	mu        sync.Mutex
	exchanges []Exchange
}

func NewSessionStore(maxExchanges int) *SessionStore {
	if maxExchanges < 0 {
		maxExchanges = 0
	}
	return &SessionStore{
		sessions:     make(map[string]*session),
		maxExchanges: maxExchanges,
	}
}

// CreateSession allocates a new empty session and returns its id.
func (s *SessionStore) CreateSession() string {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = &session{}
	s.mu.Unlock()
	return id
}

func (s *SessionStore) get(id string) *session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// GetHistory returns the session's transcript oldest-first as alternating
// user/assistant messages. An unknown session yields an empty history.
func (s *SessionStore) GetHistory(id string) []Message {
	sess := s.get(id)
	if sess == nil {
		return nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	messages := make([]Message, 0, len(sess.exchanges)*2)
	for _, e := range sess.exchanges {
		messages = append(messages,
			Message{Role: RoleUser, Content: e.Question},
			Message{Role: RoleAssistant, Content: e.Answer},
		)
	}
	return messages
}

// AddExchange appends one question/answer pair, creating the session if
// needed and evicting the oldest exchange past the configured bound.
func (s *SessionStore) AddExchange(id, question, answer string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{}
		s.sessions[id] = sess
	}
	s.mu.Unlock()

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.exchanges = append(sess.exchanges, Exchange{Question: question, Answer: answer})
	if s.maxExchanges > 0 && len(sess.exchanges) > s.maxExchanges {
		sess.exchanges = sess.exchanges[len(sess.exchanges)-s.maxExchanges:]
	}
}

// Clear empties a session's history without deleting the session id.
func (s *SessionStore) Clear(id string) error {
	sess := s.get(id)
	if sess == nil {
		return domain.ErrSessionNotFound
	}

	sess.mu.Lock()
	sess.exchanges = nil
	sess.mu.Unlock()
	return nil
}
