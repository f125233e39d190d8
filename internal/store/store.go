package store

import (
	"crypto/rand"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"relay-service/internal/models"
)

// MaxTextLen is the maximum accepted message length in runes, after
// trimming.
const MaxTextLen = 5000

// DefaultTypingStaleAfter is how long a typing signal stays live without
// renewal.
const DefaultTypingStaleAfter = 3 * time.Second

var (
	ErrEmptyText   = errors.New("message text is empty")
	ErrTextTooLong = errors.New("message text exceeds maximum length")
)

// ConversationStore owns all conversation state for the single two-party
// conversation.
type ConversationStore interface {
	Append(sender models.Participant, text, localID string) (models.Message, error)
	ListFor(p models.Participant) []models.Message
	PollSince(p models.Participant, since int64) []models.Message
	SetTyping(p models.Participant, isTyping bool)
	GetTyping(p models.Participant) bool
	MarkRead(p models.Participant, messageIDs []string) int
	ReadStatus(messageID string) bool
	Purge(p models.Participant)
}

// Store is the in-memory conversation store. A single mutex serializes every
// read-modify-write sequence; no operation blocks on I/O while holding it.
type Store struct {
	mu         sync.Mutex
	now        func() time.Time
	entropy    *ulid.MonotonicEntropy
	staleAfter time.Duration

	messages []*models.Message
	byID     map[string]*models.Message
	receipts map[string]bool
	typing   map[models.Participant]models.TypingState

	// lastTimestamp guarantees strictly increasing message timestamps so the
	// poll cursor never skips or duplicates on same-millisecond sends.
	lastTimestamp int64
}

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithTypingStaleAfter overrides the typing staleness window.
func WithTypingStaleAfter(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.staleAfter = d
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		now:        time.Now,
		entropy:    ulid.Monotonic(rand.Reader, 0),
		staleAfter: DefaultTypingStaleAfter,
		byID:       make(map[string]*models.Message),
		receipts:   make(map[string]bool),
		typing:     make(map[models.Participant]models.TypingState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append validates, stamps and stores a new message from sender to its
// partner, seeding its read-receipt entry to false.
func (s *Store) Append(sender models.Participant, text, localID string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, ErrEmptyText
	}
	if utf8.RuneCountInString(text) > MaxTextLen {
		return models.Message{}, ErrTextTooLong
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	ts := now.UnixMilli()
	if ts <= s.lastTimestamp {
		ts = s.lastTimestamp + 1
	}
	s.lastTimestamp = ts

	msg := &models.Message{
		ID:        ulid.MustNew(ulid.Timestamp(now), s.entropy).String(),
		LocalID:   localID,
		Text:      text,
		Sender:    sender,
		Recipient: sender.Partner(),
		Timestamp: ts,
	}

	s.messages = append(s.messages, msg)
	s.byID[msg.ID] = msg
	s.receipts[msg.ID] = false

	return *msg, nil
}

// ListFor returns the full history visible to p, ascending by timestamp,
// with read state resolved from the receipt index.
func (s *Store) ListFor(p models.Participant) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Message, 0, len(s.messages))
	for _, msg := range s.messages {
		if msg.Sender != p && msg.Recipient != p {
			continue
		}
		copied := *msg
		copied.Read = s.receipts[msg.ID]
		out = append(out, copied)
	}
	return out
}

// PollSince returns messages visible to p newer than the cursor, marking
// the ones addressed to p as delivered.
func (s *Store) PollSince(p models.Participant, since int64) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Messages append in timestamp order, so the first match is a lower
	// bound for the whole tail.
	start := sort.Search(len(s.messages), func(i int) bool {
		return s.messages[i].Timestamp > since
	})

	// Non-nil even when nothing matches, so an empty poll serializes as []
	// rather than null.
	out := make([]models.Message, 0, len(s.messages)-start)
	for _, msg := range s.messages[start:] {
		if msg.Sender != p && msg.Recipient != p {
			continue
		}
		if msg.Recipient == p {
			msg.Delivered = true
		}
		copied := *msg
		copied.Read = s.receipts[msg.ID]
		out = append(out, copied)
	}
	return out
}

// SetTyping overwrites p's typing state with the flag and the current time.
func (s *Store) SetTyping(p models.Participant, isTyping bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.typing[p] = models.TypingState{IsTyping: isTyping, UpdatedAt: s.now()}
}

// GetTyping returns p's typing flag, collapsing it to false once the last
// update is older than the staleness window. The check runs on every read;
// there is no expiry timer.
func (s *Store) GetTyping(p models.Participant) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.typing[p]
	if !ok || !state.IsTyping {
		return false
	}
	if s.now().Sub(state.UpdatedAt) > s.staleAfter {
		return false
	}
	return true
}

// MarkRead marks each referenced message read when it exists, is addressed
// to p, and is not read yet. Unknown, foreign and already-read ids are
// skipped. Returns the count of newly marked messages.
func (s *Store) MarkRead(p models.Participant, messageIDs []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := 0
	for _, id := range messageIDs {
		msg, ok := s.byID[id]
		if !ok || msg.Recipient != p || s.receipts[id] {
			continue
		}
		s.receipts[id] = true
		msg.Read = true
		updated++
	}
	return updated
}

// ReadStatus reports whether the message is marked read. Unknown ids read
// as false.
func (s *Store) ReadStatus(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.receipts[messageID]
}

// Purge removes every message visible to p together with its receipt
// entry. Message ids are never reused afterwards.
func (s *Store) Purge(p models.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.messages[:0]
	for _, msg := range s.messages {
		if msg.Sender == p || msg.Recipient == p {
			delete(s.byID, msg.ID)
			delete(s.receipts, msg.ID)
			continue
		}
		kept = append(kept, msg)
	}
	s.messages = kept
}

// Len reports the number of stored messages.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.messages)
}

var _ ConversationStore = (*Store)(nil)
