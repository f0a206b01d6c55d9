// Package chatclient implements the browser side of the chat protocol: a
// single conversation's state machine plus the SSE consumption transport.
// The transcript is a reducer over discrete events, so rolling back an
// optimistic placeholder on failure is just "don't apply the success
// transition".
package chatclient

import (
	"context"
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

type State int

const (
	StateClosed State = iota
	StateIdle
	StateAwaitingVerification
	StateSending
	StateError
)

const (
	// VerificationInterval forces a fresh human-verification challenge
	// every Nth completed exchange.
	VerificationInterval = 10
	MaxInputLength       = 1000
)

var (
	ErrBlankMessage         = errors.New("chatclient: message is blank")
	ErrMessageTooLong       = errors.New("chatclient: message exceeds max input length")
	ErrSendInFlight         = errors.New("chatclient: a send is already in flight")
	ErrVerificationRequired = errors.New("chatclient: verification required before sending")
	ErrSessionClosed        = errors.New("chatclient: session is closed")
)

type Message struct {
	ID        string
	Role      string // "user" or "assistant"
	Content   string
	Timestamp time.Time
}

// HistoryEntry is the wire shape of one prior message.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SendRequest is the chat endpoint's request body.
type SendRequest struct {
	Message        string         `json:"message"`
	SessionID      string         `json:"sessionId"`
	History        []HistoryEntry `json:"history"`
	TurnstileToken string         `json:"turnstileToken,omitempty"`
}

// Transport streams one exchange. onChunk is called for every content
// increment; a nil return means the stream ended with the done sentinel.
type Transport interface {
	Stream(ctx context.Context, req SendRequest, onChunk func(delta string)) error
}

// Session owns one visible conversation. All state transitions go through
// apply; methods are safe for concurrent use, but only one send may be in
// flight at a time.
type Session struct {
	transport Transport

	mu                sync.Mutex
	id                string
	state             State
	messages          []Message
	errMsg            string
	exchanges         int
	verificationToken string

	cancel context.CancelFunc
}

func NewSession(transport Transport) *Session {
	return &Session{
		transport: transport,
		id:        newSessionID(),
		state:     StateClosed,
	}
}

func newSessionID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// events

type event interface{ isEvent() }

type evOpened struct{}
type evClosed struct{}
type evSendStarted struct{ user, placeholder Message }
type evChunk struct {
	id    string
	delta string
}
type evStreamDone struct{ id string }
type evStreamError struct {
	id  string
	msg string
}
type evAborted struct{ id string }
type evVerified struct{ token string }
type evErrorCleared struct{}

func (evOpened) isEvent()       {}
func (evClosed) isEvent()       {}
func (evSendStarted) isEvent()  {}
func (evChunk) isEvent()        {}
func (evStreamDone) isEvent()   {}
func (evStreamError) isEvent()  {}
func (evAborted) isEvent()      {}
func (evVerified) isEvent()     {}
func (evErrorCleared) isEvent() {}

// apply is the reducer. Once the session is closed every event except
// evOpened is a no-op, which is what makes late stream completions after
// teardown harmless.
func (s *Session) apply(e event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(e)
}

func (s *Session) applyLocked(e event) {
	if s.state == StateClosed {
		if _, ok := e.(evOpened); ok {
			s.state = StateIdle
			s.errMsg = ""
		}
		return
	}

	switch ev := e.(type) {
	case evClosed:
		s.state = StateClosed

	case evSendStarted:
		s.messages = append(s.messages, ev.user, ev.placeholder)
		s.state = StateSending
		s.errMsg = ""

	case evChunk:
		for i := range s.messages {
			if s.messages[i].ID == ev.id {
				s.messages[i].Content += ev.delta
				break
			}
		}

	case evStreamDone:
		s.exchanges++
		if s.exchanges%VerificationInterval == 0 {
			s.verificationToken = ""
			s.state = StateAwaitingVerification
		} else {
			s.state = StateIdle
		}

	case evStreamError:
		s.rollbackEmptyPlaceholder(ev.id)
		s.state = StateError
		s.errMsg = ev.msg

	case evAborted:
		s.rollbackEmptyPlaceholder(ev.id)
		s.state = StateIdle

	case evVerified:
		s.verificationToken = ev.token
		if s.state == StateAwaitingVerification {
			s.state = StateIdle
		}
		s.errMsg = ""

	case evErrorCleared:
		s.errMsg = ""
		if s.state == StateError {
			s.state = StateIdle
		}
	}
}

// rollbackEmptyPlaceholder removes the assistant placeholder only when no
// content was streamed into it; progressively rendered partial content
// stays.
func (s *Session) rollbackEmptyPlaceholder(id string) {
	for i := range s.messages {
		if s.messages[i].ID == id {
			if s.messages[i].Content == "" {
				s.messages = append(s.messages[:i], s.messages[i+1:]...)
			}
			return
		}
	}
}

// Open transitions Closed -> Idle. Opening an already open session is a
// no-op.
func (s *Session) Open() {
	s.apply(evOpened{})
}

// Close tears the session down and cancels any in-flight send. The
// cancelled send's eventual completion is ignored.
func (s *Session) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.apply(evClosed{})
}

// Abort cancels the in-flight send, if any.
func (s *Session) Abort() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Verify stores a fresh challenge token and unblocks sending.
func (s *Session) Verify(token string) {
	s.apply(evVerified{token: token})
}

func (s *Session) ClearError() {
	s.apply(evErrorCleared{})
}

// Send runs one exchange: optimistic append, stream consumption, then the
// terminal transition. It blocks until the stream ends and returns the
// transport error, if any. Concurrent sends are rejected.
func (s *Session) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrBlankMessage
	}
	if len(text) > MaxInputLength {
		return ErrMessageTooLong
	}

	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return ErrSessionClosed
	case StateSending:
		s.mu.Unlock()
		return ErrSendInFlight
	case StateAwaitingVerification:
		if s.verificationToken == "" {
			s.errMsg = "Please complete the verification to continue chatting."
			s.mu.Unlock()
			return ErrVerificationRequired
		}
	}

	history := make([]HistoryEntry, 0, VerificationInterval)
	start := 0
	if len(s.messages) > 10 {
		start = len(s.messages) - 10
	}
	for _, m := range s.messages[start:] {
		history = append(history, HistoryEntry{Role: m.Role, Content: m.Content})
	}
	token := s.verificationToken

	now := time.Now()
	user := Message{ID: uuid.NewString(), Role: "user", Content: text, Timestamp: now}
	placeholder := Message{ID: uuid.NewString(), Role: "assistant", Timestamp: now}

	sctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	sessionID := s.id
	// transition to Sending before releasing the lock, so a racing Send
	// cannot also observe an idle session and start a second stream
	s.applyLocked(evSendStarted{user: user, placeholder: placeholder})
	s.mu.Unlock()
	defer cancel()

	err := s.transport.Stream(sctx, SendRequest{
		Message:        text,
		SessionID:      sessionID,
		History:        history,
		TurnstileToken: token,
	}, func(delta string) {
		s.apply(evChunk{id: placeholder.ID, delta: delta})
	})

	switch {
	case err == nil:
		s.apply(evStreamDone{id: placeholder.ID})
		return nil
	case errors.Is(err, context.Canceled):
		s.apply(evAborted{id: placeholder.ID})
		return err
	default:
		s.apply(evStreamError{id: placeholder.ID, msg: userFacingError(err)})
		return err
	}
}

func userFacingError(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if errors.Is(err, ErrStreamInterrupted) {
		return "The response was interrupted. Please try again."
	}
	return "Failed to send message. Please try again."
}

// accessors

func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

func (s *Session) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

func (s *Session) NeedsVerification() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateAwaitingVerification
}
