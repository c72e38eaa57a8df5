package chatclient

import (
	"slices"
	"sync"

	"github.com/comigor/jarvis-chat/internal/domain"
)

// State is a snapshot of the client-side view.
type State struct {
	Identity      *domain.Identity
	Conversations []domain.Conversation
	ActiveID      string
	Transcript    []domain.Message
	Streaming     bool
	// Notice is a user-visible message, e.g. after a failed reply.
	Notice string
}

// Store holds the client-side state. Every change goes through one of the On*
// transitions; readers take a Snapshot.
type Store struct {
	mu        sync.Mutex
	state     State
	streamIdx int // transcript index of the reply being streamed, -1 if none
}

func NewStore() *Store {
	return &Store{streamIdx: -1}
}

// Snapshot returns a copy that is safe to keep.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.state
	if s.state.Identity != nil {
		id := *s.state.Identity
		out.Identity = &id
	}
	out.Conversations = slices.Clone(s.state.Conversations)
	out.Transcript = slices.Clone(s.state.Transcript)
	return out
}

// OnAuthChange sets the signed-in identity. Signing out (nil) or switching
// users drops everything else.
func (s *Store) OnAuthChange(id *domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == nil || s.state.Identity == nil || s.state.Identity.UserID != id.UserID {
		s.state = State{}
		s.streamIdx = -1
	}
	if id != nil {
		cp := *id
		s.state.Identity = &cp
	}
}

func (s *Store) OnConversationsLoaded(convs []domain.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Conversations = slices.Clone(convs)
}

// OnConversationCreated puts conv first and makes it active.
func (s *Store) OnConversationCreated(conv domain.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Conversations = append([]domain.Conversation{conv}, s.state.Conversations...)
	s.activateLocked(conv.ID, conv.Messages)
}

// OnConversationSelected makes id active with its stored transcript.
func (s *Store) OnConversationSelected(id string, msgs []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activateLocked(id, msgs)
}

func (s *Store) activateLocked(id string, msgs []domain.Message) {
	s.state.ActiveID = id
	s.state.Transcript = slices.Clone(msgs)
	s.state.Streaming = false
	s.state.Notice = ""
	s.streamIdx = -1
}

// OnUserMessage appends the user's turn optimistically.
func (s *Store) OnUserMessage(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Notice = ""
	s.state.Transcript = append(s.state.Transcript, domain.Message{
		ConversationID: s.state.ActiveID,
		Role:           domain.RoleUser,
		Content:        content,
	})
}

// OnMessageStreamFragment grows the reply being streamed, starting one on the
// first fragment.
func (s *Store) OnMessageStreamFragment(fragment string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.streamIdx < 0 {
		s.state.Transcript = append(s.state.Transcript, domain.Message{
			ConversationID: s.state.ActiveID,
			Role:           domain.RoleAssistant,
		})
		s.streamIdx = len(s.state.Transcript) - 1
	}
	s.state.Transcript[s.streamIdx].Content += fragment
	s.state.Streaming = true
}

// OnStreamCompleted settles the reply to the relay's full text.
func (s *Store) OnStreamCompleted(result ChatResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.streamIdx < 0 {
		s.state.Transcript = append(s.state.Transcript, domain.Message{
			ConversationID: s.state.ActiveID,
			Role:           domain.RoleAssistant,
		})
		s.streamIdx = len(s.state.Transcript) - 1
	}
	m := &s.state.Transcript[s.streamIdx]
	m.Content = result.Content
	m.ID = result.MessageID
	if !result.Persisted {
		s.state.Notice = "reply was not saved"
	}
	s.state.Streaming = false
	s.streamIdx = -1
}

// OnStreamFailed records notice and keeps the transcript as it is.
func (s *Store) OnStreamFailed(notice string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Streaming = false
	s.state.Notice = notice
	s.streamIdx = -1
}

// OnConversationDeleted drops id, clearing the view if it was active.
func (s *Store) OnConversationDeleted(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Conversations = slices.DeleteFunc(s.state.Conversations, func(c domain.Conversation) bool {
		return c.ID == id
	})
	if s.state.ActiveID == id {
		s.activateLocked("", nil)
	}
}
