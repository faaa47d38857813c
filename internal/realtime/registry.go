package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/campuslink/campuslink/internal/domain"
	"github.com/google/uuid"
)

const sessionBuffer = 256

// Session is one live realtime connection bound to a durable user identity.
// Its channel memberships live only in the registry and die with it.
type Session struct {
	ID   string
	User domain.UserView

	send chan []byte
}

// Outbound returns the session's outbound frame stream, drained by the
// connection's write loop.
func (s *Session) Outbound() <-chan []byte {
	return s.send
}

// Send emits a single event to this session only.
func (s *Session) Send(event string, payload any) {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		slog.Error("Failed to encode event", "event", event, "error", err)
		return
	}
	s.push(frame, event)
}

func (s *Session) push(frame []byte, event string) {
	select {
	case s.send <- frame:
	default:
		// Slow consumer. Delivery here is best-effort; dropping beats
		// blocking every other session on one stalled socket.
		slog.Warn("Dropping event for slow session", "session_id", s.ID, "user_id", s.User.ID, "event", event)
	}
}

func encodeFrame(event string, payload any) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data = b
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// Registry tracks live sessions and their channel memberships. All
// mutations are atomic with respect to the presence queries used by the
// fan-out engine.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session            // session ID -> session
	channels map[string]map[string]*Session // channel key -> session ID -> session
	joined   map[string]map[string]struct{} // session ID -> channel keys
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		channels: make(map[string]map[string]*Session),
		joined:   make(map[string]map[string]struct{}),
	}
}

// Register creates a session for the user and joins their personal channel.
func (r *Registry) Register(user domain.UserView) *Session {
	s := &Session{
		ID:   uuid.New().String(),
		User: user,
		send: make(chan []byte, sessionBuffer),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[s.ID] = s
	r.joined[s.ID] = make(map[string]struct{})
	r.joinLocked(s, UserChannel(user.ID))

	slog.Info("Realtime session registered", "session_id", s.ID, "user_id", user.ID)
	return s
}

// Unregister removes the session from every channel and forgets it.
func (r *Registry) Unregister(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID]; !ok {
		return
	}

	for channel := range r.joined[s.ID] {
		r.leaveLocked(s, channel)
	}
	delete(r.joined, s.ID)
	delete(r.sessions, s.ID)

	slog.Info("Realtime session unregistered", "session_id", s.ID, "user_id", s.User.ID)
}

// Join adds the session to a channel. Joining twice is a no-op.
func (r *Registry) Join(s *Session, channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID]; !ok {
		return
	}
	r.joinLocked(s, channel)
}

// Leave removes the session from a channel if present.
func (r *Registry) Leave(s *Session, channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(s, channel)
}

func (r *Registry) joinLocked(s *Session, channel string) {
	if r.channels[channel] == nil {
		r.channels[channel] = make(map[string]*Session)
	}
	r.channels[channel][s.ID] = s
	r.joined[s.ID][channel] = struct{}{}
}

func (r *Registry) leaveLocked(s *Session, channel string) {
	if members, ok := r.channels[channel]; ok {
		delete(members, s.ID)
		if len(members) == 0 {
			delete(r.channels, channel)
		}
	}
	if channels, ok := r.joined[s.ID]; ok {
		delete(channels, channel)
	}
}

// IsViewing reports whether any of the user's sessions is currently joined
// to the conversation's channel. Channels are small, so a linear scan is
// sufficient.
func (r *Registry) IsViewing(conversationID, userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.channels[ConversationChannel(conversationID)] {
		if s.User.ID == userID {
			return true
		}
	}
	return false
}

// Emit broadcasts an event to every session in the channel.
func (r *Registry) Emit(channel, event string, payload any) {
	r.emit(channel, "", event, payload)
}

// EmitExcept broadcasts an event to every session in the channel except one.
func (r *Registry) EmitExcept(channel, excludeSessionID, event string, payload any) {
	r.emit(channel, excludeSessionID, event, payload)
}

func (r *Registry) emit(channel, excludeSessionID, event string, payload any) {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		slog.Error("Failed to encode event", "event", event, "error", err)
		return
	}

	r.mu.RLock()
	members := make([]*Session, 0, len(r.channels[channel]))
	for _, s := range r.channels[channel] {
		if s.ID == excludeSessionID {
			continue
		}
		members = append(members, s)
	}
	r.mu.RUnlock()

	for _, s := range members {
		s.push(frame, event)
	}
}
