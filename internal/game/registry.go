package game

import (
	"sort"
	"time"
)

type Session struct {
	ConnID      string
	UserID      string
	Name        string
	ConnectedAt time.Time
}

// Registry maps live connections to user identities. It is owned by the
// scheduling loop and is not safe for concurrent use.
type Registry struct {
	sessions map[string]*Session
	names    map[string]int
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		names:    make(map[string]int),
	}
}

func (r *Registry) Register(connID, userID string) *Session {
	if s, ok := r.sessions[connID]; ok {
		return s
	}
	s := &Session{ConnID: connID, UserID: userID, ConnectedAt: time.Now()}
	r.sessions[connID] = s
	return s
}

// Bind sets the identity a connection acts under. A blank name keeps the
// previous one, falling back to the user id.
func (r *Registry) Bind(connID, userID, name string) (*Session, bool) {
	s, ok := r.sessions[connID]
	if !ok {
		return nil, false
	}
	if name == "" {
		name = s.Name
	}
	if name == "" {
		name = userID
	}
	r.release(s.Name)
	s.UserID = userID
	s.Name = name
	r.names[name]++
	return s, true
}

func (r *Registry) Unregister(connID string) (*Session, bool) {
	s, ok := r.sessions[connID]
	if !ok {
		return nil, false
	}
	delete(r.sessions, connID)
	r.release(s.Name)
	return s, true
}

func (r *Registry) Session(connID string) (*Session, bool) {
	s, ok := r.sessions[connID]
	return s, ok
}

func (r *Registry) OnlineCount() int {
	return len(r.sessions)
}

// Names lists the display names currently bound, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.names))
	for name := range r.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) release(name string) {
	if name == "" {
		return
	}
	if r.names[name] <= 1 {
		delete(r.names, name)
		return
	}
	r.names[name]--
}
