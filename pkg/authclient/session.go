package authclient

import "sync"

// SessionState is what a UI renders from
type SessionState struct {
	User            *User
	IsAuthenticated bool
	IsLoading       bool
	Error           string
}

// AuthStatus is the subset of SessionState most views need
type AuthStatus struct {
	IsAuthenticated bool
	IsLoading       bool
	Error           string
}

// Permissions are derived from authentication alone
type Permissions struct {
	CanCheckout    bool
	CanViewProfile bool
}

// Session projects lifecycle outcomes and silent token updates into a
// SessionState. It only changes through the methods below and the store
// events it subscribes to.
type Session struct {
	mu          sync.RWMutex
	state       SessionState
	unsubscribe func()
}

// NewSession creates a Session seeded from store and follows its events
func NewSession(store TokenStore) *Session {
	s := &Session{}
	if t := store.Load(); t.User != nil && !t.Empty() {
		u := *t.User
		s.state = SessionState{User: &u, IsAuthenticated: true}
	}
	s.unsubscribe = store.Subscribe(s.onTokenEvent)
	return s
}

// Close stops following the token store
func (s *Session) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *Session) onTokenEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Kind {
	case TokensUpdated:
		if ev.Tokens.User != nil {
			u := *ev.Tokens.User
			s.state.User = &u
			s.state.IsAuthenticated = true
		}
	case TokensCleared:
		s.state.User = nil
		s.state.IsAuthenticated = false
		s.state.IsLoading = false
	}
}

// Started marks a login, signup or validate call as in flight
func (s *Session) Started() {
	s.mu.Lock()
	s.state.IsLoading = true
	s.state.Error = ""
	s.mu.Unlock()
}

// Succeeded records an authenticated user
func (s *Session) Succeeded(user *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var u *User
	if user != nil {
		cp := *user
		u = &cp
	}
	s.state = SessionState{User: u, IsAuthenticated: u != nil}
}

// Failed records a rejected login, signup or validate
func (s *Session) Failed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SessionState{}
	if err != nil {
		s.state.Error = err.Error()
	}
}

// Unauthenticated is the non-error state of a client holding no token
func (s *Session) Unauthenticated() {
	s.mu.Lock()
	s.state = SessionState{}
	s.mu.Unlock()
}

// LoggedOut resets everything, including any error
func (s *Session) LoggedOut() {
	s.Unauthenticated()
}

// State returns a copy of the current state
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

func (s *Session) AuthStatus() AuthStatus {
	st := s.State()
	return AuthStatus{IsAuthenticated: st.IsAuthenticated, IsLoading: st.IsLoading, Error: st.Error}
}

func (s *Session) UserProfile() *User {
	return s.State().User
}

func (s *Session) Permissions() Permissions {
	authed := s.State().IsAuthenticated
	return Permissions{CanCheckout: authed, CanViewProfile: authed}
}
