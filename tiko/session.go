package tiko

import (
	"context"
	"encoding/json"
	"sync"
)

// SessionState is the explicit authentication state. Callers branch on
// this enum; there is no implicit "has token" sensing.
type SessionState string

const (
	StateUnauthenticated SessionState = "UNAUTHENTICATED"
	StateAuthenticated   SessionState = "AUTHENTICATED"
)

// Session is the authenticated context required for authorized calls:
// the opaque token plus the user and property it is scoped to.
type Session struct {
	Token      string
	UserID     int64
	PropertyID int64
}

// SessionManager owns the login handshake and the live session.
// Exactly one session is live per manager; Authenticate and Invalidate
// serialize on mu, so concurrent authenticate calls cannot race.
type SessionManager struct {
	creds Credentials
	tr    *transport

	mu      sync.Mutex
	state   SessionState
	session Session
}

func newSessionManager(creds Credentials, tr *transport) *SessionManager {
	return &SessionManager{creds: creds, tr: tr, state: StateUnauthenticated}
}

// State reports the current authentication state.
func (m *SessionManager) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns the live session. Calls made without one are
// rejected locally, before touching the network.
func (m *SessionManager) Current() (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateAuthenticated {
		return Session{}, AuthenticationError{Msg: "no live session"}
	}
	return m.session, nil
}

// Invalidate discards the session. Called when a downstream call
// reports the token is no longer accepted.
func (m *SessionManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateUnauthenticated
	m.session = Session{}
}

// Authenticate runs the two-step handshake: the unauthenticated primer
// GET, then the LogIn mutation. On success the manager holds the
// token, user id, and first property id. An account with zero
// properties cannot be polled, so it fails as an authentication error.
func (m *SessionManager) Authenticate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.tr.prime(ctx); err != nil {
		loginFailureTotal.Inc()
		return err
	}

	data, err := m.tr.call(ctx, "", graphqlRequest{
		OperationName: "LogIn",
		Query:         loginMutation,
		Variables: map[string]any{
			"email":         m.creds.Email,
			"password":      m.creds.Password,
			"langCode":      "fr",
			"retainSession": true,
		},
	})
	if err != nil {
		loginFailureTotal.Inc()
		return err
	}

	var reply struct {
		LogIn *struct {
			Token string `json:"token"`
			User  struct {
				ID         int64 `json:"id"`
				Properties []struct {
					ID int64 `json:"id"`
				} `json:"properties"`
			} `json:"user"`
		} `json:"logIn"`
	}
	if err := json.Unmarshal(data, &reply); err != nil {
		loginFailureTotal.Inc()
		return TransportError{Op: "LogIn", Err: err}
	}
	if reply.LogIn == nil || reply.LogIn.Token == "" {
		loginFailureTotal.Inc()
		return AuthenticationError{Msg: "login reply carried no session"}
	}
	if len(reply.LogIn.User.Properties) == 0 {
		loginFailureTotal.Inc()
		return AuthenticationError{Msg: "account has no properties"}
	}

	m.session = Session{
		Token:      reply.LogIn.Token,
		UserID:     reply.LogIn.User.ID,
		PropertyID: reply.LogIn.User.Properties[0].ID,
	}
	m.state = StateAuthenticated
	loginSuccessTotal.Inc()
	return nil
}
