package client

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"github.com/stemsi/elearning/internal/authz"
	"golang.org/x/sync/singleflight"
)

// ErrStaleResponse is returned when a probe finished after a newer
// RetrieveDetails, Login or Logout started. Its result was discarded.
var ErrStaleResponse = errors.New("stale session response")

// Session is an immutable snapshot of what the console knows about the
// signed-in principal. A new value replaces the old one on every change.
type Session struct {
	Principal   *authz.Principal
	Permissions authz.Set
	RoleNames   authz.Set
	LoggedIn    bool
	Loading     bool
	Error       string
}

// DetailsResult reports a details probe.
type DetailsResult struct {
	Success  bool
	Verified bool
}

// Store holds the current Session. Network calls run outside the lock; the
// result is applied in one locked assignment, and only when no newer
// operation started in the meantime.
type Store struct {
	api *API
	log zerolog.Logger

	mu      sync.RWMutex
	current Session
	// epoch advances on every operation; a result carrying an older epoch is dropped.
	epoch uint64
	// identity advances on Login and Logout so probes never share a request
	// across a change of cookie.
	identity uint64
	// signedOut is set by Logout and Clear and reset by Login.
	signedOut bool
	subs      map[chan struct{}]struct{}

	probes singleflight.Group
}

// NewStore returns a Store in the loading state. Call RetrieveDetails to
// resolve it.
func NewStore(api *API, log zerolog.Logger) *Store {
	return &Store{
		api:     api,
		log:     log.With().Str("component", "session_store").Logger(),
		current: Session{Loading: true},
		subs:    make(map[chan struct{}]struct{}),
	}
}

// API returns the client the store talks through.
func (s *Store) API() *API { return s.api }

// Snapshot returns the current session.
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Subscribe returns a channel that receives a value after each state change
// and a function that ends the subscription. Notifications coalesce.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
		})
	}
}

// begin starts a probe and returns its epoch and the current identity.
func (s *Store) begin() (epoch, identity uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	return s.epoch, s.identity
}

// signOut starts a Logout or Clear.
func (s *Store) signOut() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.identity++
	s.signedOut = true
	return s.epoch
}

// resume starts the follow-up probe of a Login if no Logout, Clear or other
// Login replaced its identity in the meantime.
func (s *Store) resume(identity uint64) (epoch uint64, ok, signedOut bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity != identity {
		return 0, false, s.signedOut
	}
	s.epoch++
	return s.epoch, true, false
}

// apply replaces the session if epoch is still current. Must not hold mu.
func (s *Store) apply(epoch uint64, next Session) bool {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return false
	}
	s.current = next
	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	s.mu.Unlock()
	return true
}

// RetrieveDetails probes /auth/details. On success principal, permissions
// and role names are replaced together; LoggedIn follows the verification
// flag. Any failure clears the session.
func (s *Store) RetrieveDetails(ctx context.Context) (DetailsResult, error) {
	epoch, identity := s.begin()
	return s.retrieveDetails(ctx, epoch, identity)
}

func (s *Store) retrieveDetails(ctx context.Context, epoch, identity uint64) (DetailsResult, error) {
	// Concurrent probes for the same cookie share one request; each caller
	// still applies the result under its own epoch.
	v, err, _ := s.probes.Do(strconv.FormatUint(identity, 10), func() (any, error) {
		return s.api.Details(ctx)
	})
	if err != nil {
		if !s.apply(epoch, Session{Error: errorMessage(err)}) {
			return DetailsResult{}, ErrStaleResponse
		}
		s.log.Debug().Err(err).Msg("Details probe failed, session cleared")
		return DetailsResult{}, err
	}

	details := v.(*DetailsResponse)
	p := *details.User
	p.Permissions = details.Permissions
	next := Session{
		Principal:   &p,
		Permissions: authz.NewSet(details.Permissions),
		RoleNames:   authz.NewSet(p.RoleNames),
		LoggedIn:    p.Verified,
	}
	if !s.apply(epoch, next) {
		s.log.Debug().Str("user_id", p.ID).Msg("Discarded stale details probe")
		return DetailsResult{}, ErrStaleResponse
	}
	return DetailsResult{Success: true, Verified: p.Verified}, nil
}

// Login signs in and then probes details. It returns whether the principal
// is verified. The previous principal is dropped as soon as Login starts.
//
// A Login overtaken by Logout or Clear while its request was in flight
// returns ErrStaleResponse and drops the cookie it received.
func (s *Store) Login(ctx context.Context, creds Credentials) (bool, error) {
	s.mu.Lock()
	s.epoch++
	s.identity++
	s.signedOut = false
	epoch, identity := s.epoch, s.identity
	s.mu.Unlock()
	s.apply(epoch, Session{})

	if err := s.api.Login(ctx, creds); err != nil {
		s.apply(epoch, Session{Error: errorMessage(err)})
		s.log.Info().Str("email", creds.Email).Err(err).Msg("Login failed")
		return false, err
	}

	probe, ok, signedOut := s.resume(identity)
	if !ok {
		if signedOut {
			s.api.ClearCookies()
		}
		s.log.Debug().Str("email", creds.Email).Msg("Discarded login overtaken by a newer operation")
		return false, ErrStaleResponse
	}

	res, err := s.retrieveDetails(ctx, probe, identity)
	if err != nil {
		return false, err
	}
	return res.Verified, nil
}

// Logout clears local state first, then asks the server to revoke the
// token. It reports whether the server call succeeded; local state is
// cleared either way.
func (s *Store) Logout(ctx context.Context) (bool, error) {
	epoch := s.signOut()
	s.apply(epoch, Session{})

	err := s.api.Logout(ctx)
	s.api.ClearCookies()
	if err != nil {
		s.log.Warn().Err(err).Msg("Server logout failed, local session cleared")
		return false, err
	}
	return true, nil
}

// Clear drops the session without a server call, e.g. after the server
// announced the token was revoked.
func (s *Store) Clear(reason string) {
	epoch := s.signOut()
	s.apply(epoch, Session{Error: reason})
	s.api.ClearCookies()
}

func errorMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
