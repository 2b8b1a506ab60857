package credential

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrFetch marks every failure to obtain a credential from the controller.
// Match with errors.Is.
var ErrFetch = errors.New("credential fetch failed")

// FetchError wraps the underlying cause of a failed token issuance.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	if e == nil || e.Err == nil {
		return ErrFetch.Error()
	}
	return fmt.Sprintf("%s: %v", ErrFetch.Error(), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// Credential is a short-lived client token issued by the controller. It is
// owned exclusively by a Store and replaced atomically on refresh.
type Credential struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the credential is past its true expiry.
func (c Credential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Fetcher issues a fresh credential from the controller. The context
// carries the fetch timeout.
type Fetcher interface {
	Fetch(ctx context.Context) (Credential, error)
}

// Events receives lifecycle notifications. Implementations must be cheap
// and non-blocking; the composition root maps them onto metric counters.
type Events interface {
	RefreshSucceeded()
	RefreshFailed()
	Invalidated()
}

type nopEvents struct{}

func (nopEvents) RefreshSucceeded() {}
func (nopEvents) RefreshFailed()    {}
func (nopEvents) Invalidated()      {}

// Options configures a Store. Zero durations fall back to the defaults
// documented on each field.
type Options struct {
	RefreshWindow time.Duration // refresh requested below this TTL, default 60s
	ExpiryBuffer  time.Duration // old value serves until this long before expiry, default 30s
	FetchTimeout  time.Duration // per fetch, default 5s
	Logger        *zap.Logger
	Events        Events
	Clock         func() time.Time // test hook
}

// Store holds the current credential and coordinates refreshes. All methods
// are safe for concurrent use. At most one refresh is in flight per Store;
// concurrent callers observing an absent or expiring credential await the
// same refresh result instead of issuing duplicate fetches.
type Store struct {
	fetcher       Fetcher
	refreshWindow time.Duration
	expiryBuffer  time.Duration
	fetchTimeout  time.Duration
	log           *zap.Logger
	events        Events
	now           func() time.Time

	mu       sync.Mutex
	cur      Credential
	hasCur   bool
	lastErr  *FetchError
	inflight chan struct{} // non-nil while a refresh runs, closed on completion
}

// NewStore builds a Store around fetcher. fetcher must not be nil.
func NewStore(fetcher Fetcher, opts Options) *Store {
	if opts.RefreshWindow <= 0 {
		opts.RefreshWindow = 60 * time.Second
	}
	if opts.ExpiryBuffer <= 0 {
		opts.ExpiryBuffer = 30 * time.Second
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Events == nil {
		opts.Events = nopEvents{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Store{
		fetcher:       fetcher,
		refreshWindow: opts.RefreshWindow,
		expiryBuffer:  opts.ExpiryBuffer,
		fetchTimeout:  opts.FetchTimeout,
		log:           opts.Logger.Named("credential"),
		events:        opts.Events,
		now:           opts.Clock,
	}
}

// Token returns a usable credential, fetching or refreshing as needed.
//
// A credential with more than the refresh window left is returned as is.
// Inside the refresh window a background refresh is started (or joined) and
// the old value keeps serving until the expiry buffer. Past the buffer the
// caller waits for the in-flight refresh. If the refresh fails but a
// not-yet-expired credential exists, that credential is served and the
// failure is only logged; with nothing left to serve the FetchError
// surfaces.
func (s *Store) Token(ctx context.Context) (Credential, error) {
	now := s.now()

	s.mu.Lock()
	if s.hasCur && now.Before(s.cur.ExpiresAt.Add(-s.refreshWindow)) {
		cred := s.cur
		s.mu.Unlock()
		return cred, nil
	}

	done := s.beginRefreshLocked()

	if s.hasCur && now.Before(s.cur.ExpiresAt.Add(-s.expiryBuffer)) {
		cred := s.cur
		s.mu.Unlock()
		return cred, nil
	}
	s.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return Credential{}, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastErr == nil && s.hasCur {
		return s.cur, nil
	}
	if s.hasCur && !s.cur.Expired(s.now()) {
		// Refresh failed but the old credential has life left. The failure
		// was already logged; retry happens on the next access.
		return s.cur, nil
	}
	if s.lastErr != nil {
		return Credential{}, s.lastErr
	}
	return Credential{}, &FetchError{Err: errors.New("no credential available")}
}

// Current returns the cached credential without triggering a refresh.
func (s *Store) Current() (Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur, s.hasCur
}

// Invalidate clears the cached credential immediately. The next Token call
// fetches a fresh one. The transport calls this when the controller rejects
// the credential on a downstream call.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.cur = Credential{}
	s.hasCur = false
	s.mu.Unlock()
	s.events.Invalidated()
}

// beginRefreshLocked joins the in-flight refresh or starts a new one. The
// caller must hold s.mu.
func (s *Store) beginRefreshLocked() chan struct{} {
	if s.inflight != nil {
		return s.inflight
	}
	done := make(chan struct{})
	s.inflight = done
	go s.refresh(done)
	return done
}

// refresh runs off the caller's goroutine with its own timeout, so a
// timed-out fetch releases the gate instead of deadlocking later callers.
func (s *Store) refresh(done chan struct{}) {
	ctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout)
	cred, err := s.fetcher.Fetch(ctx)
	cancel()

	s.mu.Lock()
	if err != nil {
		s.lastErr = &FetchError{Err: err}
		s.events.RefreshFailed()
		s.log.Warn("credential refresh failed", zap.Error(err))
	} else {
		s.cur = cred
		s.hasCur = true
		s.lastErr = nil
		s.events.RefreshSucceeded()
		s.log.Debug("credential refreshed", zap.Time("expiresAt", cred.ExpiresAt))
	}
	s.inflight = nil
	s.mu.Unlock()
	close(done)
}
