// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package session holds the console's session manager.

The [Manager] owns the current provider session and the operator's merged
[UserView]. It keeps one subscription to the identity provider for its whole
lifetime and derives every state change from the events that subscription
delivers. Operations (login, signup, logout, profile update) only ask the
provider to act; the resulting session change arrives as an event.

# State Machine

	UNINITIALIZED -> LOADING -> AUTHENTICATED | ANONYMOUS | ERROR -> ANONYMOUS

Loading is orthogonal to the status: it is true while any operation is in
flight, and always true for UNINITIALIZED and LOADING.

# Ordering

Every event is stamped with a monotonically increasing sequence number when it
arrives. Reconciliations run concurrently, and a result is applied only when no
newer stamp has been applied already. Once a logout is requested, refresh and
user-update events are ignored; only signed_in can authenticate again.
*/
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/taibuivan/ventigrow/internal/users/identity"
	"github.com/taibuivan/ventigrow/internal/users/profile"
)

// # Collaborators

// IdentityProvider is the subset of [*identity.Client] the manager drives.
type IdentityProvider interface {
	GetSession(context context.Context) (*identity.Session, error)
	OnSessionChange(context context.Context, callback func(identity.Change)) (func(), error)
	SignInWithPassword(context context.Context, email, password string) error
	SignUp(context context.Context, email, password string, metadata map[string]string) (*identity.Identity, error)
	SignOut(context context.Context) error
	UpdateUser(context context.Context, attributes identity.UserAttributes) (*identity.Identity, error)
	ResetPasswordForEmail(context context.Context, email, redirectTarget string) error
	VerifyOTP(context context.Context, token string, otpType identity.OTPType) (*identity.Identity, error)
}

// ProfileStore is the keyed profile record store. [*profile.PostgresStore] satisfies it.
type ProfileStore interface {
	GetByKey(context context.Context, id string) (*profile.Profile, error)
	Upsert(context context.Context, record *profile.Profile) error
	Update(context context.Context, id string, patch profile.Patch) error
}

// BlobStore holds avatar images. [*blob.Store] satisfies it.
type BlobStore interface {
	Put(context context.Context, owner string, data []byte) (string, error)
	PublicLocator(path string) string
	Delete(context context.Context, path string) error
}

// Recorder receives state transitions and failures. [*metrics.Collector] satisfies it.
type Recorder interface {
	RecordSessionTransition(state string)
	RecordSessionFailure(kind string)
}

type noopRecorder struct{}

func (noopRecorder) RecordSessionTransition(string) {}
func (noopRecorder) RecordSessionFailure(string)    {}

// # Manager

// Options tunes the manager. Zero values fall back to the defaults.
type Options struct {
	// LogoutGrace bounds the wait for the provider's signed_out event.
	LogoutGrace time.Duration

	// ReconcileTimeout bounds one profile lookup.
	ReconcileTimeout time.Duration
}

const (
	DefaultLogoutGrace      = 3 * time.Second
	DefaultReconcileTimeout = 10 * time.Second
)

// Manager is the long-lived session service. Create it with [NewManager] and call [Manager.Start] once.
type Manager struct {
	provider IdentityProvider
	profiles ProfileStore
	blobs    BlobStore
	recorder Recorder
	logger   *slog.Logger
	options  Options

	mutex   sync.Mutex
	state   state
	pending int
	failure *Error
	closed  bool

	// sequence stamps events; applied is the newest stamp whose result is visible.
	sequence uint64
	applied  uint64

	// barrier is the last stamp issued before a logout request.
	// Results stamped at or below it can no longer authenticate.
	barrier          uint64
	logoutRequested  bool
	logoutGeneration uint64
	logoutTimer      *time.Timer

	// adopted is the profile written by signup. It stands in for a
	// reconciliation that ran before the row existed.
	adopted *profile.Profile

	subscribers    map[uint64]chan View
	nextSubscriber uint64

	runContext  context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	workers     sync.WaitGroup
}

// NewManager wires a manager. recorder and logger may be nil.
func NewManager(provider IdentityProvider, profiles ProfileStore, blobs BlobStore, recorder Recorder, logger *slog.Logger, options Options) *Manager {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if options.LogoutGrace <= 0 {
		options.LogoutGrace = DefaultLogoutGrace
	}
	if options.ReconcileTimeout <= 0 {
		options.ReconcileTimeout = DefaultReconcileTimeout
	}

	return &Manager{
		provider:    provider,
		profiles:    profiles,
		blobs:       blobs,
		recorder:    recorder,
		logger:      logger.With(slog.String("component", "session")),
		options:     options,
		state:       state{status: StatusUninitialized},
		subscribers: make(map[uint64]chan View),
	}
}

// ErrAlreadyStarted is returned by a second [Manager.Start].
var ErrAlreadyStarted = errors.New("session: manager already started")

/*
Start subscribes to provider events and resolves the initial session.

It returns once the initial state is known. A failed session lookup is shown
once as ERROR and then settles on ANONYMOUS; it is not returned. Failing to
subscribe is returned, since the manager would never see another event.

Parameters:
  - ctx: context.Context (bounds the manager's lifetime, see also [Manager.Close])

Returns:
  - error: ErrAlreadyStarted or the subscription failure
*/
func (manager *Manager) Start(ctx context.Context) error {
	manager.mutex.Lock()
	if manager.state.status != StatusUninitialized || manager.closed {
		manager.mutex.Unlock()
		return ErrAlreadyStarted
	}
	manager.runContext, manager.cancel = context.WithCancel(ctx)
	manager.transitionLocked(state{status: StatusLoading})
	stamp := manager.stampLocked()
	manager.mutex.Unlock()

	unsubscribe, err := manager.provider.OnSessionChange(manager.runContext, manager.handleChange)
	if err != nil {
		manager.startupFailed(stamp, err)
		return err
	}

	manager.mutex.Lock()
	manager.unsubscribe = unsubscribe
	manager.mutex.Unlock()

	current, err := manager.provider.GetSession(ctx)
	switch {
	case err != nil:
		manager.startupFailed(stamp, err)
	case current == nil:
		manager.applyAnonymous(stamp)
	default:
		manager.applyAuthenticated(stamp, current, manager.reconcile(manager.runContext, current))
	}
	return nil
}

// Close unsubscribes, waits for in-flight reconciliations, and closes subscriber channels.
func (manager *Manager) Close() {
	manager.mutex.Lock()
	if manager.closed {
		manager.mutex.Unlock()
		return
	}
	manager.closed = true
	manager.stopLogoutTimerLocked()
	unsubscribe := manager.unsubscribe
	if manager.cancel != nil {
		manager.cancel()
	}
	manager.mutex.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	manager.workers.Wait()

	manager.mutex.Lock()
	for id, channel := range manager.subscribers {
		close(channel)
		delete(manager.subscribers, id)
	}
	manager.mutex.Unlock()
}

// # Reactive Surface

// Current returns the present view.
func (manager *Manager) Current() View {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()
	return manager.viewLocked()
}

/*
Subscribe returns a channel carrying the latest view.

The current view is delivered immediately. A slow reader only ever sees the
newest value; intermediate views are dropped. The returned function
unsubscribes and closes the channel.
*/
func (manager *Manager) Subscribe() (<-chan View, func()) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	channel := make(chan View, 1)
	if manager.closed {
		close(channel)
		return channel, func() {}
	}

	id := manager.nextSubscriber
	manager.nextSubscriber++
	manager.subscribers[id] = channel
	channel <- manager.viewLocked()

	var once sync.Once
	return channel, func() {
		once.Do(func() {
			manager.mutex.Lock()
			defer manager.mutex.Unlock()
			if _, ok := manager.subscribers[id]; ok {
				delete(manager.subscribers, id)
				close(channel)
			}
		})
	}
}

func (manager *Manager) viewLocked() View {
	view := View{
		Status:  manager.state.status,
		User:    manager.state.user,
		Session: manager.state.session,
		Loading: manager.pending > 0 ||
			manager.state.status == StatusUninitialized ||
			manager.state.status == StatusLoading,
	}

	switch {
	case manager.failure != nil:
		view.Error = &manager.failure.Message
		view.ErrorKind = manager.failure.Kind
	case manager.state.message != "":
		message := manager.state.message
		view.Error = &message
		view.ErrorKind = KindNetworkOrProviderFault
	}
	return view
}

func (manager *Manager) publishLocked() {
	view := manager.viewLocked()
	for _, channel := range manager.subscribers {
		select {
		case <-channel:
		default:
		}
		channel <- view
	}
}

// # Event Handling

// handleChange is the provider callback. Events arrive one at a time, in publish order.
func (manager *Manager) handleChange(change identity.Change) {
	manager.mutex.Lock()
	if manager.closed {
		manager.mutex.Unlock()
		return
	}

	if change.Event == identity.EventSignedOut || change.Session == nil {
		manager.clearLogoutLocked()
		manager.adopted = nil
		manager.applied = manager.stampLocked()
		manager.transitionLocked(state{status: StatusAnonymous})
		manager.mutex.Unlock()
		return
	}

	switch change.Event {
	case identity.EventSignedIn:
		manager.clearLogoutLocked()
	case identity.EventTokenRefreshed, identity.EventUserUpdated:
		if manager.logoutRequested {
			manager.logger.Debug("session_event_ignored_during_logout", slog.String("event", string(change.Event)))
			manager.mutex.Unlock()
			return
		}
	}

	stamp := manager.stampLocked()
	manager.workers.Add(1)
	runContext := manager.runContext
	manager.mutex.Unlock()

	go func() {
		defer manager.workers.Done()
		record := manager.reconcile(runContext, change.Session)
		manager.applyAuthenticated(stamp, change.Session, record)
	}()
}

/*
reconcile looks up the profile for a session's identity.

A missing profile and a lookup fault both return nil, which yields the
degraded identity-only view. Faults are logged and never surfaced.
*/
func (manager *Manager) reconcile(ctx context.Context, current *identity.Session) *profile.Profile {
	lookupContext, cancel := context.WithTimeout(ctx, manager.options.ReconcileTimeout)
	defer cancel()

	record, err := manager.profiles.GetByKey(lookupContext, current.User.ID)
	switch {
	case err == nil:
		return record
	case errors.Is(err, profile.ErrNotFound):
		manager.logger.Debug("profile_missing", slog.String("user_id", current.User.ID))
	default:
		manager.logger.Warn("profile_lookup_failed",
			slog.String("user_id", current.User.ID),
			slog.Any("error", err),
		)
	}
	return nil
}

func (manager *Manager) applyAuthenticated(stamp uint64, current *identity.Session, record *profile.Profile) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if manager.closed || stamp <= manager.applied || stamp <= manager.barrier {
		manager.logger.Debug("session_result_discarded", slog.Uint64("stamp", stamp), slog.Uint64("applied", manager.applied))
		return
	}

	manager.applied = stamp
	if adopted := manager.adopted; adopted != nil && adopted.ID == current.User.ID {
		if record == nil {
			record = adopted
		} else {
			manager.adopted = nil
		}
	}
	manager.transitionLocked(state{
		status:  StatusAuthenticated,
		session: current,
		record:  record,
		user:    buildUserView(current.User, record),
	})
}

func (manager *Manager) applyAnonymous(stamp uint64) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if manager.closed || stamp <= manager.applied {
		return
	}
	manager.applied = stamp
	manager.adopted = nil
	manager.transitionLocked(state{status: StatusAnonymous})
}

// startupFailed shows the fault as ERROR, then settles on ANONYMOUS keeping the message.
func (manager *Manager) startupFailed(stamp uint64, err error) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	manager.logger.Error("session_startup_failed", slog.Any("error", err))
	manager.recorder.RecordSessionFailure(string(KindNetworkOrProviderFault))

	if manager.closed || stamp <= manager.applied {
		return
	}
	manager.applied = stamp

	failure := classify(err)
	manager.transitionLocked(state{status: StatusError, message: failure.Message})
	manager.transitionLocked(state{status: StatusAnonymous, message: failure.Message})
}

func (manager *Manager) transitionLocked(next state) {
	previous := manager.state.status
	manager.state = next

	manager.recorder.RecordSessionTransition(string(next.status))
	manager.logger.Info("session_state_changed",
		slog.String("from", string(previous)),
		slog.String("to", string(next.status)),
	)
	manager.publishLocked()
}

func (manager *Manager) stampLocked() uint64 {
	manager.sequence++
	return manager.sequence
}

// # Logout Bookkeeping

func (manager *Manager) requestLogoutLocked() {
	manager.logoutRequested = true
	manager.barrier = manager.sequence
	if manager.logoutTimer == nil {
		manager.logoutGeneration++
		generation := manager.logoutGeneration
		manager.logoutTimer = time.AfterFunc(manager.options.LogoutGrace, func() {
			manager.logoutGraceExpired(generation)
		})
	}
}

func (manager *Manager) clearLogoutLocked() {
	manager.logoutRequested = false
	manager.stopLogoutTimerLocked()
}

func (manager *Manager) stopLogoutTimerLocked() {
	if manager.logoutTimer != nil {
		manager.logoutTimer.Stop()
		manager.logoutTimer = nil
	}
}

// logoutGraceExpired performs the local-only transition when signed_out never arrived.
func (manager *Manager) logoutGraceExpired(generation uint64) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if manager.closed || !manager.logoutRequested || generation != manager.logoutGeneration {
		return
	}
	// logoutRequested stays set: refresh events still cannot authenticate until signed_in.
	manager.logoutTimer = nil

	manager.logger.Warn("session_signed_out_event_missing", slog.Duration("grace", manager.options.LogoutGrace))
	manager.applied = manager.stampLocked()
	manager.transitionLocked(state{status: StatusAnonymous})
}
