// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taibuivan/ventigrow/internal/users/identity"
	"github.com/taibuivan/ventigrow/internal/users/profile"
	"github.com/taibuivan/ventigrow/internal/users/session"
)

// # Identity Provider Fake

type fakeProvider struct {
	mutex    sync.Mutex
	callback func(identity.Change)

	current    *identity.Session
	getErr     error
	signInErr  error
	signUpErr  error
	signOutErr error
	verifyErr  error

	// emitOnSignIn pushes signed_in for signInSession after a successful sign-in.
	emitOnSignIn  bool
	signInSession *identity.Session

	requireVerification bool
	signUps             []map[string]string
	signInCalls         int
	signOutCalls        int
	passwords           []string
	resetEmails         []string
}

func (provider *fakeProvider) GetSession(context.Context) (*identity.Session, error) {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	return provider.current, provider.getErr
}

func (provider *fakeProvider) OnSessionChange(_ context.Context, callback func(identity.Change)) (func(), error) {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	provider.callback = callback
	return func() {
		provider.mutex.Lock()
		defer provider.mutex.Unlock()
		provider.callback = nil
	}, nil
}

func (provider *fakeProvider) SignInWithPassword(_ context.Context, _, _ string) error {
	provider.mutex.Lock()
	provider.signInCalls++
	err, emit, next := provider.signInErr, provider.emitOnSignIn, provider.signInSession
	provider.mutex.Unlock()

	if err == nil && emit {
		provider.emit(identity.EventSignedIn, next)
	}
	return err
}

func (provider *fakeProvider) SignUp(_ context.Context, email, _ string, metadata map[string]string) (*identity.Identity, error) {
	provider.mutex.Lock()
	provider.signUps = append(provider.signUps, metadata)
	if provider.signUpErr != nil {
		err := provider.signUpErr
		provider.mutex.Unlock()
		return nil, err
	}
	created := &identity.Identity{
		ID:            fmt.Sprintf("user-%d", len(provider.signUps)),
		Email:         email,
		EmailVerified: !provider.requireVerification,
		Metadata:      metadata,
	}
	provider.mutex.Unlock()

	// An auto-confirmed account is signed in before SignUp returns.
	if created.EmailVerified {
		provider.emit(identity.EventSignedIn, &identity.Session{
			ID:           "signup-" + created.ID,
			AccessToken:  "access-signup",
			RefreshToken: "refresh-signup",
			TokenType:    identity.TokenTypeBearer,
			ExpiresAt:    time.Now().Add(time.Hour),
			User:         *created,
		})
	}
	return created, nil
}

func (provider *fakeProvider) SignOut(context.Context) error {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	provider.signOutCalls++
	return provider.signOutErr
}

func (provider *fakeProvider) UpdateUser(_ context.Context, attributes identity.UserAttributes) (*identity.Identity, error) {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	if attributes.Password != nil {
		provider.passwords = append(provider.passwords, *attributes.Password)
	}
	return &identity.Identity{}, nil
}

func (provider *fakeProvider) ResetPasswordForEmail(_ context.Context, email, _ string) error {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	provider.resetEmails = append(provider.resetEmails, email)
	return nil
}

func (provider *fakeProvider) VerifyOTP(context.Context, string, identity.OTPType) (*identity.Identity, error) {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	if provider.verifyErr != nil {
		return nil, provider.verifyErr
	}
	return &identity.Identity{}, nil
}

// emit delivers a session change the way the event bus does: one at a time.
func (provider *fakeProvider) emit(event identity.Event, current *identity.Session) {
	provider.mutex.Lock()
	callback := provider.callback
	provider.mutex.Unlock()

	if callback != nil {
		callback(identity.Change{Event: event, Session: current})
	}
}

// # Profile Store Fake

type fakeProfiles struct {
	mutex   sync.Mutex
	records map[string]profile.Profile
	getErr  error
	putErr  error

	// gate, when set, blocks lookups until it is closed.
	gate chan struct{}

	// upsertDelay stalls every upsert before it is written.
	upsertDelay time.Duration

	journal *journal
}

func newFakeProfiles(journal *journal) *fakeProfiles {
	return &fakeProfiles{records: make(map[string]profile.Profile), journal: journal}
}

func (store *fakeProfiles) GetByKey(ctx context.Context, id string) (*profile.Profile, error) {
	store.mutex.Lock()
	gate := store.gate
	store.mutex.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.getErr != nil {
		return nil, store.getErr
	}
	record, ok := store.records[id]
	if !ok {
		return nil, profile.ErrNotFound
	}
	return &record, nil
}

func (store *fakeProfiles) Upsert(_ context.Context, record *profile.Profile) error {
	store.mutex.Lock()
	delay := store.upsertDelay
	store.mutex.Unlock()
	time.Sleep(delay)

	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.putErr != nil {
		return store.putErr
	}
	store.journal.add("profile_upsert")
	store.records[record.ID] = *record
	return nil
}

func (store *fakeProfiles) Update(_ context.Context, id string, patch profile.Patch) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.putErr != nil {
		return store.putErr
	}
	record, ok := store.records[id]
	if !ok {
		return profile.ErrNotFound
	}
	store.journal.add("profile_update")
	store.records[id] = patch.Apply(record)
	return nil
}

func (store *fakeProfiles) set(record profile.Profile) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.records[record.ID] = record
}

func (store *fakeProfiles) get(id string) (profile.Profile, bool) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	record, ok := store.records[id]
	return record, ok
}

func (store *fakeProfiles) hold() {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.gate = make(chan struct{})
}

func (store *fakeProfiles) release() {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.gate != nil {
		close(store.gate)
		store.gate = nil
	}
}

// # Blob Store Fake

type fakeBlobs struct {
	mutex   sync.Mutex
	objects map[string][]byte
	putErr  error
	count   int
	journal *journal
}

func (store *fakeBlobs) Put(_ context.Context, owner string, data []byte) (string, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.putErr != nil {
		return "", store.putErr
	}
	store.count++
	path := fmt.Sprintf("%s/%d.png", owner, store.count)
	store.objects[path] = data
	store.journal.add("blob_put " + path)
	return path, nil
}

func (store *fakeBlobs) PublicLocator(path string) string {
	return "http://console.test/storage/avatars/" + path
}

func (store *fakeBlobs) Delete(_ context.Context, path string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	delete(store.objects, path)
	store.journal.add("blob_delete " + path)
	return nil
}

func (store *fakeBlobs) has(path string) bool {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	_, ok := store.objects[path]
	return ok
}

// # Recorder Fake

type fakeRecorder struct {
	mutex       sync.Mutex
	transitions []string
	failures    []string
}

func (recorder *fakeRecorder) RecordSessionTransition(state string) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.transitions = append(recorder.transitions, state)
}

func (recorder *fakeRecorder) RecordSessionFailure(kind string) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.failures = append(recorder.failures, kind)
}

func (recorder *fakeRecorder) snapshot() ([]string, []string) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	return append([]string(nil), recorder.transitions...), append([]string(nil), recorder.failures...)
}

// journal records the order of store side effects.
type journal struct {
	mutex   sync.Mutex
	entries []string
}

func (journal *journal) add(entry string) {
	journal.mutex.Lock()
	defer journal.mutex.Unlock()
	journal.entries = append(journal.entries, entry)
}

func (journal *journal) list() []string {
	journal.mutex.Lock()
	defer journal.mutex.Unlock()
	return append([]string(nil), journal.entries...)
}

// # Harness

var errStoreDown = errors.New("connection refused")

type harness struct {
	provider *fakeProvider
	profiles *fakeProfiles
	blobs    *fakeBlobs
	recorder *fakeRecorder
	journal  *journal
	manager  *session.Manager
}

func newHarness(t *testing.T, options session.Options) *harness {
	t.Helper()

	journal := &journal{}
	h := &harness{
		provider: &fakeProvider{},
		profiles: newFakeProfiles(journal),
		blobs:    &fakeBlobs{objects: make(map[string][]byte), journal: journal},
		recorder: &fakeRecorder{},
		journal:  journal,
	}
	h.manager = session.NewManager(h.provider, h.profiles, h.blobs, h.recorder, nil, options)
	t.Cleanup(func() {
		h.profiles.release()
		h.manager.Close()
	})
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.manager.Start(context.Background()))
}

// startSignedIn starts the manager with an existing provider session.
func (h *harness) startSignedIn(t *testing.T, current *identity.Session) {
	t.Helper()
	h.provider.current = current
	h.start(t)
	require.Equal(t, session.StatusAuthenticated, h.manager.Current().Status)
}

func newSession(sessionID, userID, email, name string) *identity.Session {
	metadata := map[string]string{}
	if name != "" {
		metadata[identity.MetadataName] = name
	}
	return &identity.Session{
		ID:           sessionID,
		AccessToken:  "access-" + sessionID,
		RefreshToken: "refresh-" + sessionID,
		TokenType:    identity.TokenTypeBearer,
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         identity.Identity{ID: userID, Email: email, EmailVerified: true, Metadata: metadata},
	}
}

func waitForStatus(t *testing.T, manager *session.Manager, status session.Status) session.View {
	t.Helper()
	require.Eventually(t, func() bool {
		view := manager.Current()
		return view.Status == status && !view.Loading
	}, 2*time.Second, 5*time.Millisecond, "status never reached %s", status)
	return manager.Current()
}
