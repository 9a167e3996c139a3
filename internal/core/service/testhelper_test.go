// Package service provides domain services for SigMesh.
package service

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/sigmesh/internal/core/domain"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(unix int64) *fakeClock {
	return &fakeClock{now: time.Unix(unix, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeScheduler records tasks and runs them only when fired by the test.
type fakeScheduler struct {
	mu    sync.Mutex
	tasks []*fakeTimer
}

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{delay: d, fn: f}
	s.tasks = append(s.tasks, t)
	return t
}

// FireAll runs every pending task, including ones already stopped when
// includeStopped is set, to exercise late timer delivery.
func (s *fakeScheduler) FireAll(includeStopped bool) int {
	s.mu.Lock()
	tasks := append([]*fakeTimer(nil), s.tasks...)
	s.mu.Unlock()

	n := 0
	for _, t := range tasks {
		if t.fired || (t.stopped && !includeStopped) {
			continue
		}
		t.fired = true
		t.fn()
		n++
	}
	return n
}

func (s *fakeScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// recordingObserver counts observed events.
type recordingObserver struct {
	mu          sync.Mutex
	transitions map[string]int
	authFail    map[string]int
	tokenReject map[string]int
	lastActive  int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		transitions: make(map[string]int),
		authFail:    make(map[string]int),
		tokenReject: make(map[string]int),
	}
}

func (o *recordingObserver) SessionTransition(transition string, active int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions[transition]++
	o.lastActive = active
}

func (o *recordingObserver) AuthFailure(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.authFail[reason]++
}

func (o *recordingObserver) TokenRejected(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tokenReject[reason]++
}

func (o *recordingObserver) EnvelopeRejected(string) {}

const (
	testSecret = "srv1-secret"
	testCookie = "srv1-reset"
)

// newTestCredentials provisions clients with the given capacity limits.
func newTestCredentials(t *testing.T, limits map[string]int) *CredentialStore {
	t.Helper()

	ids := make([]string, 0, len(limits))
	for id := range limits {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var records []*domain.ClientCredential
	for _, id := range ids {
		rec, err := NewClientCredential(id, limits[id], testSecret, testCookie, 1)
		if err != nil {
			t.Fatalf("NewClientCredential(%s) error = %v", id, err)
		}
		records = append(records, rec)
	}

	store, err := NewCredentialStore(records, 1)
	if err != nil {
		t.Fatalf("NewCredentialStore() error = %v", err)
	}
	return store
}

type testManager struct {
	*SessionManager
	clock     *fakeClock
	scheduler *fakeScheduler
	observer  *recordingObserver
}

func newTestManager(t *testing.T, limits map[string]int) *testManager {
	t.Helper()

	clock := newFakeClock(1000)
	sched := &fakeScheduler{}
	obs := newRecordingObserver()

	m := NewSessionManager(&SessionManagerConfig{
		Credentials:      newTestCredentials(t, limits),
		Tokens:           NewTokenIssuer(&TokenIssuerConfig{Clock: clock.Now}),
		Scheduler:        sched,
		Clock:            clock.Now,
		Observer:         obs,
		StrictInvariants: true,
	})
	return &testManager{SessionManager: m, clock: clock, scheduler: sched, observer: obs}
}
