package source

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ghuser/persistredis/services/journal/domain"
	"github.com/ghuser/persistredis/services/journal/domain/models"
	"github.com/ghuser/persistredis/services/journal/domain/repositories"
)

// fakeDriver serves pages from a caller-supplied slice, one page per
// FetchPage call in order, and optionally runs a hook synchronously inside
// FetchPage — used to synchronize tests with an in-flight query.
type fakeDriver struct {
	mu      sync.Mutex
	pages   [][]RawRecord
	errs    []error
	calls   int
	channel string
	onFetch func()
}

func (d *fakeDriver) Channel() string { return d.channel }

func (d *fakeDriver) FetchPage(ctx context.Context, lo, hi uint64) ([]RawRecord, error) {
	if d.onFetch != nil {
		d.onFetch()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.calls
	d.calls++
	if i < len(d.errs) && d.errs[i] != nil {
		return nil, d.errs[i]
	}
	if i < len(d.pages) {
		return d.pages[i], nil
	}
	return nil, nil
}

// fakeGateway implements repositories.StoreGateway. Machine never calls
// Range itself (only a Driver does, and tests use fakeDriver for that), so
// Range is unused here; Subscribe hands back the preconfigured subscription.
type fakeGateway struct {
	sub *fakeSubscription
}

func (g *fakeGateway) Range(ctx context.Context, key string, lo, hi uint64) ([]repositories.ScoredValue, error) {
	return nil, nil
}

func (g *fakeGateway) Subscribe(ctx context.Context, channel string) (repositories.Subscription, error) {
	return g.sub, nil
}

type fakeSubscription struct {
	ch   chan string
	once sync.Once
	done chan struct{}
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{ch: make(chan string, 8), done: make(chan struct{})}
}

func (s *fakeSubscription) Messages() <-chan string { return s.ch }

func (s *fakeSubscription) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *fakeSubscription) notify(payload string) { s.ch <- payload }

func record(index uint64, payload string) RawRecord {
	return RawRecord{Index: index, SequenceNr: index, PersistenceID: "p1", Payload: []byte(payload)}
}

func newMachine(t *testing.T, driver Driver, gw *fakeGateway, from, to uint64, live bool, pageSize uint64) *Machine {
	t.Helper()
	m, err := New(context.Background(), driver, gw, from, to, live, pageSize, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestNew_InvalidRange(t *testing.T) {
	driver := &fakeDriver{}
	_, err := New(context.Background(), driver, &fakeGateway{}, 5, 1, false, 10, nil, nil)
	if !errors.Is(err, domain.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestMachine_CurrentQuery_DrainsInOrderThenCompletes(t *testing.T) {
	driver := &fakeDriver{
		pages: [][]RawRecord{
			{record(0, "a"), record(1, "b")},
			{},
		},
	}
	m := newMachine(t, driver, &fakeGateway{}, 0, 10, false, 10)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	env, err := m.Next(ctx)
	if err != nil || string(env.Payload) != "a" {
		t.Fatalf("first envelope: env=%+v err=%v", env, err)
	}
	env, err = m.Next(ctx)
	if err != nil || string(env.Payload) != "b" {
		t.Fatalf("second envelope: env=%+v err=%v", env, err)
	}
	if _, err := m.Next(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	// Done is a steady state: calling again still returns io.EOF.
	if _, err := m.Next(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF on repeat pull, got %v", err)
	}
}

func TestMachine_SkipsDeletedRecords(t *testing.T) {
	deleted := record(0, "gone")
	deleted.Deleted = true
	driver := &fakeDriver{
		pages: [][]RawRecord{
			{deleted, record(1, "kept")},
			{},
		},
	}
	m := newMachine(t, driver, &fakeGateway{}, 0, 10, false, 10)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	env, err := m.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if string(env.Payload) != "kept" || env.SequenceNr != 1 {
		t.Fatalf("expected the non-deleted record, got %+v", env)
	}
	if _, err := m.Next(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestMachine_CurrentQuery_StoreFailurePropagates(t *testing.T) {
	boom := errors.New("boom")
	driver := &fakeDriver{errs: []error{boom}}
	m := newMachine(t, driver, &fakeGateway{}, 0, 10, false, 10)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := m.Next(ctx)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
	// Failed is a steady state: the same error comes back on a repeat pull.
	if _, err := m.Next(ctx); !errors.Is(err, boom) {
		t.Fatalf("expected repeat error, got %v", err)
	}
}

func TestMachine_LiveQuery_ParksThenWakesOnNotification(t *testing.T) {
	driver := &fakeDriver{
		pages: [][]RawRecord{
			{}, // nothing yet: parks in WaitingForNotification
			{record(0, "late")},
		},
	}
	sub := newFakeSubscription()
	gw := &fakeGateway{sub: sub}
	m := newMachine(t, driver, gw, 0, 10, true, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Reads are issued on demand: start a pull, then poll until the machine
	// parks; avoids a fixed sleep.
	var (
		env models.Envelope
		err error
	)
	pulled := make(chan struct{})
	go func() {
		defer close(pulled)
		env, err = m.Next(ctx)
	}()

	deadline := time.After(time.Second)
	for m.State() != WaitingForNotification {
		select {
		case <-deadline:
			t.Fatalf("machine never parked, state=%s", m.State())
		case <-time.After(time.Millisecond):
		}
	}

	sub.notify("0")

	<-pulled
	if err != nil {
		t.Fatalf("Next after notification: %v", err)
	}
	if string(env.Payload) != "late" {
		t.Fatalf("expected the late record, got %+v", env)
	}
}

func TestMachine_LiveQuery_NeverCompletesFromDataSide(t *testing.T) {
	driver := &fakeDriver{pages: [][]RawRecord{{}}}
	sub := newFakeSubscription()
	gw := &fakeGateway{sub: sub}
	m := newMachine(t, driver, gw, 0, 0, true, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err := m.Next(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the pull to still be parked at deadline, got %v", err)
	}
	if m.State() != WaitingForNotification {
		t.Fatalf("expected WaitingForNotification, got %s", m.State())
	}
}

func TestMachine_ConcurrentPull_Rejected(t *testing.T) {
	fetchStarted := make(chan struct{})
	release := make(chan struct{})
	driver := &fakeDriver{
		pages: [][]RawRecord{{record(0, "a")}},
		onFetch: func() {
			close(fetchStarted)
			<-release
		},
	}
	m := newMachine(t, driver, &fakeGateway{}, 0, 10, false, 10)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = m.Next(ctx)
	}()

	<-fetchStarted // first Next has already passed the CAS guard

	_, err := m.Next(context.Background())
	if !errors.Is(err, domain.ErrConcurrentPull) {
		t.Fatalf("expected ErrConcurrentPull, got %v", err)
	}

	close(release)
	<-done
}

func TestMachine_Close_UnblocksPendingPull(t *testing.T) {
	fetchStarted := make(chan struct{})
	release := make(chan struct{})
	driver := &fakeDriver{
		pages: [][]RawRecord{{record(0, "a")}},
		onFetch: func() {
			close(fetchStarted)
			<-release
		},
	}
	m, err := New(context.Background(), driver, &fakeGateway{}, 0, 10, false, 10, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	pullErr := make(chan error, 1)
	go func() {
		_, err := m.Next(context.Background())
		pullErr <- err
	}()

	<-fetchStarted
	go func() { _ = m.Close() }()

	select {
	case err := <-pullErr:
		if !errors.Is(err, domain.ErrSourceClosed) {
			t.Fatalf("expected ErrSourceClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending pull was never unblocked by Close")
	}
	close(release)
}

func TestMachine_Close_IsIdempotent(t *testing.T) {
	driver := &fakeDriver{pages: [][]RawRecord{{}}}
	m, err := New(context.Background(), driver, &fakeGateway{}, 0, 0, false, 10, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
