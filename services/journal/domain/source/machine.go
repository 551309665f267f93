package source

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/ghuser/persistredis/pkg/logger"
	"github.com/ghuser/persistredis/pkg/metrics"
	"github.com/ghuser/persistredis/services/journal/domain"
	"github.com/ghuser/persistredis/services/journal/domain/models"
	"github.com/ghuser/persistredis/services/journal/domain/repositories"
)

// pullReq is one onPull input: a pending Next() call waiting on resp.
type pullReq struct {
	resp chan pullResult
}

type pullResult struct {
	env models.Envelope
	err error
}

// queryResultMsg is the onQueryResult/onQueryFailure input: the completion of
// the single outstanding range read, delivered back onto the machine's own
// inbox so it is processed on the machine's single execution context.
type queryResultMsg struct {
	records []RawRecord
	err     error
}

// notifyMsg is the onNotification input.
type notifyMsg struct{}

// Machine is the shared cooperative state machine described in the core:
// single-threaded by construction (every state mutation happens inside run,
// driven by messages funneled through inbox), coordinating downstream
// demand, at most one in-flight range read, and — for live queries — pub/sub
// notifications.
type Machine struct {
	driver  Driver
	gateway repositories.StoreGateway

	to       uint64
	current  uint64
	live     bool
	pageSize uint64

	state   State
	stateAt atomic.Int32

	buffer      []models.Envelope
	pendingPull *pullReq
	finalErr    error

	inbox chan any
	quit  chan struct{}
	done  chan struct{}

	pullInFlight atomic.Int32
	closeOnce    sync.Once

	ctx    context.Context
	cancel context.CancelFunc

	sub repositories.Subscription

	metrics *metrics.Journal
	log     logger.Logger
}

// New constructs a Machine for one query. from/to are inclusive; live
// selects between the current (snapshot) and live (follow-the-tail)
// variants. If live, a pub/sub subscription on driver.Channel() is opened
// immediately and released when Close is called.
func New(
	ctx context.Context,
	driver Driver,
	gateway repositories.StoreGateway,
	from, to uint64,
	live bool,
	pageSize uint64,
	m *metrics.Journal,
	log logger.Logger,
) (*Machine, error) {
	if from > to {
		return nil, domain.ErrInvalidRange
	}
	if pageSize == 0 {
		pageSize = 1
	}

	mctx, cancel := context.WithCancel(ctx)
	mach := &Machine{
		driver:   driver,
		gateway:  gateway,
		to:       to,
		current:  from,
		live:     live,
		pageSize: pageSize,
		inbox:    make(chan any),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		ctx:      mctx,
		cancel:   cancel,
		metrics:  m,
		log:      log,
	}
	mach.setState(Idle)

	if live {
		sub, err := gateway.Subscribe(mctx, driver.Channel())
		if err != nil {
			cancel()
			return nil, fmt.Errorf("%w: subscribe: %v", domain.ErrStoreFailure, err)
		}
		mach.sub = sub
		go mach.pumpNotifications()
	}

	if m != nil {
		m.ActiveSources.Add(ctx, 1)
	}

	go mach.run()
	return mach, nil
}

// State returns the machine's current state. Safe to call from any goroutine
// — used by the admin introspection endpoint, never by the run loop itself
// (which reads/writes the unexported state field directly).
func (m *Machine) State() State {
	return State(m.stateAt.Load())
}

func (m *Machine) setState(s State) {
	m.state = s
	m.stateAt.Store(int32(s))
}

// Next blocks until an envelope is available, the stream completes (io.EOF),
// the stream fails (a fatal domain error), the source is closed
// (domain.ErrSourceClosed), or ctx is cancelled. Only one Next call may be
// outstanding at a time; a concurrent call returns domain.ErrConcurrentPull.
func (m *Machine) Next(ctx context.Context) (models.Envelope, error) {
	if !m.pullInFlight.CompareAndSwap(0, 1) {
		return models.Envelope{}, domain.ErrConcurrentPull
	}
	defer m.pullInFlight.Store(0)

	resp := make(chan pullResult, 1)
	select {
	case m.inbox <- pullReq{resp: resp}:
	case <-m.done:
		return models.Envelope{}, domain.ErrSourceClosed
	case <-ctx.Done():
		return models.Envelope{}, ctx.Err()
	}

	select {
	case r := <-resp:
		if m.metrics != nil && r.err == nil {
			m.metrics.EnvelopesEmitted.Add(ctx, 1)
		}
		return r.env, r.err
	case <-m.done:
		return models.Envelope{}, domain.ErrSourceClosed
	case <-ctx.Done():
		return models.Envelope{}, ctx.Err()
	}
}

// Close releases the pub/sub subscription (if any), abandons any in-flight
// read, and terminates the machine. Idempotent.
func (m *Machine) Close() error {
	m.closeOnce.Do(func() {
		close(m.quit)
	})
	<-m.done
	return nil
}

// run is the machine's single execution context. Every state mutation
// happens here; this is the "funnel async callbacks into a single serialized
// handler" described in the core's design notes.
func (m *Machine) run() {
	defer close(m.done)
	defer m.cancel()
	defer func() {
		if m.sub != nil {
			_ = m.sub.Close()
		}
		if m.metrics != nil {
			m.metrics.ActiveSources.Add(context.Background(), -1)
		}
	}()

	for {
		select {
		case msg := <-m.inbox:
			switch v := msg.(type) {
			case pullReq:
				m.handlePull(v)
			case queryResultMsg:
				m.handleQueryResult(v)
			case notifyMsg:
				if m.metrics != nil {
					m.metrics.NotificationsReceived.Add(m.ctx, 1)
				}
				m.handleNotification()
			}
		case <-m.quit:
			m.handleCancel()
			return
		}
	}
}

func (m *Machine) pumpNotifications() {
	for {
		select {
		case payload, ok := <-m.sub.Messages():
			if !ok {
				return
			}
			if _, err := strconv.ParseUint(payload, 10, 64); err != nil {
				if m.metrics != nil {
					m.metrics.NotificationDecodeWarnings.Add(m.ctx, 1)
				}
				if m.log != nil {
					m.log.WarnContext(m.ctx, "dropping malformed notification payload",
						"payload", payload, "error", err)
				}
				continue
			}
			select {
			case m.inbox <- notifyMsg{}:
			case <-m.done:
				return
			}
		case <-m.done:
			return
		}
	}
}

func (m *Machine) handlePull(req pullReq) {
	switch m.state {
	case Done:
		req.resp <- pullResult{err: io.EOF}
	case Failed:
		req.resp <- pullResult{err: m.finalErr}
	case Idle:
		if env, ok := m.popBuffer(); ok {
			req.resp <- pullResult{env: env}
			m.checkCompleteAfterDrain()
			return
		}
		m.pendingPull = &req
		m.attemptQuery()
	default:
		// Next() serializes pulls to one in flight at a time, so a pull
		// reaches the machine while a prior one is parked on
		// Querying/NotifiedWhenQuerying/WaitingForNotification only after
		// that prior Next returned on ctx cancellation. The new pull takes
		// the abandoned one's place and waits on the same read; no second
		// read is issued.
		if m.pendingPull != nil {
			m.pendingPull = &req
			return
		}
		m.finalErr = fmt.Errorf("%w: pull received while in state %s", domain.ErrProtocolViolation, m.state)
		m.setState(Failed)
		req.resp <- pullResult{err: m.finalErr}
	}
}

func (m *Machine) handleQueryResult(v queryResultMsg) {
	if m.state != Querying && m.state != NotifiedWhenQuerying {
		m.finalErr = fmt.Errorf("%w: query result received while in state %s", domain.ErrProtocolViolation, m.state)
		m.setState(Failed)
		m.deliverPending(models.Envelope{}, m.finalErr)
		return
	}
	wasNotified := m.state == NotifiedWhenQuerying

	if v.err != nil {
		m.setState(Failed)
		m.finalErr = v.err
		m.deliverPending(models.Envelope{}, m.finalErr)
		return
	}

	m.applyPage(v.records)

	if len(v.records) == 0 {
		if wasNotified {
			// The notification promised more even though this read came up
			// empty; force at least one more read rather than parking or
			// completing on stale information.
			m.attemptQuery()
			return
		}
		if m.live {
			m.setState(WaitingForNotification)
			return
		}
		m.setState(Done)
		m.deliverPending(models.Envelope{}, io.EOF)
		return
	}

	if env, ok := m.popBuffer(); ok {
		m.setState(Idle)
		m.deliverPending(env, nil)
		m.checkCompleteAfterDrain()
		return
	}

	// The page had records but every one was filtered out (deleted, or out
	// of range). Nothing to deliver yet — requery immediately.
	m.attemptQuery()
}

func (m *Machine) handleNotification() {
	switch m.state {
	case Querying:
		m.setState(NotifiedWhenQuerying)
	case NotifiedWhenQuerying:
		// Multiple notifications during one in-flight read collapse into a
		// single "requery afterwards" obligation; no counter is kept.
	case WaitingForNotification:
		m.attemptQuery()
	case Idle, Done, Failed:
		// Idle: the next pull will issue a fresh read anyway. Done/Failed:
		// the subscription outlives the steady state only briefly, until
		// run's deferred cleanup closes it; ignore stragglers.
	}
}

func (m *Machine) handleCancel() {
	if m.pendingPull != nil {
		m.deliverPending(models.Envelope{}, domain.ErrSourceClosed)
	}
}

// attemptQuery issues the next range read, or — if the cursor has already
// passed to — settles the machine without reading at all: Done for a
// current query, parked for a live one (which must never complete from the
// data side, even when its own bound is exhausted).
func (m *Machine) attemptQuery() {
	if m.current > m.to {
		if m.live {
			m.setState(WaitingForNotification)
			return
		}
		m.setState(Done)
		m.deliverPending(models.Envelope{}, io.EOF)
		return
	}

	m.setState(Querying)
	lo, hi := m.current, m.boundedHi()
	if m.metrics != nil {
		m.metrics.QueriesIssued.Add(m.ctx, 1)
	}
	go func() {
		records, err := m.driver.FetchPage(m.ctx, lo, hi)
		select {
		case m.inbox <- queryResultMsg{records: records, err: err}:
		case <-m.done:
		}
	}()
}

func (m *Machine) boundedHi() uint64 {
	hi := m.current + m.pageSize - 1
	if hi < m.current { // overflow
		hi = math.MaxUint64
	}
	if hi > m.to {
		hi = m.to
	}
	return hi
}

// applyPage enqueues the accepted records from one page and advances the
// cursor to one past the last examined index (records arrive ascending, so
// that's the last element), never by the page's record count — the store's
// scores aren't guaranteed dense from current, so lo+len(records) can land
// short of the last examined index and cause it to be re-fetched and
// re-emitted on the next page. An empty page leaves current unchanged so a
// live query's park/no-skip behavior at the tail is preserved.
func (m *Machine) applyPage(records []RawRecord) {
	lo := m.current
	for _, r := range records {
		if r.Deleted || r.Index < lo || r.Index > m.to {
			continue
		}
		m.buffer = append(m.buffer, models.Envelope{
			Offset:        models.Sequence(r.Index),
			PersistenceID: r.PersistenceID,
			SequenceNr:    r.SequenceNr,
			Payload:       r.Payload,
		})
	}
	if len(records) > 0 {
		m.current = records[len(records)-1].Index + 1
	}
}

func (m *Machine) popBuffer() (models.Envelope, bool) {
	if len(m.buffer) == 0 {
		return models.Envelope{}, false
	}
	env := m.buffer[0]
	m.buffer = m.buffer[1:]
	return env, true
}

// checkCompleteAfterDrain completes a current query once its buffer is empty
// and the cursor has passed to. Live queries never complete this way.
func (m *Machine) checkCompleteAfterDrain() {
	if m.live || len(m.buffer) != 0 || m.current <= m.to {
		return
	}
	m.setState(Done)
}

func (m *Machine) deliverPending(env models.Envelope, err error) {
	if m.pendingPull == nil {
		return
	}
	req := m.pendingPull
	m.pendingPull = nil
	req.resp <- pullResult{env: env, err: err}
}
