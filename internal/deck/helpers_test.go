package deck

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tinytelemetry/cardeck/internal/model"
)

// deterministicRNG returns values from pre-set sequences.
type deterministicRNG struct {
	mu     sync.Mutex
	ints   []int
	floats []float64
	ii, fi int
}

func (r *deterministicRNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[r.ii%len(r.ints)] % n
	r.ii++
	return v
}

func (r *deterministicRNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.floats) == 0 {
		return 0.5
	}
	v := r.floats[r.fi%len(r.floats)]
	r.fi++
	return v
}

// manualScheduler queues tasks until the test fires them.
type manualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTimer
}

type manualTimer struct {
	mu      sync.Mutex
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{delay: d, f: f}
	s.tasks = append(s.tasks, t)
	return t
}

func (t *manualTimer) claim() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.fired = true
	return true
}

func (t *manualTimer) live() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped && !t.fired
}

// fireAll runs every pending task in scheduling order.
func (s *manualScheduler) fireAll() int {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = nil
	s.mu.Unlock()

	n := 0
	for _, t := range tasks {
		if !t.claim() {
			continue
		}
		t.f()
		n++
	}
	return n
}

func (s *manualScheduler) pending() []*manualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*manualTimer
	for _, t := range s.tasks {
		if t.live() {
			out = append(out, t)
		}
	}
	return out
}

// fakeService serves a fixed catalog.
type fakeService struct {
	mu      sync.Mutex
	catalog []model.CharacterRecord
	err     error
	calls   int
	block   chan struct{} // when set, calls wait on it or on ctx
}

func (s *fakeService) GetAllCharacters(ctx context.Context) ([]model.CharacterRecord, error) {
	s.mu.Lock()
	s.calls++
	block := s.block
	catalog, err := s.catalog, s.err
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return catalog, err
}

func (s *fakeService) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *fakeService) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testCatalog(names ...string) []model.CharacterRecord {
	out := make([]model.CharacterRecord, len(names))
	for i, n := range names {
		out[i] = model.CharacterRecord{ID: i + 1, Name: n, Films: []string{n + " Film"}}
	}
	return out
}

type recordingWriter struct {
	mu       sync.Mutex
	verdicts []model.Verdict
}

func (w *recordingWriter) RecordVerdict(_ context.Context, v model.Verdict) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.verdicts = append(w.verdicts, v)
	return nil
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("card-%d", n)
	}
}

type harness struct {
	svc   *fakeService
	sched *manualScheduler
	rng   *deterministicRNG
	rec   *recordingWriter
	ctrl  *Controller
}

func newHarness(t *testing.T, svc *fakeService, cfg Config) *harness {
	t.Helper()
	h := &harness{
		svc:   svc,
		sched: &manualScheduler{},
		rng:   &deterministicRNG{},
		rec:   &recordingWriter{},
	}
	h.ctrl = New(NewSource(svc, h.rng), cfg,
		WithRNG(h.rng),
		WithScheduler(h.sched),
		WithRecorder(h.rec),
		WithIDGenerator(sequentialIDs()),
	)
	t.Cleanup(h.ctrl.Close)
	return h
}

// waitFor polls the controller until cond holds or the deadline passes.
func waitFor(t *testing.T, c *Controller, cond func(State) bool) State {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		s := c.Snapshot()
		if cond(s) {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met, last state: phase=%s cards=%d", s.Phase, len(s.Cards))
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func assertStrictlyDecreasing(t *testing.T, cards []Card) {
	t.Helper()
	for i := 1; i < len(cards); i++ {
		if cards[i].Order >= cards[i-1].Order {
			t.Fatalf("order not strictly decreasing at %d: %d >= %d", i, cards[i].Order, cards[i-1].Order)
		}
	}
}
