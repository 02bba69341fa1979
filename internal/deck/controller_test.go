package deck

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/tinytelemetry/cardeck/internal/model"
)

func TestInitialize_ProducesDescendingStack(t *testing.T) {
	t.Parallel()

	for n := 1; n <= 8; n++ {
		h := newHarness(t, &fakeService{catalog: testCatalog("A", "B", "C")}, Config{})
		if err := h.ctrl.Initialize(context.Background(), n); err != nil {
			t.Fatalf("n=%d: unexpected error: %v", n, err)
		}

		s := h.ctrl.Snapshot()
		if s.Phase != PhaseReady {
			t.Fatalf("n=%d: expected ready, got %s", n, s.Phase)
		}
		if len(s.Cards) != n {
			t.Fatalf("n=%d: expected %d cards, got %d", n, n, len(s.Cards))
		}
		assertStrictlyDecreasing(t, s.Cards)
		if s.Cards[0].Order != n || s.Cards[n-1].Order != 1 {
			t.Errorf("n=%d: expected orders %d..1, got %d..%d", n, n, s.Cards[0].Order, s.Cards[n-1].Order)
		}
		for _, c := range s.Cards {
			if c.Revealed || c.Exiting {
				t.Errorf("n=%d: fresh card %s should be face down and in play", n, c.ID)
			}
		}
	}
}

func TestInitialize_CatalogScenario(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeService{catalog: testCatalog("A", "B", "C")}, Config{})
	h.rng.ints = []int{1, 2, 0}

	if err := h.ctrl.Initialize(context.Background(), 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := h.ctrl.Snapshot()
	if len(s.Cards) != 3 {
		t.Fatalf("expected 3 cards, got %d", len(s.Cards))
	}

	allowed := map[string]bool{"A": true, "B": true, "C": true}
	ids := make(map[string]bool)
	for _, c := range s.Cards {
		if !allowed[c.Character.Name] {
			t.Errorf("card %s references unknown record %q", c.ID, c.Character.Name)
		}
		if ids[c.ID] {
			t.Errorf("duplicate card id %s", c.ID)
		}
		ids[c.ID] = true
	}
	assertStrictlyDecreasing(t, s.Cards)
	if h.svc.callCount() != 1 {
		t.Errorf("expected one service call, got %d", h.svc.callCount())
	}
}

func TestInitialize_PoseJitterWithinBounds(t *testing.T) {
	t.Parallel()

	svc := &fakeService{catalog: testCatalog("A")}
	ctrl := New(NewSource(svc, nil), Config{}, WithScheduler(&manualScheduler{}))
	t.Cleanup(ctrl.Close)

	if err := ctrl.Initialize(context.Background(), model.MaxDrawSize); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range ctrl.Snapshot().Cards {
		if math.Abs(c.Pose.Rotation) > 3 {
			t.Errorf("rotation %.2f outside +/-3", c.Pose.Rotation)
		}
		if math.Abs(c.Pose.OffsetX) > 4 || math.Abs(c.Pose.OffsetY) > 4 {
			t.Errorf("offset (%.2f, %.2f) outside +/-4", c.Pose.OffsetX, c.Pose.OffsetY)
		}
	}
}

func TestInitialize_JitterExtremes(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeService{catalog: testCatalog("A")}, Config{})
	h.rng.floats = []float64{0, 1, 0.5}

	if err := h.ctrl.Initialize(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := h.ctrl.Snapshot().Cards[0].Pose
	want := Pose{Rotation: -3, OffsetX: 4, OffsetY: 0}
	if got != want {
		t.Errorf("expected pose %+v, got %+v", want, got)
	}
}

func TestInitialize_InvalidSize(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeService{catalog: testCatalog("A")}, Config{})
	for _, n := range []int{0, -2, model.MaxDrawSize + 1, 1 << 50} {
		if err := h.ctrl.Initialize(context.Background(), n); !errors.Is(err, ErrInvalidDrawSize) {
			t.Fatalf("n=%d: expected ErrInvalidDrawSize, got %v", n, err)
		}
	}
	if s := h.ctrl.Snapshot(); s.Phase != PhaseIdle {
		t.Errorf("expected idle, got %s", s.Phase)
	}
	if h.svc.callCount() != 0 {
		t.Errorf("invalid sizes must not reach the service")
	}
}

// panicOnceDrawer panics on its first draw and serves one record afterwards.
type panicOnceDrawer struct {
	calls int
}

func (d *panicOnceDrawer) FetchRandomCharacters(_ context.Context, n int) ([]model.CharacterRecord, error) {
	d.calls++
	if d.calls == 1 {
		panic("drawer exploded")
	}
	out := make([]model.CharacterRecord, n)
	for i := range out {
		out[i] = model.CharacterRecord{ID: 1, Name: "A"}
	}
	return out, nil
}

func TestInitialize_DrawerPanicReleasesGuard(t *testing.T) {
	t.Parallel()

	ctrl := New(&panicOnceDrawer{}, Config{}, WithScheduler(&manualScheduler{}))
	t.Cleanup(ctrl.Close)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected the drawer panic to propagate")
			}
		}()
		_ = ctrl.Initialize(context.Background(), 3)
	}()

	if s := ctrl.Snapshot(); s.Phase != PhaseError || s.Message != UserMessage {
		t.Fatalf("after panic: phase=%s message=%q", s.Phase, s.Message)
	}
	if err := ctrl.Initialize(context.Background(), 3); err != nil {
		t.Fatalf("redraw after panic: %v", err)
	}
	if n := ctrl.Len(); n != 3 {
		t.Fatalf("expected 3 cards, got %d", n)
	}
}

func TestInitialize_FailureSurfacesMessage(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	h := newHarness(t, &fakeService{err: cause}, Config{})

	err := h.ctrl.Initialize(context.Background(), 5)
	if !errors.Is(err, ErrService) || !errors.Is(err, cause) {
		t.Fatalf("expected wrapped service error, got %v", err)
	}
	s := h.ctrl.Snapshot()
	if s.Phase != PhaseError {
		t.Fatalf("expected error phase, got %s", s.Phase)
	}
	if s.Message != UserMessage {
		t.Errorf("expected %q, got %q", UserMessage, s.Message)
	}
	if len(s.Cards) != 0 {
		t.Errorf("expected no cards, got %d", len(s.Cards))
	}

	// Retry after the service recovers.
	h.svc.setErr(nil)
	h.svc.catalog = testCatalog("A")
	if err := h.ctrl.Initialize(context.Background(), 2); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	s = h.ctrl.Snapshot()
	if s.Phase != PhaseReady || s.Message != "" || len(s.Cards) != 2 {
		t.Errorf("unexpected state after retry: phase=%s message=%q cards=%d", s.Phase, s.Message, len(s.Cards))
	}
}

func TestInitialize_EmptyCatalog(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeService{}, Config{})
	err := h.ctrl.Initialize(context.Background(), 3)
	if !errors.Is(err, ErrEmptyCatalog) {
		t.Fatalf("expected ErrEmptyCatalog, got %v", err)
	}
	if s := h.ctrl.Snapshot(); s.Phase != PhaseError || s.Message != UserMessage {
		t.Errorf("unexpected state: phase=%s message=%q", s.Phase, s.Message)
	}
}

func TestInitialize_RejectsOverlappingDraw(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	h := newHarness(t, &fakeService{catalog: testCatalog("A"), block: block}, Config{})

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Initialize(context.Background(), 3) }()

	waitFor(t, h.ctrl, func(s State) bool { return s.Phase == PhaseLoading })
	if err := h.ctrl.Initialize(context.Background(), 3); !errors.Is(err, ErrDrawInFlight) {
		t.Fatalf("expected ErrDrawInFlight, got %v", err)
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatalf("first draw failed: %v", err)
	}
	if got := h.ctrl.Len(); got != 3 {
		t.Errorf("expected 3 cards, got %d", got)
	}
}

func TestInitialize_FetchTimeout(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeService{catalog: testCatalog("A"), block: make(chan struct{})},
		Config{FetchTimeout: 20 * time.Millisecond})

	err := h.ctrl.Initialize(context.Background(), 3)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if s := h.ctrl.Snapshot(); s.Phase != PhaseError {
		t.Errorf("expected error phase, got %s", s.Phase)
	}
}

func TestFlip_TwiceRestoresState(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeService{catalog: testCatalog("A", "B")}, Config{})
	if err := h.ctrl.Initialize(context.Background(), 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before := h.ctrl.Snapshot()
	target := before.Cards[1].ID

	if !h.ctrl.Flip(target) {
		t.Fatal("flip returned false for a known card")
	}
	mid := h.ctrl.Snapshot()
	for i, c := range mid.Cards {
		if c.ID == target {
			if !c.Revealed {
				t.Errorf("target card not revealed after one flip")
			}
			continue
		}
		if !reflect.DeepEqual(c, before.Cards[i]) {
			t.Errorf("flip touched card %s", c.ID)
		}
	}

	h.ctrl.Flip(target)
	if after := h.ctrl.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Errorf("double flip did not restore state:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestFlip_UnknownID(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeService{catalog: testCatalog("A")}, Config{})
	if err := h.ctrl.Initialize(context.Background(), 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before := h.ctrl.Snapshot()
	if h.ctrl.Flip("card-missing") {
		t.Error("flip of unknown id should report false")
	}
	if after := h.ctrl.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Error("flip of unknown id mutated state")
	}
}

func TestRemoveTop_ExitPoseThenSettle(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		dir      Direction
		offset   float64
		rotation float64
	}{
		{Left, -400, -30},
		{Right, 400, 30},
	} {
		h := newHarness(t, &fakeService{catalog: testCatalog("A")}, Config{})
		if err := h.ctrl.Initialize(context.Background(), 5); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		top, _ := h.ctrl.Top()

		if !h.ctrl.RemoveTop(tc.dir) {
			t.Fatalf("%s: remove returned false", tc.dir)
		}
		s := h.ctrl.Snapshot()
		if len(s.Cards) != 5 {
			t.Fatalf("%s: card left before the settle delay", tc.dir)
		}
		exiting := s.Cards[len(s.Cards)-1]
		if exiting.ID != top.ID || !exiting.Exiting {
			t.Fatalf("%s: expected %s to be exiting", tc.dir, top.ID)
		}
		if exiting.Pose.OffsetX != tc.offset || exiting.Pose.Rotation != tc.rotation {
			t.Errorf("%s: expected exit pose (%v, %v), got (%v, %v)",
				tc.dir, tc.offset, tc.rotation, exiting.Pose.OffsetX, exiting.Pose.Rotation)
		}

		pending := h.sched.pending()
		if len(pending) != 1 || pending[0].delay != 300*time.Millisecond {
			t.Fatalf("%s: expected one 300ms removal, got %d", tc.dir, len(pending))
		}

		h.sched.fireAll()
		s = h.ctrl.Snapshot()
		if len(s.Cards) != 4 {
			t.Fatalf("%s: expected 4 cards after settle, got %d", tc.dir, len(s.Cards))
		}
		assertStrictlyDecreasing(t, s.Cards)
		if s.Cards[len(s.Cards)-1].Order != 1 {
			t.Errorf("%s: orders not renumbered", tc.dir)
		}
		if h.svc.callCount() != 1 {
			t.Errorf("%s: no top-up expected above the floor", tc.dir)
		}
	}
}

func TestRemoveTop_EmptyStack(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeService{catalog: testCatalog("A")}, Config{})
	if h.ctrl.RemoveTop(Left) {
		t.Error("remove on empty stack should report false")
	}
	if len(h.sched.pending()) != 0 {
		t.Error("remove on empty stack scheduled a task")
	}
	if len(h.rec.verdicts) != 0 {
		t.Error("remove on empty stack recorded a verdict")
	}
}

func TestRemoveTop_InvalidDirection(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeService{catalog: testCatalog("A")}, Config{})
	if err := h.ctrl.Initialize(context.Background(), 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.ctrl.RemoveTop(Direction(0)) {
		t.Error("zero direction should be rejected")
	}
}

func TestRemoveTop_TopsUpAtFloor(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 2, 3} {
		h := newHarness(t, &fakeService{catalog: testCatalog("A", "B")}, Config{})
		if err := h.ctrl.Initialize(context.Background(), n); err != nil {
			t.Fatalf("n=%d: unexpected error: %v", n, err)
		}
		h.ctrl.RemoveTop(Right)
		h.sched.fireAll()

		want := n - 1 + 3
		s := waitFor(t, h.ctrl, func(s State) bool {
			return s.Phase == PhaseReady && len(s.Cards) == want
		})
		assertStrictlyDecreasing(t, s.Cards)
		if h.svc.callCount() != 2 {
			t.Errorf("n=%d: expected one top-up fetch, got %d calls", n, h.svc.callCount()-1)
		}
	}
}

func TestRemoveTop_NoTopUpAboveFloor(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeService{catalog: testCatalog("A")}, Config{})
	if err := h.ctrl.Initialize(context.Background(), 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.ctrl.RemoveTop(Left)
	h.sched.fireAll()

	s := h.ctrl.Snapshot()
	if len(s.Cards) != 3 || s.Phase != PhaseReady {
		t.Fatalf("expected 3 ready cards, got %d (%s)", len(s.Cards), s.Phase)
	}
	if h.svc.callCount() != 1 {
		t.Errorf("unexpected top-up fetch")
	}
}

func TestTopUp_Placement(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		placement Placement
		wantIDs   []string
	}{
		{TopUpOnTop, []string{"card-1", "card-2", "card-4", "card-5", "card-6"}},
		{TopUpUnder, []string{"card-4", "card-5", "card-6", "card-1", "card-2"}},
	} {
		h := newHarness(t, &fakeService{catalog: testCatalog("A")}, Config{Placement: tc.placement})
		if err := h.ctrl.Initialize(context.Background(), 3); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		h.ctrl.RemoveTop(Right)
		h.sched.fireAll()

		s := waitFor(t, h.ctrl, func(s State) bool {
			return s.Phase == PhaseReady && len(s.Cards) == 5
		})
		var ids []string
		for _, c := range s.Cards {
			ids = append(ids, c.ID)
		}
		if !reflect.DeepEqual(ids, tc.wantIDs) {
			t.Errorf("placement %d: expected %v, got %v", tc.placement, tc.wantIDs, ids)
		}
		assertStrictlyDecreasing(t, s.Cards)
	}
}

func TestTopUp_FailureKeepsSurvivors(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeService{catalog: testCatalog("A")}, Config{})
	if err := h.ctrl.Initialize(context.Background(), 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.svc.setErr(errors.New("offline"))
	h.ctrl.RemoveTop(Left)
	h.sched.fireAll()

	s := waitFor(t, h.ctrl, func(s State) bool { return s.Phase == PhaseError })
	if s.Message != UserMessage {
		t.Errorf("expected %q, got %q", UserMessage, s.Message)
	}
	if len(s.Cards) != 2 {
		t.Errorf("expected survivors to stay, got %d cards", len(s.Cards))
	}
	if _, ok := s.Top(); !ok {
		t.Error("survivors should remain playable")
	}
}

func TestRemoveTop_SecondSwipeTargetsNextCard(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeService{catalog: testCatalog("A", "B")}, Config{})
	if err := h.ctrl.Initialize(context.Background(), 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.ctrl.RemoveTop(Left)
	h.ctrl.RemoveTop(Right)

	s := h.ctrl.Snapshot()
	if !s.Cards[3].Exiting || !s.Cards[2].Exiting || s.Cards[1].Exiting {
		t.Fatalf("expected the two topmost cards to be exiting")
	}
	if s.Remaining() != 2 {
		t.Errorf("expected 2 playable cards, got %d", s.Remaining())
	}
	if len(h.rec.verdicts) != 2 || h.rec.verdicts[0].CardID == h.rec.verdicts[1].CardID {
		t.Fatalf("expected two verdicts for distinct cards, got %+v", h.rec.verdicts)
	}
	if h.rec.verdicts[0].Verdict != "pass" || h.rec.verdicts[1].Verdict != "like" {
		t.Errorf("unexpected verdicts %q %q", h.rec.verdicts[0].Verdict, h.rec.verdicts[1].Verdict)
	}
}

func TestInitialize_CancelsPendingRemovals(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeService{catalog: testCatalog("A")}, Config{})
	if err := h.ctrl.Initialize(context.Background(), 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.ctrl.RemoveTop(Left)
	if err := h.ctrl.Initialize(context.Background(), 4); err != nil {
		t.Fatalf("redeal failed: %v", err)
	}
	if n := h.sched.fireAll(); n != 0 {
		t.Errorf("expected stale removal to be stopped, %d ran", n)
	}
	if got := h.ctrl.Len(); got != 4 {
		t.Errorf("expected 4 cards, got %d", got)
	}
}

func TestClose_StopsPendingWork(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeService{catalog: testCatalog("A")}, Config{})
	if err := h.ctrl.Initialize(context.Background(), 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.ctrl.RemoveTop(Left)
	h.ctrl.Close()

	if n := h.sched.fireAll(); n != 0 {
		t.Errorf("expected pending removal to be stopped, %d ran", n)
	}
	if h.ctrl.RemoveTop(Left) || h.ctrl.Flip("card-1") {
		t.Error("closed controller accepted a mutation")
	}
	if err := h.ctrl.Initialize(context.Background(), 1); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestClose_AbortsInFlightDraw(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeService{catalog: testCatalog("A"), block: make(chan struct{})}, Config{})

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Initialize(context.Background(), 3) }()
	waitFor(t, h.ctrl, func(s State) bool { return s.Phase == PhaseLoading })

	h.ctrl.Close()
	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("draw did not return after Close")
	}
}

func TestUpdates_NotifiesAndCloses(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeService{catalog: testCatalog("A")}, Config{})
	ch := h.ctrl.Updates()

	if err := h.ctrl.Initialize(context.Background(), 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no update after initialize")
	}

	h.ctrl.Close()
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("updates channel not closed")
		}
	}
}

func TestParsePlacement(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Placement{"": TopUpOnTop, "top": TopUpOnTop, "Under": TopUpUnder, "bottom": TopUpUnder} {
		got, err := ParsePlacement(in)
		if err != nil || got != want {
			t.Errorf("ParsePlacement(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParsePlacement("sideways"); err == nil {
		t.Error("expected error for unknown placement")
	}
}
