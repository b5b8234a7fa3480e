package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"number-stock-alerts/internal/marketplace"
	"number-stock-alerts/internal/notify"
	"number-stock-alerts/internal/state"
)

type fakeProber struct {
	snap marketplace.Snapshot
	err  error
}

func (f *fakeProber) FetchStats(ctx context.Context) (marketplace.Snapshot, error) {
	return f.snap, f.err
}

type fakeAllocator struct {
	available int
	calls     int
}

func (f *fakeAllocator) BuyNumber(ctx context.Context) (marketplace.PurchaseRecord, error) {
	f.calls++
	if f.available <= 0 {
		return marketplace.PurchaseRecord{}, marketplace.ErrNoNumbers
	}
	f.available--
	return marketplace.PurchaseRecord{
		TransactionID: "tz",
		Number:        "+36300000000",
		Service:       "foodora",
		Country:       36,
		PurchasedAt:   time.Now().UTC(),
	}, nil
}

type memStore struct {
	st      state.NotificationState
	loadErr error
	saveErr error
	saves   int
}

func (m *memStore) Load(ctx context.Context) (state.NotificationState, error) {
	if m.loadErr != nil {
		return state.NotificationState{}, m.loadErr
	}
	return m.st, nil
}

func (m *memStore) Save(ctx context.Context, st state.NotificationState) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.st = st
	return nil
}

type memLog struct {
	records []marketplace.PurchaseRecord
}

func (m *memLog) Append(ctx context.Context, records []marketplace.PurchaseRecord) error {
	m.records = append(m.records, records...)
	return nil
}

func (m *memLog) ListRecent(ctx context.Context, limit int) ([]marketplace.PurchaseRecord, error) {
	return m.records, nil
}

type recordingNotifier struct {
	notes []notify.Notification
	err   error
}

func (r *recordingNotifier) Notify(ctx context.Context, note notify.Notification) error {
	r.notes = append(r.notes, note)
	return r.err
}

func newTestController(prober marketplace.StockProber, alloc marketplace.NumberAllocator, notifier notify.Notifier, store state.Store, log state.PurchaseLog, quantity int) *Controller {
	var purchaser *Purchaser
	if alloc != nil {
		purchaser = NewPurchaser(alloc, log, 0, zerolog.Nop())
	}
	c := New(Options{
		Service:   "foodora",
		Country:   36,
		Quantity:  quantity,
		Intervals: testIntervals,
	}, prober, purchaser, notifier, store, zerolog.Nop())
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }
	return c
}

func TestControllerUnavailableTouchesNothing(t *testing.T) {
	alloc := &fakeAllocator{available: 5}
	notifier := &recordingNotifier{}
	store := &memStore{}

	c := newTestController(&fakeProber{snap: marketplace.Snapshot{}}, alloc, notifier, store, &memLog{}, 2)

	out, err := c.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if alloc.calls != 0 {
		t.Fatal("不可用时不应调用 Purchaser")
	}
	if len(notifier.notes) != 0 {
		t.Fatal("不可用时不应调用 Notifier")
	}
	if out.NextDelay != testIntervals.Poll {
		t.Fatalf("expected poll delay, got %v", out.NextDelay)
	}
	if store.saves != 1 {
		t.Fatalf("state should be persisted once, got %d saves", store.saves)
	}
}

func TestControllerFirstSightingPurchasesAndNotifies(t *testing.T) {
	alloc := &fakeAllocator{available: 10}
	notifier := &recordingNotifier{}
	store := &memStore{}
	log := &memLog{}

	c := newTestController(&fakeProber{snap: marketplace.Snapshot{Available: true, Count: 5}}, alloc, notifier, store, log, 2)

	out, err := c.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if alloc.calls != 2 || len(out.Purchased) != 2 {
		t.Fatalf("expected exactly the configured batch, calls=%d purchased=%d", alloc.calls, len(out.Purchased))
	}
	if len(notifier.notes) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(notifier.notes))
	}
	if !out.Notified {
		t.Fatal("outcome should report the delivered notification")
	}
	if got := notifier.notes[0]; len(got.Purchased) != 2 || got.Count != 5 {
		t.Fatalf("notification should itemise purchases: %+v", got)
	}
	if len(log.records) != 2 {
		t.Fatalf("purchase log should receive the batch, got %d", len(log.records))
	}
	if store.st.LastNotifiedAt == nil || !store.st.WasAvailable {
		t.Fatalf("persisted state incorrect: %+v", store.st)
	}
}

func TestControllerStockExhaustedMidBatch(t *testing.T) {
	alloc := &fakeAllocator{available: 1}
	notifier := &recordingNotifier{}

	c := newTestController(&fakeProber{snap: marketplace.Snapshot{Available: true, Count: 5}}, alloc, notifier, &memStore{}, &memLog{}, 3)

	out, err := c.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(out.Purchased) != 1 {
		t.Fatalf("售罄后应返回已获得的部分: %d", len(out.Purchased))
	}
	if alloc.calls != 2 {
		t.Fatalf("should stop right after the exhaustion sentinel, calls=%d", alloc.calls)
	}
	if len(notifier.notes) != 1 {
		t.Fatal("notification must still go out reporting the partial batch")
	}
}

func TestControllerNotifyStillSentWithZeroPurchases(t *testing.T) {
	alloc := &fakeAllocator{available: 0}
	notifier := &recordingNotifier{}

	c := newTestController(&fakeProber{snap: marketplace.Snapshot{Available: true, Count: 1}}, alloc, notifier, &memStore{}, &memLog{}, 2)

	out, _ := c.RunOnce(context.Background())
	if len(out.Purchased) != 0 {
		t.Fatal("nothing should be purchased")
	}
	if len(notifier.notes) != 1 {
		t.Fatal("通知应无条件发送, 即使购买结果为空")
	}
}

func TestControllerPurchasingDisabled(t *testing.T) {
	notifier := &recordingNotifier{}

	c := newTestController(&fakeProber{snap: marketplace.Snapshot{Available: true, Count: 1}}, nil, notifier, &memStore{}, nil, 2)

	out, _ := c.RunOnce(context.Background())
	if len(out.Purchased) != 0 {
		t.Fatal("disabled purchasing must not allocate")
	}
	if len(notifier.notes) != 1 {
		t.Fatal("notification should still be sent")
	}
}

func TestControllerNotifyFailureStillAdvancesState(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("smtp down")}
	store := &memStore{}

	c := newTestController(&fakeProber{snap: marketplace.Snapshot{Available: true, Count: 1}}, nil, notifier, store, nil, 0)

	out, err := c.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("notify failure must not abort the controller: %v", err)
	}
	if out.Notified {
		t.Fatal("outcome should report the failed delivery")
	}
	if store.st.LastNotifiedAt == nil {
		t.Fatal("last_notified_at is set by the attempt, successful or not")
	}
}

func TestControllerNotificationsDisabled(t *testing.T) {
	store := &memStore{}

	c := newTestController(&fakeProber{snap: marketplace.Snapshot{Available: true, Count: 1}}, nil, nil, store, nil, 0)

	out, _ := c.RunOnce(context.Background())
	if out.Notified {
		t.Fatal("disabled notifications report not-notified")
	}
	if store.st.LastNotifiedAt == nil {
		t.Fatal("cooldown machine still advances when delivery is suppressed")
	}
}

func TestControllerProbeErrorIsFatalForRunOnce(t *testing.T) {
	store := &memStore{}

	c := newTestController(&fakeProber{err: errors.New("connection refused")}, nil, &recordingNotifier{}, store, nil, 0)

	if _, err := c.RunOnce(context.Background()); err == nil {
		t.Fatal("无法访问 marketplace 时 RunOnce 应返回错误")
	}
	if store.saves != 0 {
		t.Fatal("state must be untouched when the probe fails")
	}
}

func TestControllerTickDegradesProbeError(t *testing.T) {
	last := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).Add(-2 * time.Hour)
	store := &memStore{st: state.NotificationState{LastNotifiedAt: &last, WasAvailable: true}}

	c := newTestController(&fakeProber{err: errors.New("timeout")}, nil, &recordingNotifier{}, store, nil, 0)

	delay, err := c.Tick(context.Background())
	if err != nil {
		t.Fatalf("long-running tick must not propagate probe errors: %v", err)
	}
	if delay != testIntervals.Poll {
		t.Fatalf("degraded tick should fall back to the poll interval, got %v", delay)
	}
	if store.st.WasAvailable {
		t.Fatal("degraded snapshot counts as unavailable")
	}
	if store.st.LastNotifiedAt != nil {
		t.Fatal("stale timestamp should be cleared on the degraded pass")
	}
}

func TestControllerCorruptStateDegradesToZero(t *testing.T) {
	notifier := &recordingNotifier{}
	store := &memStore{loadErr: errors.New("parse state: bad")}

	c := newTestController(&fakeProber{snap: marketplace.Snapshot{Available: true, Count: 1}}, nil, notifier, store, nil, 0)

	if _, err := c.RunOnce(context.Background()); err != nil {
		t.Fatalf("corrupt state must degrade, not fail: %v", err)
	}
	if len(notifier.notes) != 1 {
		t.Fatal("zero state means a first sighting")
	}
}

func TestControllerSaveFailureSurfacedNotFatal(t *testing.T) {
	notifier := &recordingNotifier{}
	store := &memStore{saveErr: errors.New("disk full")}

	c := newTestController(&fakeProber{snap: marketplace.Snapshot{Available: true, Count: 1}}, nil, notifier, store, nil, 0)

	out, err := c.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("save failure must not roll back the cycle: %v", err)
	}
	if len(notifier.notes) != 1 || !out.Notified {
		t.Fatal("notification already delivered stays delivered")
	}
}
