package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MemoFlux/MemoFluxServer/pkg/aigen"
	"github.com/MemoFlux/MemoFluxServer/pkg/extract"
	"github.com/MemoFlux/MemoFluxServer/pkg/information"
	"github.com/MemoFlux/MemoFluxServer/pkg/jobs"
	"github.com/MemoFlux/MemoFluxServer/pkg/knowledge"
	"github.com/MemoFlux/MemoFluxServer/pkg/kv"
	"github.com/MemoFlux/MemoFluxServer/pkg/schedule"
)

type blockingAggregator struct {
	started chan string
	release chan struct{}
}

func newBlockingAggregator() *blockingAggregator {
	return &blockingAggregator{
		started: make(chan string, 16),
		release: make(chan struct{}),
	}
}

func (a *blockingAggregator) Aggregate(ctx context.Context, c extract.Content, tags []string) *aigen.Composite {
	a.started <- c.String()
	select {
	case <-a.release:
	case <-ctx.Done():
	}
	k := knowledge.Empty()
	k.Title = "title of " + c.String()
	k.Tags = tags
	return &aigen.Composite{
		Schedule:    schedule.Empty(),
		Knowledge:   k,
		Information: information.Empty(),
		Errors:      map[string]string{"schedule": "boom"},
	}
}

func waitDone(t *testing.T, m *jobs.Manager, v jobs.Voucher) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		done, err := m.Status(context.Background(), v)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if done {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job did not finish")
}

func TestSubmitResult(t *testing.T) {
	ctx := context.Background()
	agg := newBlockingAggregator()
	m := jobs.New(agg, kv.NewMemory(nil), jobs.Config{Workers: 2})
	defer m.Close()

	v, err := m.Submit(ctx, jobs.Request{
		Requester: "alice",
		Content:   extract.NewText("buy milk tomorrow"),
		Tags:      []string{"home"},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(v) != 64 {
		t.Fatalf("voucher %q is not a hex sha256", v)
	}
	<-agg.started

	done, err := m.Status(ctx, v)
	if err != nil || done {
		t.Fatalf("Status = %v, %v; want pending", done, err)
	}
	if _, err := m.Result(ctx, v); !errors.Is(err, jobs.ErrPending) {
		t.Fatalf("Result while running: got %v", err)
	}

	close(agg.release)
	waitDone(t, m, v)

	res, err := m.Result(ctx, v)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if res.Knowledge.Title != "title of buy milk tomorrow" {
		t.Errorf("Knowledge.Title = %q", res.Knowledge.Title)
	}
	if len(res.Knowledge.Tags) != 1 || res.Knowledge.Tags[0] != "home" {
		t.Errorf("Knowledge.Tags = %v", res.Knowledge.Tags)
	}
	if res.Information.PostType != information.OtherPost {
		t.Errorf("PostType = %q", res.Information.PostType)
	}
	if res.Errors["schedule"] != "boom" {
		t.Errorf("Errors = %v", res.Errors)
	}

	if err := m.Release(ctx, v); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := m.Result(ctx, v); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("Result after release: got %v", err)
	}
}

// hookStore calls beforeSet ahead of every SetWithTTL.
type hookStore struct {
	kv.Store
	beforeSet func()
}

func (s *hookStore) SetWithTTL(ctx context.Context, key kv.Key, value []byte, ttl time.Duration) error {
	if s.beforeSet != nil {
		s.beforeSet()
	}
	return s.Store.SetWithTTL(ctx, key, value, ttl)
}

func TestReleaseDuringSave(t *testing.T) {
	ctx := context.Background()
	agg := newBlockingAggregator()
	store := &hookStore{Store: kv.NewMemory(nil)}
	m := jobs.New(agg, store, jobs.Config{Workers: 1})
	defer m.Close()

	v, err := m.Submit(ctx, jobs.Request{Requester: "alice", Content: extract.NewText("buy milk tomorrow")})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-agg.started

	released := make(chan error, 1)
	saved := make(chan struct{})
	store.beforeSet = func() {
		// The worker is about to write the result. A Release issued now
		// must wait for that write instead of slipping in ahead of it.
		go func() { released <- m.Release(ctx, v) }()
		select {
		case err := <-released:
			released <- err
		case <-time.After(100 * time.Millisecond):
		}
		close(saved)
	}
	close(agg.release)

	select {
	case <-saved:
	case <-time.After(5 * time.Second):
		t.Fatal("result was never saved")
	}
	if err := <-released; err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := m.Status(ctx, v); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("Status after release: got %v, want ErrNotFound", err)
	}
}

func TestUnknownVoucher(t *testing.T) {
	ctx := context.Background()
	m := jobs.New(newBlockingAggregator(), kv.NewMemory(nil), jobs.Config{})
	defer m.Close()

	if _, err := m.Status(ctx, "nope"); !errors.Is(err, jobs.ErrNotFound) {
		t.Errorf("Status: got %v", err)
	}
	if _, err := m.Result(ctx, "nope"); !errors.Is(err, jobs.ErrNotFound) {
		t.Errorf("Result: got %v", err)
	}
	if err := m.Release(ctx, "nope"); !errors.Is(err, jobs.ErrNotFound) {
		t.Errorf("Release: got %v", err)
	}
}

func TestQueueFull(t *testing.T) {
	ctx := context.Background()
	agg := newBlockingAggregator()
	m := jobs.New(agg, kv.NewMemory(nil), jobs.Config{Workers: 1, QueueSize: 1})
	defer m.Close()
	defer close(agg.release)

	req := jobs.Request{Requester: "bob", Content: extract.NewText("some note")}
	first, err := m.Submit(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	<-agg.started
	second, err := m.Submit(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatal("vouchers collide")
	}
	if _, err := m.Submit(ctx, req); !errors.Is(err, jobs.ErrQueueFull) {
		t.Fatalf("third Submit: got %v, want ErrQueueFull", err)
	}
}

func TestSubmitAfterClose(t *testing.T) {
	m := jobs.New(newBlockingAggregator(), kv.NewMemory(nil), jobs.Config{})
	m.Close()
	if _, err := m.Submit(context.Background(), jobs.Request{Content: extract.NewText("late note")}); !errors.Is(err, jobs.ErrClosed) {
		t.Fatalf("got %v, want ErrClosed", err)
	}
}

func TestResultExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)
	store := kv.NewMemory(nil)
	store.Now = func() time.Time { return now }
	m := jobs.New(newBlockingAggregator(), store, jobs.Config{ResultTTL: time.Minute})
	defer m.Close()

	v, err := m.Submit(ctx, jobs.Request{Content: extract.NewText("expiring note")})
	if err != nil {
		t.Fatal(err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := m.Status(ctx, v); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
