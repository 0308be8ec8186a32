// Package jobs runs aggregated extractions in the background. Callers get a
// voucher back immediately and collect the result later.
package jobs

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/MemoFlux/MemoFluxServer/pkg/aigen"
	"github.com/MemoFlux/MemoFluxServer/pkg/extract"
	"github.com/MemoFlux/MemoFluxServer/pkg/kv"
)

var (
	ErrNotFound  = errors.New("jobs: voucher not found")
	ErrPending   = errors.New("jobs: result not ready")
	ErrQueueFull = errors.New("jobs: queue is full")
	ErrClosed    = errors.New("jobs: manager is closed")
)

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 64
	DefaultResultTTL = time.Hour
)

// Voucher identifies a submitted job.
type Voucher string

// Aggregator is satisfied by *aigen.Service.
type Aggregator interface {
	Aggregate(ctx context.Context, c extract.Content, tags []string) *aigen.Composite
}

// Request is one piece of content to process.
type Request struct {
	Requester string
	Content   extract.Content
	Tags      []string
}

type Config struct {
	Workers   int           `json:"workers" yaml:"workers"`
	QueueSize int           `json:"queue_size" yaml:"queue_size"`
	ResultTTL time.Duration `json:"result_ttl" yaml:"result_ttl"`

	// JobTimeout bounds a single job. Zero means no limit.
	JobTimeout time.Duration `json:"job_timeout" yaml:"job_timeout"`

	Now    func() time.Time `json:"-" yaml:"-"`
	Logger *slog.Logger     `json:"-" yaml:"-"`
}

// record is the stored state of a job.
type record struct {
	Done        bool             `json:"done"`
	SubmittedAt time.Time        `json:"submitted_at"`
	Result      *aigen.Composite `json:"result,omitempty"`
}

type job struct {
	voucher Voucher
	req     Request
}

// Manager owns a bounded pool of workers.
type Manager struct {
	agg   Aggregator
	store kv.Store
	cfg   Config

	queue  chan job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	seq    atomic.Uint64
	mu     sync.RWMutex
	closed bool

	// recMu makes Release and the final save each a single step, so a
	// released job stays released.
	recMu sync.Mutex
}

// New starts cfg.Workers workers. Call Close to stop them.
func New(agg Aggregator, store kv.Store, cfg Config) *Manager {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = DefaultResultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		agg:    agg,
		store:  store,
		cfg:    cfg,
		queue:  make(chan job, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for range cfg.Workers {
		m.wg.Add(1)
		go m.worker()
	}
	return m
}

func key(v Voucher) kv.Key { return kv.Key{"job", string(v)} }

func (m *Manager) voucher(requester string) Voucher {
	ts := strconv.FormatInt(m.cfg.Now().UnixNano(), 10)
	seq := strconv.FormatUint(m.seq.Add(1), 10)
	sum := sha256.Sum256([]byte(requester + ":" + ts + ":" + seq))
	return Voucher(hex.EncodeToString(sum[:]))
}

// Submit queues req and returns its voucher.
func (m *Manager) Submit(ctx context.Context, req Request) (Voucher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", ErrClosed
	}

	v := m.voucher(req.Requester)
	if err := m.save(ctx, v, &record{SubmittedAt: m.cfg.Now().UTC()}); err != nil {
		return "", err
	}
	select {
	case m.queue <- job{voucher: v, req: req}:
	default:
		m.store.Delete(ctx, key(v))
		return "", ErrQueueFull
	}
	m.cfg.Logger.DebugContext(ctx, "job submitted", "voucher", v, "requester", req.Requester)
	return v, nil
}

// Status reports whether the job has finished.
func (m *Manager) Status(ctx context.Context, v Voucher) (bool, error) {
	rec, err := m.load(ctx, v)
	if err != nil {
		return false, err
	}
	return rec.Done, nil
}

// Result returns the composite of a finished job, or ErrPending.
func (m *Manager) Result(ctx context.Context, v Voucher) (*aigen.Composite, error) {
	rec, err := m.load(ctx, v)
	if err != nil {
		return nil, err
	}
	if !rec.Done {
		return nil, ErrPending
	}
	return rec.Result, nil
}

// Release deletes a stored job.
func (m *Manager) Release(ctx context.Context, v Voucher) error {
	m.recMu.Lock()
	defer m.recMu.Unlock()
	if _, err := m.load(ctx, v); err != nil {
		return err
	}
	return m.store.Delete(ctx, key(v))
}

// Close stops accepting jobs, cancels running ones and waits for the
// workers to exit.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
	return nil
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for j := range m.queue {
		if m.ctx.Err() != nil {
			continue
		}
		m.run(j)
	}
}

func (m *Manager) run(j job) {
	ctx := m.ctx
	if m.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.JobTimeout)
		defer cancel()
	}
	start := time.Now()
	res := m.agg.Aggregate(ctx, j.req.Content, j.req.Tags)

	m.recMu.Lock()
	defer m.recMu.Unlock()
	rec, err := m.load(m.ctx, j.voucher)
	if errors.Is(err, ErrNotFound) {
		m.cfg.Logger.Debug("job released before completion", "voucher", j.voucher)
		return
	}
	if err != nil {
		rec = &record{SubmittedAt: m.cfg.Now().UTC()}
	}
	rec.Done = true
	rec.Result = res
	if err := m.save(m.ctx, j.voucher, rec); err != nil {
		m.cfg.Logger.Error("store job result", "voucher", j.voucher, "error", err)
		return
	}
	m.cfg.Logger.Info("job finished", "voucher", j.voucher, "duration", time.Since(start), "errors", len(res.Errors))
}

func (m *Manager) save(ctx context.Context, v Voucher, rec *record) error {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("jobs: encode %s: %w", v, err)
	}
	if err := m.store.SetWithTTL(ctx, key(v), buf.Bytes(), m.cfg.ResultTTL); err != nil {
		return fmt.Errorf("jobs: store %s: %w", v, err)
	}
	return nil
}

func (m *Manager) load(ctx context.Context, v Voucher) (*record, error) {
	data, err := m.store.Get(ctx, key(v))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	var rec record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("jobs: decode %s: %w", v, err)
	}
	return &rec, nil
}
