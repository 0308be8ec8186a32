package kv

import (
	"bytes"
	"context"
	"iter"
	"sort"
	"sync"
	"time"
)

type memoryItem struct {
	value   []byte
	expires time.Time // zero means never
}

func (it memoryItem) live(now time.Time) bool {
	return it.expires.IsZero() || now.Before(it.expires)
}

var _ Store = (*Memory)(nil)

// Memory is an in-memory Store. It is safe for concurrent use. Expired
// entries are dropped lazily on access.
type Memory struct {
	mu   sync.RWMutex
	data map[string]memoryItem
	opts *Options

	// Now returns the current time. It defaults to time.Now.
	Now func() time.Time
}

// NewMemory creates a new in-memory Store. Pass nil for default options.
func NewMemory(opts *Options) *Memory {
	return &Memory{
		data: make(map[string]memoryItem),
		opts: opts,
		Now:  time.Now,
	}
}

func (m *Memory) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

func (m *Memory) Get(_ context.Context, key Key) ([]byte, error) {
	k := string(m.opts.encode(key))
	m.mu.RLock()
	it, ok := m.data[k]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if !it.live(m.now()) {
		m.mu.Lock()
		if cur, ok := m.data[k]; ok && !cur.live(m.now()) {
			delete(m.data, k)
		}
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	return bytes.Clone(it.value), nil
}

func (m *Memory) Set(ctx context.Context, key Key, value []byte) error {
	return m.SetWithTTL(ctx, key, value, 0)
}

func (m *Memory) SetWithTTL(_ context.Context, key Key, value []byte, ttl time.Duration) error {
	it := memoryItem{value: bytes.Clone(value)}
	if it.value == nil {
		it.value = []byte{}
	}
	if ttl > 0 {
		it.expires = m.now().Add(ttl)
	}
	k := string(m.opts.encode(key))
	m.mu.Lock()
	m.data[k] = it
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key Key) error {
	k := string(m.opts.encode(key))
	m.mu.Lock()
	delete(m.data, k)
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(_ context.Context, prefix Key) iter.Seq2[Entry, error] {
	p := m.opts.encode(prefix)
	// The separator keeps prefix "a:b" from matching "a:bc". An empty
	// prefix scans everything.
	var prefixBytes []byte
	if len(p) > 0 {
		prefixBytes = append(p, m.opts.sep())
	}

	type match struct {
		key string
		val []byte
	}
	now := m.now()
	m.mu.RLock()
	var matches []match
	for k, it := range m.data {
		if it.live(now) && bytes.HasPrefix([]byte(k), prefixBytes) {
			matches = append(matches, match{k, bytes.Clone(it.value)})
		}
	}
	m.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].key < matches[j].key
	})

	return func(yield func(Entry, error) bool) {
		for _, mt := range matches {
			if !yield(Entry{Key: m.opts.decode([]byte(mt.key)), Value: mt.val}, nil) {
				return
			}
		}
	}
}

func (m *Memory) BatchDelete(_ context.Context, keys []Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, string(m.opts.encode(key)))
	}
	return nil
}

func (m *Memory) Close() error {
	return nil
}
