package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/MemoFlux/MemoFluxServer/pkg/genx"
)

// Assembler turns the growing JSON text of a streamed document into
// normalized snapshots.
//
// Tracked fields are wrapped as {"value", "state"}. A null value is Pending,
// the key being written is Incomplete and keys before it are Complete. States
// never move backwards between snapshots.
type Assembler struct {
	schema *Schema

	buf    strings.Builder
	states map[string]State
	last   []byte
}

func NewAssembler(s *Schema) *Assembler {
	return &Assembler{
		schema: s,
		states: make(map[string]State),
	}
}

// Feed appends delta and returns the snapshot if it changed since the last
// one returned. A prefix that cannot be repaired yet yields no snapshot.
func (a *Assembler) Feed(delta string) (map[string]any, bool) {
	a.buf.WriteString(delta)
	doc, err := a.snapshot(false)
	if err != nil || doc == nil {
		return nil, false
	}
	return a.changed(doc)
}

// Seal returns the final snapshot: every tracked field is Complete and
// declared fields that never arrived are filled with their defaults. It
// reports false when the final snapshot equals the last one returned.
func (a *Assembler) Seal() (map[string]any, bool, error) {
	doc, err := a.snapshot(true)
	if err != nil {
		return nil, false, err
	}
	if doc == nil {
		return nil, false, fmt.Errorf("%w: empty %s document", ErrConversion, a.schema.Name)
	}
	doc, changed := a.changed(doc)
	return doc, changed, nil
}

// Text returns everything fed so far.
func (a *Assembler) Text() string { return a.buf.String() }

func (a *Assembler) changed(doc map[string]any) (map[string]any, bool) {
	b, err := json.Marshal(doc)
	if err != nil || bytes.Equal(b, a.last) {
		return nil, false
	}
	a.last = b
	return doc, true
}

func (a *Assembler) snapshot(final bool) (map[string]any, error) {
	text := genx.StripCodeFence(a.buf.String())
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	fixed, err := genx.RepairJSON(text)
	if err != nil {
		return nil, fmt.Errorf("%w: repair %s document: %w", ErrConversion, a.schema.Name, err)
	}
	keys, err := topLevelKeys(fixed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s document: %w", ErrConversion, a.schema.Name, err)
	}
	dec := json.NewDecoder(strings.NewReader(fixed))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s document: %w", ErrConversion, a.schema.Name, err)
	}

	if final {
		for name := range a.schema.Fields {
			if _, ok := doc[name]; !ok {
				doc[name] = nil
			}
		}
		// Defaults apply before the fields are sealed as Complete.
		NormalizeFinal(doc, a.schema)
	}

	for i, name := range keys {
		f, ok := a.schema.Fields[name]
		if !ok || !f.Tracked {
			continue
		}
		v := doc[name]
		var st State
		switch {
		case final:
			st = Complete
		case v == nil:
			st = Pending
		case i == len(keys)-1:
			st = Incomplete
		default:
			st = Complete
		}
		st = a.states[name].Advance(st)
		a.states[name] = st
		doc[name] = map[string]any{"value": v, "state": st.String()}
	}
	if final {
		for name, f := range a.schema.Fields {
			if _, wrapped := asWrapper(doc[name]); f.Tracked && !wrapped {
				doc[name] = map[string]any{"value": doc[name], "state": Complete.String()}
			}
		}
	}
	return Normalize(doc, a.schema), nil
}

// topLevelKeys returns the keys of a JSON object in document order.
func topLevelKeys(s string) ([]string, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("not a JSON object")
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Decode converts a snapshot into the typed chunk P.
func Decode[P any](doc map[string]any) (P, error) {
	var p P
	b, err := json.Marshal(doc)
	if err != nil {
		return p, err
	}
	err = json.Unmarshal(b, &p)
	return p, err
}

// StreamJSON opens a generator stream and yields a typed chunk for every
// change of the assembled document, ending with a sealed chunk. Closing the
// returned stream cancels the generator request.
func StreamJSON[P any](ctx context.Context, open func(context.Context) (genx.Stream, error), s *Schema) (ChunkStream[P], error) {
	ctx, cancel := context.WithCancel(ctx)
	gs, err := open(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", ErrBackend, err)
	}
	return &jsonStream[P]{
		ctx:    ctx,
		cancel: cancel,
		gs:     gs,
		asm:    NewAssembler(s),
	}, nil
}

type jsonStream[P any] struct {
	ctx    context.Context
	cancel context.CancelFunc
	gs     genx.Stream
	asm    *Assembler

	mu     sync.Mutex
	err    error
	sealed bool
}

func (s *jsonStream[P]) Next() (P, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero P
	if s.err != nil {
		return zero, s.err
	}
	for {
		chunk, err := s.gs.Next()
		if err != nil {
			if errors.Is(err, genx.ErrDone) {
				return s.seal()
			}
			if cerr := s.ctx.Err(); cerr != nil {
				err = cerr
			}
			return zero, s.fail(fmt.Errorf("%w: %w", ErrBackend, err))
		}
		t, ok := chunk.Part.(genx.Text)
		if !ok {
			continue
		}
		doc, changed := s.asm.Feed(string(t))
		if !changed {
			continue
		}
		p, err := Decode[P](doc)
		if err != nil {
			// A half-written value may not fit its type yet.
			continue
		}
		return p, nil
	}
}

func (s *jsonStream[P]) seal() (P, error) {
	var zero P
	doc, changed, err := s.asm.Seal()
	if err != nil {
		return zero, s.fail(err)
	}
	if !changed {
		return zero, s.fail(ErrDone)
	}
	p, err := Decode[P](doc)
	if err != nil {
		return zero, s.fail(fmt.Errorf("%w: %w", ErrConversion, err))
	}
	s.err = ErrDone
	s.sealed = true
	s.cancel()
	return p, nil
}

// Sealed reports whether the last chunk returned was the final one.
func (s *jsonStream[P]) Sealed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sealed
}

func (s *jsonStream[P]) fail(err error) error {
	s.err = err
	s.cancel()
	s.gs.Close()
	return err
}

func (s *jsonStream[P]) Close() error {
	s.cancel()
	return s.gs.Close()
}
