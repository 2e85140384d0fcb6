// Package loader fetches and decodes model assets off the render path.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ThatOtherAndrew/Turntable/internal/logging"
	"github.com/ThatOtherAndrew/Turntable/internal/models"
	"golang.org/x/sync/errgroup"
)

var (
	ErrAssetLoad   = errors.New("asset load failed")
	ErrAssetDecode = errors.New("asset decode failed")
)

// AssetLoadError reports that the bytes of an asset could not be fetched.
type AssetLoadError struct {
	Name string
	Err  error
}

func (e *AssetLoadError) Error() string {
	return fmt.Sprintf("load %q: %v", e.Name, e.Err)
}

func (e *AssetLoadError) Unwrap() error { return e.Err }

func (e *AssetLoadError) Is(target error) bool { return target == ErrAssetLoad }

// AssetDecodeError reports malformed asset data.
type AssetDecodeError struct {
	Name string
	Err  error
}

func (e *AssetDecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v", e.Name, e.Err)
}

func (e *AssetDecodeError) Unwrap() error { return e.Err }

func (e *AssetDecodeError) Is(target error) bool { return target == ErrAssetDecode }

type Fetcher interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

type Decoder interface {
	Decode(name string, data []byte) (*models.Model, error)
}

const DefaultConcurrency = 4

type Loader struct {
	fetch       Fetcher
	decode      Decoder
	concurrency int
}

type Option func(*Loader)

// WithConcurrency bounds how many assets LoadAll fetches at once.
func WithConcurrency(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

func New(f Fetcher, d Decoder, opts ...Option) *Loader {
	l := &Loader{fetch: f, decode: d, concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Future is the pending result of a Load.
type Future struct {
	name  string
	done  chan struct{}
	model *models.Model
	err   error
}

func (f *Future) Name() string { return f.name }

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the load settles or ctx ends. A ctx ending here does not
// cancel the load itself.
func (f *Future) Wait(ctx context.Context) (*models.Model, error) {
	select {
	case <-f.done:
		return f.model, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Load starts fetching and decoding name on its own goroutine.
func (l *Loader) Load(ctx context.Context, name string) *Future {
	f := &Future{name: name, done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.model, f.err = l.load(ctx, name)
	}()
	return f
}

func (l *Loader) load(ctx context.Context, name string) (*models.Model, error) {
	log := logging.Logger().With("asset", name)
	log.Debug("fetching asset")

	data, err := l.fetch.Fetch(ctx, name)
	if err != nil {
		var loadErr *AssetLoadError
		if errors.As(err, &loadErr) {
			return nil, err
		}
		return nil, &AssetLoadError{Name: name, Err: err}
	}

	m, err := l.decode.Decode(name, data)
	if err != nil {
		var decErr *AssetDecodeError
		if errors.As(err, &decErr) {
			return nil, err
		}
		return nil, &AssetDecodeError{Name: name, Err: err}
	}
	log.Debug("asset decoded", "vertices", len(m.Mesh().Vertices), "textured", m.Texture() != nil)
	return m, nil
}

// Results collects the outcome of every asset of a LoadAll.
type Results struct {
	mu     sync.Mutex
	Models map[string]*models.Model
	Errors map[string]error
}

func newResults() *Results {
	return &Results{
		Models: make(map[string]*models.Model),
		Errors: make(map[string]error),
	}
}

func (r *Results) record(name string, m *models.Model, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.Errors[name] = err
		return
	}
	r.Models[name] = m
}

// Loaded returns the names that loaded successfully, sorted.
func (r *Results) Loaded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.Models))
	for n := range r.Models {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Failed returns the names that failed, sorted.
func (r *Results) Failed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.Errors))
	for n := range r.Errors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LoadAll loads every name concurrently and waits for all of them to settle.
// onLoaded, if non-nil, runs for each success as soon as that asset is ready,
// from the loading goroutine. A failure never stops the other loads.
func (l *Loader) LoadAll(ctx context.Context, names []string, onLoaded func(name string, m *models.Model)) *Results {
	res := newResults()
	var g errgroup.Group
	g.SetLimit(l.concurrency)

	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		g.Go(func() error {
			m, err := l.load(ctx, name)
			res.record(name, m, err)
			if err != nil {
				logging.Logger().Warn("asset unavailable", "asset", name, "err", err)
				return nil
			}
			if onLoaded != nil {
				onLoaded(name, m)
			}
			return nil
		})
	}
	_ = g.Wait()
	return res
}
