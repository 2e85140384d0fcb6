package testutil

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/ThatOtherAndrew/Turntable/internal/models"
)

// Fetcher serves asset bytes from memory. A name listed in Block waits on
// its channel before answering.
type Fetcher struct {
	mu     sync.Mutex
	Assets map[string][]byte
	Block  map[string]chan struct{}
	calls  []string
}

func NewFetcher(assets map[string][]byte) *Fetcher {
	return &Fetcher{Assets: assets, Block: make(map[string]chan struct{})}
}

func (f *Fetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	gate := f.Block[name]
	data, ok := f.Assets[name]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, fs.ErrNotExist)
	}
	return data, nil
}

func (f *Fetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

var ErrMalformed = errors.New("malformed asset")

// Decoder turns any payload into an empty-mesh model, except the literal
// payload "garbage" which fails.
type Decoder struct{}

func (Decoder) Decode(name string, data []byte) (*models.Model, error) {
	if string(data) == "garbage" {
		return nil, ErrMalformed
	}
	return models.NewModel(name, models.Mesh{
		Vertices: []models.Vertex{{}, {}, {}},
		Indices:  []uint32{0, 1, 2},
	}), nil
}

// Breakfast is the stock asset set: tomato and latte decode, espresso does
// not.
func Breakfast() map[string][]byte {
	return map[string][]byte{
		"tomato":   []byte("tomato"),
		"espresso": []byte("garbage"),
		"latte":    []byte("latte"),
	}
}
