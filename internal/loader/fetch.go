package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Extensions tried, in order, when an asset name has none.
var Extensions = []string{".glb", ".gltf"}

// FileFetcher reads assets from a directory.
type FileFetcher struct {
	Root string
}

func (f FileFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := f.Resolve(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// Resolve returns the file an asset name maps to.
func (f FileFetcher) Resolve(name string) (string, error) {
	if filepath.Ext(name) != "" {
		return filepath.Join(f.Root, name), nil
	}
	for _, ext := range Extensions {
		path := filepath.Join(f.Root, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no %s file for %q in %s: %w",
		strings.Join(Extensions, "/"), name, f.Root, fs.ErrNotExist)
}

// AssetName maps a file path back to its asset name, or "" when the file is
// not a model asset.
func AssetName(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	for _, e := range Extensions {
		if strings.EqualFold(ext, e) {
			return strings.TrimSuffix(base, ext)
		}
	}
	return ""
}

// HTTPFetcher downloads <BaseURL>/<name>.glb.
type HTTPFetcher struct {
	BaseURL string
	Client  *http.Client
}

var errStatus = errors.New("unexpected status")

func (f HTTPFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	if filepath.Ext(name) == "" {
		name += Extensions[0]
	}
	u, err := url.JoinPath(f.BaseURL, name)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w %s from %s", errStatus, resp.Status, u)
	}
	return io.ReadAll(resp.Body)
}
