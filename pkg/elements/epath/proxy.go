package epath

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/randalmurphal/elements/pkg/elements/observability"
)

// acceleratorEnv lists the variables cleared before the gateway starts so
// that worker processes using it never claim accelerator devices.
var acceleratorEnv = []string{"CUDA_VISIBLE_DEVICES", "TPU_VISIBLE_CHIPS"}

// Proxy serves paths of a distributed filesystem through a Gateway that is
// dialed lazily on first use and then shared.
type Proxy struct {
	dial func() (Gateway, error)

	mu      sync.Mutex
	gateway Gateway

	hideAccelerators bool
	appendPrefix     string
	appendSuffix     string
	logger           *slog.Logger
}

// ProxyOption configures a Proxy.
type ProxyOption func(*Proxy)

// WithHideAccelerators controls whether accelerator visibility is cleared
// when the gateway is first dialed.
func WithHideAccelerators(hide bool) ProxyOption {
	return func(p *Proxy) {
		p.hideAccelerators = hide
	}
}

// WithAppendSuffix adds suffix to paths under prefix opened in append mode.
func WithAppendSuffix(prefix, suffix string) ProxyOption {
	return func(p *Proxy) {
		p.appendPrefix = prefix
		p.appendSuffix = suffix
	}
}

// WithProxyLogger sets the logger used for gateway initialization.
func WithProxyLogger(logger *slog.Logger) ProxyOption {
	return func(p *Proxy) {
		p.logger = logger
	}
}

// NewProxy returns a proxy backend that dials its gateway on first use.
func NewProxy(dial func() (Gateway, error), opts ...ProxyOption) *Proxy {
	p := &Proxy{
		dial:             dial,
		hideAccelerators: true,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Filesystem.
func (*Proxy) Name() string { return "proxy" }

// client returns the shared gateway, dialing it once.
func (p *Proxy) client() (Gateway, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gateway != nil {
		return p.gateway, nil
	}
	if p.hideAccelerators {
		for _, key := range acceleratorEnv {
			if err := os.Setenv(key, ""); err != nil {
				return nil, fmt.Errorf("clear %s: %w", key, err)
			}
		}
	}
	g, err := p.dial()
	if err != nil {
		return nil, fmt.Errorf("dial proxy gateway: %w", err)
	}
	p.gateway = g
	observability.LogBackendInit(p.logger, p.Name(), slog.Bool("accelerators_hidden", p.hideAccelerators))
	return g, nil
}

// Open implements Filesystem.
func (p *Proxy) Open(_ context.Context, path Path) (io.ReadSeekCloser, error) {
	g, err := p.client()
	if err != nil {
		return nil, err
	}
	return g.Open(path.String())
}

// Create implements Filesystem. Exclusive mode checks for the file first
// and is not atomic against concurrent creators.
func (p *Proxy) Create(ctx context.Context, path Path, mode WriteMode) (io.WriteCloser, error) {
	g, err := p.client()
	if err != nil {
		return nil, err
	}
	name := path.String()
	flag := os.O_WRONLY | os.O_CREATE
	switch mode {
	case Append:
		flag |= os.O_APPEND
		if p.appendSuffix != "" && strings.HasPrefix(name, p.appendPrefix) {
			name += p.appendSuffix
		}
	case Exclusive:
		exists, err := p.Exists(ctx, path)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, pathErr("create", path, ErrExist)
		}
		flag |= os.O_TRUNC
	default:
		flag |= os.O_TRUNC
	}
	return g.OpenFile(name, flag)
}

// Glob implements Filesystem.
func (p *Proxy) Glob(_ context.Context, path Path, pattern string) ([]Path, error) {
	g, err := p.client()
	if err != nil {
		return nil, err
	}
	names, err := g.Glob(path.String(), pattern)
	if err != nil {
		return nil, pathErr("glob", path, err)
	}
	out := make([]Path, 0, len(names))
	for _, name := range names {
		out = append(out, path.Join(name))
	}
	slices.SortFunc(out, Path.Compare)
	return slices.CompactFunc(out, Path.Equal), nil
}

func (p *Proxy) stat(path Path) (fs.FileInfo, error) {
	g, err := p.client()
	if err != nil {
		return nil, err
	}
	info, err := g.Stat(path.String())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return info, err
}

// Exists implements Filesystem.
func (p *Proxy) Exists(_ context.Context, path Path) (bool, error) {
	info, err := p.stat(path)
	return info != nil, err
}

// IsFile implements Filesystem.
func (p *Proxy) IsFile(_ context.Context, path Path) (bool, error) {
	info, err := p.stat(path)
	return info != nil && !info.IsDir(), err
}

// IsDir implements Filesystem.
func (p *Proxy) IsDir(_ context.Context, path Path) (bool, error) {
	info, err := p.stat(path)
	return info != nil && info.IsDir(), err
}

// Mkdir implements Filesystem.
func (p *Proxy) Mkdir(_ context.Context, path Path) error {
	g, err := p.client()
	if err != nil {
		return err
	}
	return g.MkdirAll(path.String())
}

// Remove implements Filesystem.
func (p *Proxy) Remove(ctx context.Context, path Path, recursive bool) error {
	g, err := p.client()
	if err != nil {
		return err
	}
	if !recursive {
		return g.Remove(path.String())
	}
	isDir, err := p.IsDir(ctx, path)
	if err != nil {
		return err
	}
	if !isDir {
		return pathErr("remove", path, ErrNotDirectory)
	}
	return g.RemoveAll(path.String())
}

// Copy implements Filesystem.
func (p *Proxy) Copy(ctx context.Context, src, dst Path, recursive bool) error {
	if recursive || !sameBackend(p, dst) {
		return CrossCopy(ctx, src, dst, recursive)
	}
	g, err := p.client()
	if err != nil {
		return err
	}
	return g.Copy(src.String(), dst.String(), true)
}

// Move implements Filesystem.
func (p *Proxy) Move(ctx context.Context, src, dst Path, recursive bool) error {
	if !sameBackend(p, dst) {
		return crossMove(ctx, src, dst, recursive)
	}
	g, err := p.client()
	if err != nil {
		return err
	}
	return g.Rename(src.String(), dst.String())
}

// Size implements Filesystem.
func (p *Proxy) Size(_ context.Context, path Path) (int64, error) {
	info, err := p.stat(path)
	if err != nil {
		return 0, err
	}
	if info == nil {
		return 0, pathErr("size", path, ErrNotExist)
	}
	if info.IsDir() {
		return 0, pathErr("size", path, ErrIsDirectory)
	}
	return info.Size(), nil
}

// Absolute implements Filesystem. Relative proxy paths are anchored at
// the filesystem root.
func (p *Proxy) Absolute(path Path) (Path, error) {
	if strings.HasPrefix(path.String(), "/") {
		return path, nil
	}
	return path.with("/" + path.String()), nil
}
