package epath_test

import (
	"context"
	"testing"
	"time"

	"github.com/randalmurphal/elements/pkg/elements/epath"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// testEnv is a registry whose remote backends live in memory.
type testEnv struct {
	reg     *epath.Registry
	objects *epath.MemoryObjectClient
	proxyFS afero.Fs
	store   *epath.ObjectStore
}

func newTestEnv(t *testing.T, opts ...epath.ObjectStoreOption) *testEnv {
	t.Helper()
	objects := epath.NewMemoryObjectClient("bucket", "other")
	proxyFS := afero.NewMemMapFs()

	opts = append([]epath.ObjectStoreOption{
		epath.WithAppendTimeout(time.Second, 5*time.Millisecond),
	}, opts...)
	store := epath.NewObjectStore(objects.Dial, opts...)
	proxy := epath.NewProxy(func() (epath.Gateway, error) {
		return epath.NewAferoGateway(proxyFS), nil
	}, epath.WithHideAccelerators(false))

	reg := epath.NewRegistry(
		epath.Entry{Name: "gcs", Match: epath.HasPrefix(epath.GCSPrefix), FS: store},
		epath.Entry{Name: "proxy", Match: epath.HasPrefix(epath.ProxyPrefix), FS: proxy},
		epath.Entry{Name: "local", Match: epath.Any, Prepare: epath.ExpandUser, FS: epath.NewLocal()},
	)
	return &testEnv{reg: reg, objects: objects, proxyFS: proxyFS, store: store}
}

func (e *testEnv) path(t *testing.T, s string) epath.Path {
	t.Helper()
	p, err := e.reg.Parse(s)
	require.NoError(t, err)
	return p
}

func writeText(t *testing.T, p epath.Path, text string) {
	t.Helper()
	require.NoError(t, p.Parent().Mkdir(context.Background()))
	require.NoError(t, p.WriteText(context.Background(), text))
}

func readText(t *testing.T, p epath.Path) string {
	t.Helper()
	s, err := p.ReadText(context.Background())
	require.NoError(t, err)
	return s
}

func names(paths []epath.Path) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = p.String()
	}
	return out
}
