package app_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/siteclone/internal/app"
	"github.com/JakeFAU/siteclone/internal/background"
	"github.com/JakeFAU/siteclone/internal/clock"
	"github.com/JakeFAU/siteclone/internal/config"
	"github.com/JakeFAU/siteclone/internal/id/token"
	"github.com/JakeFAU/siteclone/internal/progress"
	"github.com/JakeFAU/siteclone/internal/render"
)

func loadConfig(t *testing.T, overrides map[string]any) config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	v.Set("download.dir", t.TempDir())
	for k, val := range overrides {
		v.Set(k, val)
	}
	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	return cfg
}

func newApp(t *testing.T, cfg config.Config, opts ...app.Option) *app.App {
	t.Helper()
	opts = append([]app.Option{app.WithRegisterer(prometheus.NewRegistry())}, opts...)
	a, err := app.New(cfg, zap.NewNop(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func TestNewApp_Defaults(t *testing.T) {
	t.Parallel()
	a := newApp(t, loadConfig(t, nil))

	assert.NotNil(t, a.Logger())
	assert.NotNil(t, a.Bar())
	assert.NotNil(t, a.Sessions())
	assert.NotNil(t, a.Hub())
	assert.NotNil(t, a.Downloader())
	assert.Equal(t, token.ScopeRequest, a.Tokens().Scope())
	assert.IsType(t, &render.Text{}, a.NewRenderer(&bytes.Buffer{}))
}

func TestNewApp_DownloadsDisabled(t *testing.T) {
	t.Parallel()
	a := newApp(t, loadConfig(t, map[string]any{"download.enabled": false}))
	assert.Nil(t, a.Downloader())
}

func TestNewApp_ArchiveDirIsFile(t *testing.T) {
	t.Parallel()
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	cfg := loadConfig(t, map[string]any{"download.dir": file})

	_, err := app.New(cfg, zap.NewNop(), app.WithRegisterer(prometheus.NewRegistry()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive store")
}

func TestNewApp_DuplicateRegistration(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	cfg := loadConfig(t, nil)
	first, err := app.New(cfg, zap.NewNop(), app.WithRegisterer(reg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Close(context.Background()) })

	_, err = app.New(cfg, zap.NewNop(), app.WithRegisterer(reg))
	require.Error(t, err)
}

func TestNewRendererJSON(t *testing.T) {
	t.Parallel()
	a := newApp(t, loadConfig(t, map[string]any{"output.format": "json"}))
	assert.IsType(t, &render.JSON{}, a.NewRenderer(&bytes.Buffer{}))
}

func TestObserverConfigWiresSharedServices(t *testing.T) {
	t.Parallel()
	fixed := clock.Func(func() time.Time { return time.Unix(0, 0) })
	a := newApp(t, loadConfig(t, map[string]any{
		"session.token_scope":  "process",
		"session.wait_timeout": "30s",
	}), app.WithClock(fixed))

	cfg := a.ObserverConfig(render.Nop{})
	assert.Same(t, a.Tokens(), cfg.Tokens)
	assert.Equal(t, token.ScopeProcess, cfg.Tokens.Scope())
	assert.Equal(t, progress.Emitter(a.Hub()), cfg.Emitter)
	assert.Equal(t, 30*time.Second, cfg.WaitTimeout)
	assert.Equal(t, 50, cfg.LogCapacity)
	assert.NotNil(t, cfg.Limiter)
	assert.NotNil(t, cfg.IDs)
}

func TestDialConfig(t *testing.T) {
	t.Parallel()
	a := newApp(t, loadConfig(t, map[string]any{"server.url": "https://mirror.example"}))

	dc := a.DialConfig()
	assert.Equal(t, "https://mirror.example", dc.URL)
	assert.Equal(t, "/socket.io/", dc.Path)
	assert.Equal(t, 3, dc.Retry.MaxAttempts)
}

func TestBackgroundTasks(t *testing.T) {
	t.Parallel()
	a := newApp(t, loadConfig(t, nil))
	names := taskNames(a.BackgroundTasks())
	assert.Equal(t, []string{"clock", "ip-lookup"}, names)

	b := newApp(t, loadConfig(t, map[string]any{"status.ip_lookup": false}))
	assert.Equal(t, []string{"clock"}, taskNames(b.BackgroundTasks()))
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()
	a, err := app.New(loadConfig(t, nil), zap.NewNop(), app.WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	require.NoError(t, a.Close(context.Background()))
	require.NoError(t, a.Close(context.Background()))
}

func taskNames(tasks []background.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task.Name())
	}
	return out
}
