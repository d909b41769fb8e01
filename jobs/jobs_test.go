package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skekre98/chatlog/config"
	"github.com/skekre98/chatlog/config/source"
	"github.com/skekre98/chatlog/core"
	"github.com/skekre98/chatlog/messages"
	"github.com/skekre98/chatlog/metrics"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type stubRepo struct {
	pingErr error
	listErr error
	lists   atomic.Int32
	limit   atomic.Int64
}

func (r *stubRepo) Create(context.Context, messages.PostMessage) (int64, error) { return 0, nil }

func (r *stubRepo) List(_ context.Context, _, limit int64) ([]messages.Message, error) {
	r.lists.Add(1)
	r.limit.Store(limit)
	return []messages.Message{{ID: 1, Content: "hi"}}, r.listErr
}

func (r *stubRepo) Ping(context.Context) error { return r.pingErr }

type runCounter struct {
	mu   sync.Mutex
	ok   int
	fail int
}

func (c *runCounter) JobRun(_ string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.fail++
	} else {
		c.ok++
	}
}

func (c *runCounter) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ok, c.fail
}

func TestDigest_PrepareFailsWhenRepositoryDown(t *testing.T) {
	down := errors.New("connection refused")
	d := NewDigest(&stubRepo{pingErr: down}, config.DigestJobConfig{}, discard(), nil)

	err := d.Prepare(context.Background())
	assert.ErrorIs(t, err, down)
	assert.Equal(t, DefaultDigestInterval, d.interval)
	assert.EqualValues(t, DefaultDigestLimit, d.limit)
}

func TestDigest_RunListsLatestUntilCancelled(t *testing.T) {
	repo := &stubRepo{}
	runs := &runCounter{}
	d := NewDigest(repo, config.DigestJobConfig{Interval: 5 * time.Millisecond, Limit: 3}, discard(), runs)
	require.NoError(t, d.Prepare(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return repo.lists.Load() >= 3 }, 2*time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("digest did not stop")
	}
	assert.EqualValues(t, 3, repo.limit.Load())
	ok, fail := runs.counts()
	assert.GreaterOrEqual(t, ok, 3)
	assert.Zero(t, fail)
}

func TestDigest_RepositoryErrorsDoNotStopTheLoop(t *testing.T) {
	repo := &stubRepo{listErr: errors.New("timeout")}
	m := metrics.New()
	d := NewDigest(repo, config.DigestJobConfig{Interval: 5 * time.Millisecond}, discard(), m)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return repo.lists.Load() >= 2 }, 2*time.Second, time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

type capture struct {
	listeners []core.ListenerSpec
	processes []core.Process
}

func (c *capture) AddListener(s core.ListenerSpec) { c.listeners = append(c.listeners, s) }
func (c *capture) AddProcess(p core.Process)       { c.processes = append(c.processes, p) }
func (c *capture) OnClose(string, core.CloseFunc)  {}

func TestModule_RegistersEnabledJobs(t *testing.T) {
	c := core.NewContainer()
	var cfg config.Root
	cfg.Jobs.Digest.Enabled = true
	core.Put(c, cfg)
	core.Put(c, discard())
	core.Put[messages.Repository](c, &stubRepo{})

	reg := &capture{}
	require.NoError(t, Module().Configure(c, reg))
	require.Len(t, reg.processes, 1)
	assert.Equal(t, "digest", reg.processes[0].Name())

	cfg.Jobs.Digest.Enabled = false
	core.Put(c, cfg)
	defaults := config.Defaults()
	defaults["auth"].(map[string]any)["jwtSecret"] = "0123456789abcdef"
	mgr, err := config.NewManager(&config.Root{}, config.Options{Defaults: defaults})
	require.NoError(t, err)
	core.Put(c, mgr)

	reg = &capture{}
	require.NoError(t, Module().Configure(c, reg))
	require.Len(t, reg.processes, 1)
	assert.Equal(t, "config-reload", reg.processes[0].Name())
}

func TestConfigReload_AppliesFileChanges(t *testing.T) {
	dir := t.TempDir()
	write := func(port int, level string) {
		content := "auth:\n  jwtSecret: 0123456789abcdef\n" +
			"server:\n  port: " + strconv.Itoa(port) + "\n" +
			"logging:\n  level: " + level + "\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "application.yaml"), []byte(content), 0o644))
	}
	write(8000, "info")

	var cfg config.Root
	mgr, err := config.NewManager(&cfg, config.Options{Defaults: config.Defaults()},
		&source.FileSource{BasePath: dir, Debounce: 10 * time.Millisecond})
	require.NoError(t, err)

	level := new(slog.LevelVar)
	proc := NewConfigReload(mgr, level, discard())
	require.NoError(t, proc.Prepare(context.Background()))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- proc.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	write(9000, "debug")

	require.Eventually(t, func() bool {
		var port int
		mgr.View(func(any) { port = cfg.Server.Port })
		return port == 9000 && level.Level() == slog.LevelDebug
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("config reload did not stop")
	}
}
