// Package background runs the status bar tasks. They never touch session
// state and stop when their context ends.
package background

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/siteclone/internal/clock"
	"github.com/JakeFAU/siteclone/internal/status"
)

// DefaultIPLookupURL answers with {"ip": "..."}.
const DefaultIPLookupURL = "https://api.ipify.org?format=json"

// Task is a cancellable background job.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// Run starts every task and waits for all of them to return. Cancellation of
// ctx is a clean stop.
func Run(ctx context.Context, logger *zap.Logger, tasks ...Task) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		g.Go(func() error {
			logger.Debug("background task started", zap.String("task", task.Name()))
			defer logger.Debug("background task stopped", zap.String("task", task.Name()))
			if err := task.Run(gctx); err != nil {
				return fmt.Errorf("%s: %w", task.Name(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("background tasks: %w", err)
	}
	return nil
}

// ClockTask publishes the formatted wall clock to the bar.
type ClockTask struct {
	Clock    clock.Clock
	Interval time.Duration
	Bar      *status.Bar
}

// Name implements Task.
func (t *ClockTask) Name() string { return "clock" }

// Run publishes immediately and then on every tick.
func (t *ClockTask) Run(ctx context.Context) error {
	interval := t.Interval
	if interval <= 0 {
		interval = time.Second
	}
	t.Bar.SetTime(clock.Display(t.Clock.Now()))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.Bar.SetTime(clock.Display(t.Clock.Now()))
		}
	}
}

// IPLookupTask resolves the public IP once. Failures leave the fallback in
// place and are only logged at debug level.
type IPLookupTask struct {
	URL    string
	Client *http.Client
	Bar    *status.Bar
	Logger *zap.Logger
}

// Name implements Task.
func (t *IPLookupTask) Name() string { return "ip-lookup" }

// Run performs the lookup. It always returns nil.
func (t *IPLookupTask) Run(ctx context.Context) error {
	logger := t.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ip, err := t.lookup(ctx)
	if err != nil {
		logger.Debug("public ip lookup failed", zap.Error(err))
		t.Bar.SetIP(status.FallbackIP)
		return nil
	}
	t.Bar.SetIP(ip)
	return nil
}

func (t *IPLookupTask) lookup(ctx context.Context) (string, error) {
	target := t.URL
	if target == "" {
		target = DefaultIPLookupURL
	}
	client := t.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", target, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("get %s: status %d", target, resp.StatusCode)
	}
	var body struct {
		IP string `json:"ip"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if net.ParseIP(body.IP) == nil {
		return "", fmt.Errorf("invalid ip %q", body.IP)
	}
	return body.IP, nil
}
