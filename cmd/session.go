package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/siteclone/internal/api"
	"github.com/JakeFAU/siteclone/internal/app"
	"github.com/JakeFAU/siteclone/internal/background"
	"github.com/JakeFAU/siteclone/internal/observer"
	"github.com/JakeFAU/siteclone/internal/transport/socketio"
)

// observeFunc drives one or more sessions over an established observer.
type observeFunc func(ctx context.Context, obs *observer.Observer) error

// runSessions connects to the service and runs fn alongside the status bar
// tasks and, when configured, the local status server. The auxiliary
// goroutines stop once fn returns.
func runSessions(ctx context.Context, a *app.App, out io.Writer, fn observeFunc) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := a.Logger()
	g, gctx := errgroup.WithContext(ctx)
	auxCtx, stopAux := context.WithCancel(gctx)

	g.Go(func() error {
		return background.Run(auxCtx, logger, a.BackgroundTasks()...)
	})

	var srv *api.Server
	if listen := a.Config().Status.Listen; listen != "" {
		srv = api.NewServer(a.Sessions(), a.Bar(), logger)
		g.Go(func() error {
			return srv.Serve(auxCtx, listen)
		})
	}

	g.Go(func() error {
		defer stopAux()
		client, err := socketio.Dial(gctx, a.DialConfig())
		if err != nil {
			return fmt.Errorf("connect to %s: %w", a.Config().Server.URL, err)
		}
		defer func() { _ = client.Close() }()
		logger.Debug("channel connected", zap.String("sid", client.Handshake().SID))
		if srv != nil {
			srv.SetReady(true)
		}

		renderer := a.NewRenderer(out)
		defer func() { _ = renderer.Close() }()

		obs, err := observer.New(observer.SocketTransport{
			Client: client,
			Buffer: a.Config().Session.Buffer,
		}, a.ObserverConfig(renderer))
		if err != nil {
			return err
		}
		defer obs.Close()
		return fn(gctx, obs)
	})

	return g.Wait()
}

// download saves the archive of a completed session when downloads are on.
func download(ctx context.Context, a *app.App, res observer.Result, msg io.Writer) error {
	dl := a.Downloader()
	if dl == nil || !res.ArchiveOK {
		return nil
	}
	saved, ok, err := dl.Fetch(ctx, a.Config().ServerURL(), res.Filename)
	if err != nil {
		return fmt.Errorf("download %s: %w", res.Filename, err)
	}
	if ok {
		_, _ = fmt.Fprintf(msg, "archive saved to %s (sha256 %s)\n", saved.Path, saved.SHA256)
	}
	return nil
}
