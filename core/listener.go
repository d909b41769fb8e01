package core

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// ListenerSpec describes one network listener owned by an App.
type ListenerSpec struct {
	Name      string
	Addr      string
	Handler   http.Handler
	Observers []RequestObserver
	// Listener is an already opened socket (socket activation, tests).
	// When set, Addr is ignored.
	Listener net.Listener

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// DrainTimeout bounds how long in-flight requests may run after
	// cancellation. Zero waits for them indefinitely.
	DrainTimeout time.Duration
}

// BoundListener is a reserved address that has not necessarily started
// serving yet.
type BoundListener struct {
	spec ListenerSpec
	ln   net.Listener
}

// Bind reserves the listener's address. There is no retry.
func Bind(ctx context.Context, spec ListenerSpec) (*BoundListener, error) {
	if spec.Listener != nil {
		return &BoundListener{spec: spec, ln: spec.Listener}, nil
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", spec.Addr)
	if err != nil {
		return nil, &BindError{Listener: spec.Name, Addr: spec.Addr, Err: err}
	}
	return &BoundListener{spec: spec, ln: ln}, nil
}

func (b *BoundListener) Name() string   { return b.spec.Name }
func (b *BoundListener) Addr() net.Addr { return b.ln.Addr() }

// Close releases a listener that was never served.
func (b *BoundListener) Close() error { return b.ln.Close() }

// Serve accepts connections until ctx is cancelled, then stops accepting
// and waits for in-flight requests before returning.
func (b *BoundListener) Serve(ctx context.Context, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	handler := b.spec.Handler
	if handler == nil {
		handler = http.NotFoundHandler()
	}
	srv := &http.Server{
		Handler:      Instrument(b.spec.Name, handler, logger, b.spec.Observers...),
		ReadTimeout:  b.spec.ReadTimeout,
		WriteTimeout: b.spec.WriteTimeout,
		IdleTimeout:  b.spec.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "listener", b.spec.Name, "addr", b.ln.Addr().String())
		errCh <- srv.Serve(b.ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return &ServeError{Listener: b.spec.Name, Err: err}
	case <-ctx.Done():
	}

	logger.Info("http server draining", "listener", b.spec.Name)
	drainCtx := context.Background()
	if b.spec.DrainTimeout > 0 {
		var cancel context.CancelFunc
		drainCtx, cancel = context.WithTimeout(drainCtx, b.spec.DrainTimeout)
		defer cancel()
	}

	if err := srv.Shutdown(drainCtx); err != nil {
		_ = srv.Close()
		<-errCh
		return &ServeError{Listener: b.spec.Name, Err: err}
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return &ServeError{Listener: b.spec.Name, Err: err}
	}
	logger.Info("http server stopped", "listener", b.spec.Name)
	return nil
}
