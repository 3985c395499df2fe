package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/heysubinoy/quotakv/internal/logr"
	"google.golang.org/grpc"
)

// shutdownTimeout is the time given for outstanding requests to finish
// before shutdown.
const shutdownTimeout = 5 * time.Second

// ServeHTTP serves h on ln until the server fails or ctx is cancelled, in
// which case it shuts down gracefully.
func ServeHTTP(ctx context.Context, logger logr.Logger, ln net.Listener, h http.Handler) error {
	server := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errch := make(chan error, 1)
	go func() {
		errch <- server.Serve(ln)
	}()

	logger.Info("started http server", "address", ln.Addr().String())

	// Block until server stops listening or context is cancelled.
	select {
	case err := <-errch:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("gracefully shutting down http server...")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return server.Close()
		}
		return nil
	}
}

// ServeGRPC serves s on ln until the server fails or ctx is cancelled.
func ServeGRPC(ctx context.Context, logger logr.Logger, ln net.Listener, s *grpc.Server) error {
	errch := make(chan error, 1)
	go func() {
		errch <- s.Serve(ln)
	}()

	logger.Info("started grpc server", "address", ln.Addr().String())

	select {
	case err := <-errch:
		return err
	case <-ctx.Done():
		logger.Info("gracefully shutting down grpc server...")

		stopped := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(shutdownTimeout):
			s.Stop()
		}
		return nil
	}
}
