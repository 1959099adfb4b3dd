// Package delivery hosts the catalog-facing HTTP service: a stateless
// responder that streams a prebuilt asset bundle, serving precompressed
// twins when the client's Accept-Encoding allows one.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/louisbranch/scentshelf/internal/assetstore"
	"github.com/louisbranch/scentshelf/internal/platform/timeouts"
	"github.com/louisbranch/scentshelf/internal/services/delivery/platform/httpx"
	"github.com/louisbranch/scentshelf/internal/services/delivery/platform/observability"
)

// Config defines startup inputs for the delivery service.
type Config struct {
	HTTPAddr  string
	AssetRoot string
	// Preload reads the compressible payloads and their twins into memory
	// before the listener starts.
	Preload bool
}

// Server hosts the delivery HTTP surface and lifecycle.
type Server struct {
	httpAddr   string
	httpServer *http.Server
}

// NewHandler builds the root handler over an opened asset store: asset
// serving behind the shared middleware chain. GET patterns also match HEAD;
// every other method gets the mux's 405 with an Allow header.
func NewHandler(store *assetstore.Store) (http.Handler, error) {
	if store == nil {
		return nil, errors.New("asset store is required")
	}
	mux := http.NewServeMux()
	mux.Handle("GET /", newAssetHandler(store))
	return httpx.Chain(mux,
		httpx.RecoverPanic(),
		httpx.RequestID(),
		httpx.NoCache(),
		observability.RequestLogger(log.Default()),
	), nil
}

// NewServer validates config, opens the asset store, and constructs the
// delivery server.
func NewServer(_ context.Context, cfg Config) (*Server, error) {
	httpAddr := strings.TrimSpace(cfg.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	store, err := assetstore.Open(cfg.AssetRoot, assetstore.Options{Preload: cfg.Preload})
	if err != nil {
		return nil, fmt.Errorf("open asset store: %w", err)
	}
	handler, err := NewHandler(store)
	if err != nil {
		return nil, fmt.Errorf("compose delivery handler: %w", err)
	}
	return &Server{
		httpAddr: httpAddr,
		httpServer: &http.Server{
			Addr:              httpAddr,
			Handler:           handler,
			ReadHeaderTimeout: timeouts.ReadHeader,
		},
	}, nil
}

// ListenAndServe serves HTTP traffic until context cancellation or server stop.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("delivery server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown delivery http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve delivery http: %w", err)
	}
}

// Close closes open server resources.
func (s *Server) Close() {
	if s == nil || s.httpServer == nil {
		return
	}
	_ = s.httpServer.Close()
}
