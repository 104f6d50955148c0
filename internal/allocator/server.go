package allocator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"time"
)

// Server is the HTTP front end to a Store: GET /ipam/ip pops the
// lowest free address, PUT /ipam/ip/{ip} returns one to the free set.
// Adapted from the control package's net/http method-pattern mux and
// graceful-shutdown idiom onto a TCP listener (the allocator is called
// by the CNI plugin, a separate process that may run in a different
// network namespace, so a Unix socket isn't reachable the same way the
// control server's is).
type Server struct {
	addr       string
	store      *Store
	log        *slog.Logger
	listener   net.Listener
	httpServer *http.Server
}

// NewServer creates an allocator HTTP server bound to addr (host:port)
// serving from store.
func NewServer(addr string, store *Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:  addr,
		store: store,
		log:   logger.With("component", "allocator"),
	}
}

// Start begins listening and serving HTTP requests in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("allocator: listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ipam/ip", s.handlePop)
	mux.HandleFunc("PUT /ipam/ip/{ip}", s.handleInsert)

	s.httpServer = &http.Server{Handler: mux}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("allocator server error", "error", err)
		}
	}()

	s.log.Info("allocator server started", "addr", s.addr)
	return nil
}

// Stop gracefully shuts down the HTTP server and flushes the store to
// disk, matching the reference implementation's shutdown-triggered
// flush semantics.
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.Warn("allocator server shutdown", "error", err)
		}
	}

	if err := s.store.Flush(); err != nil {
		s.log.Error("flushing ip store", "error", err)
		return err
	}

	s.log.Info("allocator server stopped")
	return nil
}

// handlePop responds with the lowest free address, or an empty body if
// the store is exhausted.
func (s *Server) handlePop(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.store.Pop()
	if !ok {
		s.log.Warn("ip store exhausted")
		w.WriteHeader(http.StatusOK)
		return
	}
	io.WriteString(w, addr.String())
}

// handleInsert returns the {ip} path value to the free set.
func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("ip")
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid ip %q: %v", raw, err), http.StatusBadRequest)
		return
	}
	s.store.Insert(addr)
	w.WriteHeader(http.StatusOK)
}
