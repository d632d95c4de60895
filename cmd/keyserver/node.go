package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/f3rmion/keyserver/job"
	"github.com/f3rmion/keyserver/keyshare"
	"github.com/f3rmion/keyserver/keystore"
	"github.com/f3rmion/keyserver/logger"
	"github.com/f3rmion/keyserver/transport"
	"github.com/f3rmion/keyserver/unknownsessions"
)

const (
	// unknownSessionsKind is the job route shared by every node.
	unknownSessionsKind = "unknown-sessions"

	shutdownTimeout = 10 * time.Second
)

// Node is a running key server.
type Node struct {
	cfg       *Config
	id        keyshare.NodeID
	store     keystore.Store
	nodes     keyshare.NodeSet
	server    *transport.Server
	discovery *transport.Client[keyshare.NodeID, keyshare.SessionSet]
	log       *slog.Logger
}

// NewNode opens the node's storage and builds its HTTP surface.
func NewNode(cfg *Config, id keyshare.NodeID) (*Node, error) {
	store, err := keystore.OpenPebble(filepath.Join(cfg.DataPath, "keys"))
	if err != nil {
		return nil, fmt.Errorf("open key store: %w", err)
	}

	n, err := newNode(cfg, id, store)
	if err != nil {
		store.Close()
		return nil, err
	}
	return n, nil
}

func newNode(cfg *Config, id keyshare.NodeID, store keystore.Store) (*Node, error) {
	peers, err := cfg.PeerMap()
	if err != nil {
		return nil, err
	}

	nodes := keyshare.NewNodeSet(id)
	for peer := range peers {
		nodes.Insert(peer)
	}

	log := logger.With("node", id.String()[:16])

	n := &Node{
		cfg:   cfg,
		id:    id,
		store: store,
		nodes: nodes,
		server: transport.NewServer(transport.ServerConfig{
			CompressAbove: cfg.CompressAbove,
			Logger:        log,
		}),
		discovery: transport.NewClient[keyshare.NodeID, keyshare.SessionSet](
			unknownSessionsKind,
			transport.ClientConfig{Peers: peers, CompressAbove: cfg.CompressAbove, Logger: log},
			transport.NodeIDCodec{}, transport.SessionSetCodec{},
		),
		log: log,
	}

	transport.Handle[keyshare.NodeID, keyshare.SessionSet](
		n.server, unknownSessionsKind, unknownsessions.NewResponder(store),
		transport.NodeIDCodec{}, transport.SessionSetCodec{},
	)
	n.server.Router().Route("/admin", func(r chi.Router) {
		r.Get("/unknown-sessions/{node}", n.handleUnknownSessions)
	})

	return n, nil
}

// Run serves HTTP until ctx ends, then shuts down gracefully.
func (n *Node) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         n.cfg.HTTPAddress,
		Handler:      n.server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: n.cfg.Timeout + 30*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		n.log.Info("starting HTTP server", "addr", n.cfg.HTTPAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	n.log.Info("shutting down")
	n.server.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		n.log.Error("graceful HTTP shutdown failed", "err", err)
	}
	return nil
}

// Discover asks every configured node, this one included, which sessions
// target is missing.
func (n *Node) Discover(ctx context.Context, target keyshare.NodeID) (unknownsessions.Report, *job.Summary, error) {
	return unknownsessions.Discover(ctx, job.Config{
		Self:           n.id,
		MinResponses:   n.cfg.MinResponses,
		CollectTimeout: n.cfg.Timeout,
		Logger:         n.log,
	}, target, n.nodes, n.discovery, n.store)
}

// discoveryJSON is the admin view of one discovery run.
type discoveryJSON struct {
	Target   keyshare.NodeID      `json:"target"`
	Sessions []unknownSessionJSON `json:"sessions"`
	Accepted keyshare.NodeSet     `json:"accepted"`
	Rejected keyshare.NodeSet     `json:"rejected,omitempty"`
	TimedOut keyshare.NodeSet     `json:"timed_out,omitempty"`
	Failed   map[string]string    `json:"failed,omitempty"`
}

type unknownSessionJSON struct {
	Session   keyshare.SessionID `json:"session"`
	Reporters keyshare.NodeSet   `json:"reporters"`
}

func (n *Node) handleUnknownSessions(w http.ResponseWriter, r *http.Request) {
	target, err := keyshare.ParseNodeID(chi.URLParam(r, "node"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, summary, err := n.Discover(r.Context(), target)
	if err != nil {
		n.log.Warn("discovery failed", "target", target, "err", err)
		status := http.StatusInternalServerError
		if errors.Is(err, job.ErrNotEnoughResponses) || errors.Is(err, job.ErrRejected) {
			status = http.StatusBadGateway
		}
		http.Error(w, err.Error(), status)
		return
	}

	out := discoveryJSON{
		Target:   target,
		Sessions: make([]unknownSessionJSON, 0, len(report)),
		Accepted: summary.Accepted,
		Rejected: summary.Rejected,
		TimedOut: summary.TimedOut,
	}
	for _, s := range report.Sessions() {
		out.Sessions = append(out.Sessions, unknownSessionJSON{Session: s, Reporters: report.Reporters(s)})
	}
	if len(summary.Failed) > 0 {
		out.Failed = make(map[string]string, len(summary.Failed))
		for id, ferr := range summary.Failed {
			out.Failed[id.String()] = ferr.Error()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// Close releases the node's storage.
func (n *Node) Close() error {
	return n.store.Close()
}
