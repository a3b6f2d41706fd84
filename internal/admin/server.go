// Package admin implements a JSON-over-HTTP administrative surface in front
// of a mesh.Node: status reporting (a mesh.Snapshot, wire-encoded), neighbor
// table inspection, and message submission. It replaces a heavier RPC
// framework with the smallest transport that exposes the same operations to
// meshctl and to operators poking at it with curl.
package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/loramesh/meshcore/internal/mesh"
)

// Sentinel errors for the admin package.
var (
	// ErrMissingDestination indicates a submit request had no destination.
	ErrMissingDestination = errors.New("destination must be a nonzero node id")

	// ErrMethodNotAllowed indicates a handler was hit with the wrong HTTP method.
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// Server implements the admin HTTP surface. Each endpoint delegates to the
// underlying mesh.Node for actual mesh operations; Server itself holds no
// protocol state.
type Server struct {
	node    *mesh.Node
	logger  *slog.Logger
	mux     *http.ServeMux
	handler http.Handler
}

// New creates a Server wrapping node and returns its http.Handler. Every
// request passes through panic-recovery and request logging middleware
// before reaching the mux.
func New(node *mesh.Node, logger *slog.Logger) *Server {
	s := &Server{
		node:   node,
		logger: logger.With(slog.String("component", "admin")),
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("/v1/status", s.handleStatus)
	s.mux.HandleFunc("/v1/neighbors", s.handleNeighbors)
	s.mux.HandleFunc("/v1/submit", s.handleSubmit)
	s.handler = recoveryMiddleware(s.logger, loggingMiddleware(s.logger, s.mux))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// -------------------------------------------------------------------------
// Wire types
// -------------------------------------------------------------------------

// NeighborEntry is one row of the neighbor table, as reported over the wire.
type NeighborEntry struct {
	NodeID    uint16 `json:"node_id"`
	RSSI      int16  `json:"rssi"`
	LastHeard int64  `json:"last_heard_ms"`
}

// PacketCounters mirrors mesh.PacketCounters over the wire: per-type
// received/sent counts, indexed by packet kind (index 0 unused).
type PacketCounters struct {
	Received [5]uint64 `json:"received"`
	Sent     [5]uint64 `json:"sent"`
}

// StatusResponse is the wire form of a mesh.Snapshot: this node's identity,
// neighbor table, queue/pending-ACK occupancy, and per-type packet counters.
type StatusResponse struct {
	NodeID        uint16          `json:"node_id"`
	NeighborCount int             `json:"neighbor_count"`
	Neighbors     []NeighborEntry `json:"neighbors"`
	PendingAcks   int             `json:"pending_acks"`
	QueueLen      int             `json:"queue_len"`
	Counters      PacketCounters  `json:"counters"`
}

// NeighborsResponse lists the tracked neighbor table; a convenience
// endpoint over the same data StatusResponse.Neighbors carries.
type NeighborsResponse struct {
	Neighbors []NeighborEntry `json:"neighbors"`
}

func neighborEntries(neighbors []mesh.Neighbor) []NeighborEntry {
	entries := make([]NeighborEntry, 0, len(neighbors))
	for _, n := range neighbors {
		entries = append(entries, NeighborEntry{
			NodeID:    n.NodeID,
			RSSI:      n.RSSI,
			LastHeard: n.LastHeard,
		})
	}
	return entries
}

// SubmitRequest originates a new DATA message.
type SubmitRequest struct {
	Destination uint16 `json:"destination"`
	Payload     uint32 `json:"payload"`
}

// SubmitResponse acknowledges a successful submission.
type SubmitResponse struct {
	Accepted bool `json:"accepted"`
}

// errorResponse is the JSON body returned for any handler error.
type errorResponse struct {
	Error string `json:"error"`
}

// -------------------------------------------------------------------------
// Handlers
// -------------------------------------------------------------------------

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, ErrMethodNotAllowed)
		return
	}

	snap := s.node.Snapshot()
	resp := StatusResponse{
		NodeID:        snap.NodeID,
		NeighborCount: len(snap.Neighbors),
		Neighbors:     neighborEntries(snap.Neighbors),
		PendingAcks:   snap.PendingAcks,
		QueueLen:      snap.QueueLen,
		Counters: PacketCounters{
			Received: snap.Counters.Received,
			Sent:     snap.Counters.Sent,
		},
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleNeighbors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, ErrMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, NeighborsResponse{Neighbors: neighborEntries(s.node.Neighbors())})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, ErrMethodNotAllowed)
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.Destination == 0 {
		writeError(w, http.StatusBadRequest, ErrMissingDestination)
		return
	}

	if err := s.node.Submit(req.Destination, req.Payload, time.Now()); err != nil {
		s.logger.Warn("submit rejected", slog.Any("error", err), slog.Uint64("destination", uint64(req.Destination)))
		writeError(w, http.StatusConflict, err)
		return
	}

	writeJSON(w, http.StatusAccepted, SubmitResponse{Accepted: true})
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
