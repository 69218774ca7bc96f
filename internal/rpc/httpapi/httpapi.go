// Package httpapi is the (+) operator-facing RPC surface named in spec §6:
// state/peers/progress/sync-stats/producer-stats/watched-account queries,
// ledger-accounts, transition-frontier user-commands, and snark-worker
// control, exposed over HTTP/JSON alongside the P2P RPC channel in
// internal/rpc. Routing follows the teacher's go-chi usage; the streaming
// sync-stats subscription is pushed over a gorilla/websocket connection the
// way the teacher's dashboard-facing endpoints push periodic snapshots.
package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"mina-core/internal/action"
	"mina-core/internal/frontier"
	"mina-core/internal/node"
	"mina-core/internal/producer"
	"mina-core/internal/store"
	"mina-core/internal/types"
	"mina-core/internal/watched"
)

var errBadAddress = errors.New("httpapi: malformed account address")

var frontierPhaseNames = map[frontier.Phase]string{
	frontier.PhaseInit:                           "init",
	frontier.PhaseSnarkedLedgerPending:           "snarked_ledger_pending",
	frontier.PhaseSnarkedLedgerSuccess:           "snarked_ledger_success",
	frontier.PhaseStagedLedgerPartsPending:       "staged_ledger_parts_pending",
	frontier.PhaseStagedLedgerPartsSuccess:       "staged_ledger_parts_success",
	frontier.PhaseStagedLedgerReconstructPending: "staged_ledger_reconstruct_pending",
	frontier.PhaseStagedLedgerReconstructSuccess: "staged_ledger_reconstruct_success",
	frontier.PhaseBlocksPending:                  "blocks_pending",
	frontier.PhaseBlocksSuccess:                  "blocks_success",
	frontier.PhaseCommitted:                      "committed",
}

var producerPhaseNames = map[producer.Phase]string{
	producer.PhaseIdle:         "idle",
	producer.PhaseBuildingDiff: "building_diff",
	producer.PhaseApplyingDiff: "applying_diff",
	producer.PhaseProving:      "proving",
	producer.PhaseBroadcasting: "broadcasting",
}

func phaseName(p frontier.Phase) string {
	if n, ok := frontierPhaseNames[p]; ok {
		return n
	}
	return "unknown"
}

func producerPhaseName(p producer.Phase) string {
	if n, ok := producerPhaseNames[p]; ok {
		return n
	}
	return "unknown"
}

// Server is the operator HTTP surface bound to a running node Store. It
// only reads state and dispatches the operator-originated watch/unwatch
// actions directly on the Store; snark-worker control requests are
// acknowledged without dispatching anything.
type Server struct {
	store    *store.Store[node.State]
	router   chi.Router
	upgrader websocket.Upgrader
}

// New builds a Server bound to s, wiring every route spec §6 names for the
// RPC surface.
func New(s *store.Store[node.State]) *Server {
	srv := &Server{
		store:    s,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/state", srv.handleState)
	r.Get("/peers", srv.handlePeers)
	r.Get("/sync/stats", srv.handleSyncStats)
	r.Get("/producer/stats", srv.handleProducerStats)
	r.Get("/watched", srv.handleWatchedList)
	r.Post("/watched/{address}", srv.handleWatch)
	r.Delete("/watched/{address}", srv.handleUnwatch)
	r.Get("/ledger/accounts", srv.handleLedgerAccounts)
	r.Get("/frontier/user-commands", srv.handleUserCommands)
	r.Post("/snark-worker/{action}", srv.handleSnarkWorkerControl)
	r.Get("/ws/sync", srv.handleSyncStream)

	srv.router = r
	return srv
}

// Router exposes the chi router as an http.Handler for http.ListenAndServe.
func (s *Server) Router() http.Handler { return s.router }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("httpapi: encode response failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// stateSnapshot is the §6 "state get" response: a coarse summary of every
// subsystem's substate, not the full internal representation.
type stateSnapshot struct {
	PeerCount      int    `json:"peer_count"`
	SyncPhase      string `json:"sync_phase"`
	BestChainLen   int    `json:"best_chain_len"`
	ProducerPhase  string `json:"producer_phase"`
	SnarkPoolSize  int    `json:"snark_pool_size"`
	WatchedAccount int    `json:"watched_accounts"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st := s.store.State()
	writeJSON(w, http.StatusOK, stateSnapshot{
		PeerCount:      st.P2P.Peers.Count(),
		SyncPhase:      phaseName(st.Frontier.Phase),
		BestChainLen:   len(st.Frontier.BestChain),
		ProducerPhase:  producerPhaseName(st.Producer.Phase),
		SnarkPoolSize:  len(st.SnarkPool.Pool),
		WatchedAccount: len(st.Watched.Accounts),
	})
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	st := s.store.State()
	writeJSON(w, http.StatusOK, st.P2P.Peers.ReadyPeers())
}

type syncStats struct {
	Phase          string `json:"phase"`
	BestChainLen   int    `json:"best_chain_len"`
	RetentionDepth int    `json:"retention_depth"`
}

func (s *Server) handleSyncStats(w http.ResponseWriter, r *http.Request) {
	f := s.store.State().Frontier
	writeJSON(w, http.StatusOK, syncStats{
		Phase:          phaseName(f.Phase),
		BestChainLen:   len(f.BestChain),
		RetentionDepth: f.RetentionDepth,
	})
}

type producerStats struct {
	Phase string `json:"phase"`
	Slot  uint32 `json:"slot,omitempty"`
}

func (s *Server) handleProducerStats(w http.ResponseWriter, r *http.Request) {
	p := s.store.State().Producer
	stats := producerStats{Phase: producerPhaseName(p.Phase)}
	if p.Current != nil {
		stats.Slot = p.Current.Slot
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleWatchedList(w http.ResponseWriter, r *http.Request) {
	accounts := s.store.State().Watched.Accounts
	out := make(map[string]*watched.AccountView, len(accounts))
	for addr, v := range accounts {
		out[addr.String()] = v
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	meta := action.NewMeta(watched.KindAccountWatched, nil, time.Now())
	s.store.Dispatch(watched.AccountWatchedAction{Base: action.Base{Meta: meta}, Address: addr})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnwatch(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	meta := action.NewMeta(watched.KindAccountUnwatched, nil, time.Now())
	s.store.Dispatch(watched.AccountUnwatchedAction{Base: action.Base{Meta: meta}, Address: addr})
	w.WriteHeader(http.StatusNoContent)
}

// handleLedgerAccounts is a thin pass-through: concrete ledger storage is a
// spec Non-goal, so this surfaces only the watched-account views already
// held in substate rather than querying a full account database.
func (s *Server) handleLedgerAccounts(w http.ResponseWriter, r *http.Request) {
	s.handleWatchedList(w, r)
}

func (s *Server) handleUserCommands(w http.ResponseWriter, r *http.Request) {
	f := s.store.State().Frontier
	writeJSON(w, http.StatusOK, map[string]any{"phase": phaseName(f.Phase), "best_chain_len": len(f.BestChain)})
}

// handleSnarkWorkerControl accepts start/stop, acknowledging only: the
// VRF-evaluator/snark-worker process itself is a spec Non-goal, this is the
// operator-facing control surface spec §6 names.
func (s *Server) handleSnarkWorkerControl(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "start", "stop":
		w.WriteHeader(http.StatusAccepted)
	default:
		writeError(w, http.StatusBadRequest, "unsupported snark-worker action")
	}
}

// handleSyncStream pushes a syncStats snapshot over a websocket connection
// every tick, for operator tooling that wants a live view rather than
// polling /sync/stats.
func (s *Server) handleSyncStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("httpapi: websocket upgrade failed")
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			f := s.store.State().Frontier
			if err := conn.WriteJSON(syncStats{Phase: phaseName(f.Phase), BestChainLen: len(f.BestChain), RetentionDepth: f.RetentionDepth}); err != nil {
				return
			}
		}
	}
}

func parseAddress(s string) (types.Address, error) {
	var a types.Address
	if len(s) != 2*len(a) {
		return a, errBadAddress
	}
	if _, err := hex.Decode(a[:], []byte(s)); err != nil {
		return a, errBadAddress
	}
	return a, nil
}
