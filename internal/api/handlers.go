package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xtding233/marble-bag/internal/marble"
	"github.com/xtding233/marble-bag/internal/registry"
	"github.com/xtding233/marble-bag/internal/sim"
)

const (
	maxDrawsPerRequest = 10000
	maxSimTrials       = 100000
	maxSimDraws        = 100000
	maxSimWork         = 50_000_000 // trials * draws per trial
	maxSnapshotBytes   = 1 << 20
)

type drawResp struct {
	Values []int           `json:"values"`
	Empty  bool            `json:"empty"` // fewer values than asked: bag ran dry
	Bag    registry.Status `json:"bag"`
}

type listResp struct {
	Bags []registry.Status `json:"bags"`
}

type simResp struct {
	Goal  sim.TrialGoal `json:"goal"`
	Stats sim.Stats     `json:"stats"`
}

func parseInt(r *http.Request, key string) (int, bool, string) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, false, ""
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, "invalid " + key
	}
	return v, true, ""
}

func parseBool(r *http.Request, key string) (bool, string) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return false, ""
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, "invalid " + key
	}
	return v, ""
}

// writeRegistryError maps registry errors to responses.
func (s *Server) writeRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrUnknownBag):
		WriteNotFound(w, err.Error())
	case errors.Is(err, marble.ErrBadSnapshot):
		WriteInvalidRequest(w, err.Error())
	default:
		s.log.Error("registry failure", zap.Error(err))
		WriteInternalError(w, err.Error())
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, listResp{Bags: s.bags.List()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.bags.Status(chi.URLParam(r, "bag_name"))
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDraw(w http.ResponseWriter, r *http.Request) {
	n, ok, msg := parseInt(r, "n")
	if msg != "" {
		WriteInvalidRequest(w, msg)
		return
	}
	if !ok {
		n = 1
	}
	if n <= 0 || n > maxDrawsPerRequest {
		WriteInvalidRequest(w, "n must be in [1, "+strconv.Itoa(maxDrawsPerRequest)+"]")
		return
	}

	values, st, err := s.bags.Draw(chi.URLParam(r, "bag_name"), n)
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}
	if values == nil {
		values = []int{}
	}
	writeJSON(w, http.StatusOK, drawResp{Values: values, Empty: len(values) < n, Bag: st})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	st, err := s.bags.Reset(chi.URLParam(r, "bag_name"))
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.bags.Export(chi.URLParam(r, "bag_name"))
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxSnapshotBytes+1))
	if err != nil {
		WriteInvalidRequest(w, "read body: "+err.Error())
		return
	}
	if len(data) > maxSnapshotBytes {
		WriteInvalidRequest(w, "snapshot too large")
		return
	}
	st, err := s.bags.Import(chi.URLParam(r, "bag_name"), data)
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleSimulate runs a Monte Carlo comparison; no registry bag is touched.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	size, ok, msg := parseInt(r, "size")
	if !ok || msg != "" {
		WriteInvalidRequest(w, "missing/invalid param size")
		return
	}
	target, _, msg := parseInt(r, "target")
	if msg != "" {
		WriteInvalidRequest(w, msg)
		return
	}
	trials, ok, msg := parseInt(r, "trials")
	if msg != "" {
		WriteInvalidRequest(w, msg)
		return
	}
	if !ok {
		trials = 1000
	}
	draws, ok, msg := parseInt(r, "draws")
	if msg != "" {
		WriteInvalidRequest(w, msg)
		return
	}
	if !ok {
		draws = 10 * size
	}
	independent, msg := parseBool(r, "independent")
	if msg != "" {
		WriteInvalidRequest(w, msg)
		return
	}
	if trials > maxSimTrials || draws > maxSimDraws || size > maxSimDraws {
		WriteInvalidRequest(w, "size, trials and draws are capped at 100000")
		return
	}
	if trials*max(size, draws) > maxSimWork {
		WriteInvalidRequest(w, "simulation too large")
		return
	}

	goal := sim.TrialGoal(r.URL.Query().Get("goal"))
	switch goal {
	case "":
		goal = sim.GoalFirstHit
	case sim.GoalFirstHit, sim.GoalMaxDrought:
	default:
		WriteInvalidRequest(w, "goal must be one of: first_hit, max_drought")
		return
	}

	params := sim.SimParams{
		Size:        size,
		Target:      target,
		Strategy:    marble.Strategy(r.URL.Query().Get("strategy")),
		Independent: independent,
	}
	if seed, ok, _ := parseInt(r, "seed"); ok && seed >= 0 {
		v := uint64(seed)
		params.Seed = &v
	}

	stats, err := sim.RunMonteCarlo(params, goal, trials, &sim.SimBudget{NumDraws: draws})
	if err != nil {
		WriteInvalidRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, simResp{Goal: goal, Stats: stats})
}
