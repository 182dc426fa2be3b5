package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cascade-backflow/leadroute/internal/ingest"
	"github.com/cascade-backflow/leadroute/internal/model"
	"github.com/cascade-backflow/leadroute/internal/scorer"
	"github.com/cascade-backflow/leadroute/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			zap.L().Warn("server: store ping failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleScoreBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req.Options); err != nil {
		writeError(w, http.StatusBadRequest, "invalid options", validationDetails(err)...)
		return
	}
	if req.Save && s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run store is not configured")
		return
	}

	leads, err := ingest.DecodeLeadsJSON(r.Context(), bytes.NewReader(req.Leads))
	if err != nil {
		if ingest.IsNotArray(err) {
			writeError(w, http.StatusBadRequest, "leads must be a non-empty list")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid leads", err.Error())
		return
	}

	opts := req.Options.toModel()
	res, err := s.engine.ScoreBatch(r.Context(), leads, opts)
	if err != nil {
		if scorer.IsInvalidInput(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		zap.L().Error("server: score batch failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "batch scoring failed")
		return
	}

	resp := batchResponse{Stats: res.Stats, Leads: res.Leads}
	if req.Save {
		resolved, _ := s.engine.ResolveOptions(opts)
		run := &model.Run{Options: resolved, Stats: res.Stats, Leads: res.Leads}
		if err := s.store.SaveRun(r.Context(), run); err != nil {
			zap.L().Error("server: save run failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to save run")
			return
		}
		resp.RunID = run.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.coalesce()
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid lead", validationDetails(err)...)
		return
	}

	lead, analysis, err := s.engine.Analyze(req.toModel())
	if err != nil {
		if scorer.IsInvalidInput(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		zap.L().Error("server: score failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "scoring failed")
		return
	}
	writeJSON(w, http.StatusOK, scoreResponse{Lead: lead, Analysis: analysis})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err1 := queryInt(q.Get("limit"))
	offset, err2 := queryInt(q.Get("offset"))
	if err1 != nil || err2 != nil || limit < 0 || offset < 0 {
		writeError(w, http.StatusBadRequest, "limit and offset must be non-negative integers")
		return
	}

	runs, err := s.store.ListRuns(r.Context(), store.RunFilter{Limit: limit, Offset: offset})
	if err != nil {
		zap.L().Error("server: list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		s.storeError(w, err, "failed to get run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListRunLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lq := leadQuery{
		Temperature: q.Get("temperature"),
		Cluster:     q.Get("cluster"),
	}
	var errs []error
	for _, p := range []struct {
		key string
		dst *int
	}{{"minScore", &lq.MinScore}, {"limit", &lq.Limit}, {"offset", &lq.Offset}} {
		v, err := queryInt(q.Get(p.key))
		if err != nil {
			errs = append(errs, err)
		}
		*p.dst = v
	}
	if len(errs) > 0 {
		writeError(w, http.StatusBadRequest, "minScore, limit and offset must be integers")
		return
	}
	if err := s.validate.Struct(lq); err != nil {
		writeError(w, http.StatusBadRequest, "invalid query", validationDetails(err)...)
		return
	}

	id := chi.URLParam(r, "id")
	leads, err := s.store.ListRunLeads(r.Context(), id, store.LeadFilter{
		Temperature: model.Temperature(lq.Temperature),
		Cluster:     lq.Cluster,
		MinScore:    lq.MinScore,
		Limit:       lq.Limit,
		Offset:      lq.Offset,
	})
	if err != nil {
		s.storeError(w, err, "failed to list run leads")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runId": id, "leads": leads})
}

func (s *Server) storeError(w http.ResponseWriter, err error, msg string) {
	if store.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	zap.L().Error("server: "+msg, zap.Error(err))
	writeError(w, http.StatusInternalServerError, msg)
}

func queryInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

