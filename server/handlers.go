package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/danielterwiel/stepvis/executor"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleExecute runs one request to completion. Execution failures are data,
// not HTTP errors: a fault or thrown error still returns 200 with
// success=false so the caller can render steps and diagnostics.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executor.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Source) == "" {
		writeError(w, http.StatusBadRequest, "source required")
		return
	}

	res := s.runner.Execute(r.Context(), req)
	s.metrics.RecordResult(res)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListExercises(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.List())
}

func (s *Server) handleGetExercise(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ex, ok := s.catalog.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "exercise not found")
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

type runExerciseRequest struct {
	Source string `json:"source"`
}

type runExerciseResponse struct {
	ExerciseID string                 `json:"exerciseId"`
	Passed     int                    `json:"passed"`
	Failed     int                    `json:"failed"`
	Outcomes   []executor.TestOutcome `json:"outcomes"`
}

// handleRunExercise runs the submitted source against every test case of the
// named exercise.
func (s *Server) handleRunExercise(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ex, ok := s.catalog.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "exercise not found")
		return
	}

	var req runExerciseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Source) == "" {
		writeError(w, http.StatusBadRequest, "source required")
		return
	}

	cases := make([]executor.TestCase, 0, len(ex.Tests))
	for _, tc := range ex.Tests {
		cases = append(cases, executor.TestCase{
			ID:         tc.ID,
			Args:       tc.Args,
			Assertions: tc.Assertions,
		})
	}

	outcomes := s.runner.RunTests(r.Context(), req.Source, ex.EntryPoint, cases)

	resp := runExerciseResponse{ExerciseID: ex.ID, Outcomes: outcomes}
	for _, out := range outcomes {
		s.metrics.RecordOutcome(out)
		if out.Passed {
			resp.Passed++
		} else {
			resp.Failed++
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
