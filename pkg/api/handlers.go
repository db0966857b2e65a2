package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/psaab/srxmerge/pkg/config"
	"github.com/psaab/srxmerge/pkg/configstore"
	"github.com/psaab/srxmerge/pkg/merge"
	"github.com/psaab/srxmerge/pkg/report"
)

// maxBody bounds request documents.
const maxBody = 16 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{Success: false, Error: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// statusFor maps an error to an HTTP status.
func statusFor(err error) int {
	var pe *config.ParseError
	var fe *merge.FailedError
	switch {
	case errors.As(err, &pe):
		return http.StatusBadRequest
	case errors.As(err, &fe):
		return http.StatusUnprocessableEntity
	case errors.Is(err, configstore.ErrNotConfiguring):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// writeResult sends a merge result. A pass with fatal diagnostics is still
// reported in full, with status 422.
func writeResult(w http.ResponseWriter, res *merge.ResolvedConfig, err error) {
	if res == nil {
		if err == nil {
			err = errors.New("no result")
		}
		writeError(w, statusFor(err), err.Error())
		return
	}
	doc := report.NewDocument(res)
	if err != nil {
		writeJSON(w, statusFor(err), Response{Success: false, Data: doc, Error: err.Error()})
		return
	}
	writeOK(w, doc)
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]string{"status": "ok"})
}

func (s *Server) statusHandler(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Uptime:         time.Since(s.startTime).Truncate(time.Second).String(),
		HistoryEntries: len(s.store.ListHistory()),
		ConfigMode:     s.store.InConfigMode(),
		Dirty:          s.store.IsDirty(),
	}
	if res := s.store.ActiveConfig(); res != nil {
		resp.ActiveID = res.ID
		resp.ActivePolicies = len(res.Policies)
		resp.Warnings = len(res.Diagnostics.Warnings())
	}
	writeOK(w, resp)
}

func (s *Server) mergeHandler(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var base *config.Node
	if req.UseActive {
		base = s.store.Active()
	} else {
		var err error
		if base, err = config.Parse(req.Base); err != nil {
			writeError(w, http.StatusBadRequest, "base: "+err.Error())
			return
		}
	}
	doc, err := config.Parse(req.Document)
	if err != nil {
		writeError(w, http.StatusBadRequest, "document: "+err.Error())
		return
	}
	res, err := s.merger.Merge(r.Context(), base, doc)
	writeResult(w, res, err)
}

func (s *Server) checkHandler(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.merger.MergeText(r.Context(), "", req.Document)
	writeResult(w, res, err)
}

// configHandler renders the active configuration. ?format= selects json
// (the default, enveloped) or a raw text, set or yaml body.
func (s *Server) configHandler(w http.ResponseWriter, r *http.Request) {
	res := s.store.ActiveConfig()
	if res == nil {
		writeError(w, http.StatusNotFound, "no active configuration")
		return
	}
	format := report.JSON
	if q := r.URL.Query().Get("format"); q != "" {
		f, err := report.ParseFormat(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		format = f
	}
	switch format {
	case report.JSON:
		writeOK(w, report.NewDocument(res))
	case report.YAML:
		w.Header().Set("Content-Type", "application/yaml")
		report.Write(w, res, format)
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		report.Write(w, res, format)
	}
}

func (s *Server) policiesHandler(w http.ResponseWriter, _ *http.Request) {
	res := s.store.ActiveConfig()
	if res == nil {
		writeOK(w, []merge.Policy{})
		return
	}
	writeOK(w, res.Policies)
}

func (s *Server) configExportHandler(w http.ResponseWriter, _ *http.Request) {
	data, err := s.store.ExportJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) configEnterHandler(w http.ResponseWriter, _ *http.Request) {
	if err := s.store.EnterConfigure(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeOK(w, nil)
}

func (s *Server) configExitHandler(w http.ResponseWriter, _ *http.Request) {
	s.store.ExitConfigure()
	writeOK(w, nil)
}

func (s *Server) configStatusHandler(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]bool{
		"config_mode": s.store.InConfigMode(),
		"dirty":       s.store.IsDirty(),
	})
}

func (s *Server) configLoadHandler(w http.ResponseWriter, r *http.Request) {
	var req LoadRequest
	if !decodeBody(w, r, &req) {
		return
	}
	switch req.Mode {
	case "", "merge":
		res, err := s.store.LoadMerge(r.Context(), req.Text)
		writeResult(w, res, err)
	case "override":
		if err := s.store.LoadOverride(req.Text); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeOK(w, nil)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown load mode %q", req.Mode))
	}
}

func (s *Server) configDeleteHandler(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.store.DeleteFromInput(req.Path); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeOK(w, nil)
}

func (s *Server) configCommitHandler(w http.ResponseWriter, r *http.Request) {
	var req CommitRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	res, err := s.store.Commit(r.Context(), req.Comment)
	writeResult(w, res, err)
}

func (s *Server) configCommitCheckHandler(w http.ResponseWriter, r *http.Request) {
	res, err := s.store.CommitCheck(r.Context())
	writeResult(w, res, err)
}

func (s *Server) configRollbackHandler(w http.ResponseWriter, r *http.Request) {
	var req RollbackRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.store.Rollback(req.N); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeOK(w, nil)
}

// configShowHandler renders the candidate (or ?target=active) in
// hierarchical or ?format=set form.
func (s *Server) configShowHandler(w http.ResponseWriter, r *http.Request) {
	set := r.URL.Query().Get("format") == "set"
	var out string
	switch r.URL.Query().Get("target") {
	case "active":
		if set {
			out = s.store.ShowActiveSet()
		} else {
			out = s.store.ShowActive()
		}
	case "", "candidate":
		if !s.store.InConfigMode() {
			writeError(w, http.StatusConflict, configstore.ErrNotConfiguring.Error())
			return
		}
		if set {
			out = s.store.ShowCandidateSet()
		} else {
			out = s.store.ShowCandidate()
		}
	default:
		writeError(w, http.StatusBadRequest, "target must be active or candidate")
		return
	}
	writeOK(w, TextResponse{Output: out})
}

func (s *Server) configShowRollbackHandler(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.URL.Query().Get("n"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "n must be an integer")
		return
	}
	out, err := s.store.ShowRollback(n)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeOK(w, TextResponse{Output: out})
}

// configCompareHandler diffs the candidate against the active tree, or
// against ?rollback=N.
func (s *Server) configCompareHandler(w http.ResponseWriter, r *http.Request) {
	if !s.store.InConfigMode() {
		writeError(w, http.StatusConflict, configstore.ErrNotConfiguring.Error())
		return
	}
	q := r.URL.Query().Get("rollback")
	if q == "" {
		writeOK(w, TextResponse{Output: s.store.ShowCompare()})
		return
	}
	n, err := strconv.Atoi(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, "rollback must be an integer")
		return
	}
	out, err := s.store.ShowCompareRollback(n)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeOK(w, TextResponse{Output: out})
}

func (s *Server) configHistoryHandler(w http.ResponseWriter, _ *http.Request) {
	entries := s.store.ListHistory()
	out := make([]HistoryEntry, len(entries))
	for i, e := range entries {
		out[i] = HistoryEntry{
			Index:     i + 1,
			Timestamp: e.Timestamp,
			Comment:   e.Comment,
			MergeID:   e.MergeID,
		}
	}
	writeOK(w, out)
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
