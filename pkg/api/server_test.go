package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psaab/srxmerge/pkg/configstore"
	"github.com/psaab/srxmerge/pkg/logging"
	"github.com/psaab/srxmerge/pkg/merge"
	"github.com/psaab/srxmerge/pkg/metrics"
)

const policyDoc = `security {
    zones { security-zone trust; security-zone untrust; }
    policies { from-zone trust to-zone untrust {
        policy allow { match { source-address any; destination-address any; application any; } then { permit; } }
    } }
}`

type fixture struct {
	srv    *Server
	store  *configstore.Store
	events *logging.EventBuffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	events := logging.NewEventBuffer(16)
	rec := metrics.NewRecorder()
	m := merge.New(merge.WithObserver(rec), merge.WithObserver(events))
	store := configstore.New(filepath.Join(t.TempDir(), "srx.conf"), configstore.WithMerger(m))
	srv, err := NewServer(Config{Store: store, Merger: m, Recorder: rec, Events: events})
	require.NoError(t, err)
	return &fixture{srv: srv, store: store, events: events}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)

	var resp Response
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

// data re-decodes the envelope payload into v.
func data(t *testing.T, resp Response, v any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w, resp := f.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
}

func TestMergeEndpoint(t *testing.T) {
	f := newFixture(t)
	w, resp := f.do(t, "POST", "/api/v1/merge", MergeRequest{
		Base:     policyDoc,
		Document: `security { policies { from-zone trust to-zone untrust { policy deny { match { source-address any; destination-address any; application any; } then { deny; } } } } }`,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, resp.Success)

	var doc struct {
		ID       string `json:"id"`
		OK       bool   `json:"ok"`
		Policies []struct {
			Name   string `json:"name"`
			Action string `json:"action"`
		} `json:"policies"`
	}
	data(t, resp, &doc)
	assert.NotEmpty(t, doc.ID)
	assert.True(t, doc.OK)
	require.Len(t, doc.Policies, 2)
	assert.Equal(t, "allow", doc.Policies[0].Name)
	assert.Equal(t, "deny", doc.Policies[1].Action)
}

func TestMergeEndpointErrors(t *testing.T) {
	f := newFixture(t)

	w, resp := f.do(t, "POST", "/api/v1/merge", MergeRequest{Document: "security {"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp.Error, "document:")

	w, resp = f.do(t, "POST", "/api/v1/merge", MergeRequest{
		Base:     policyDoc,
		Document: `security { policies { from-zone trust to-zone untrust { policy allow { match { destination-address [ nowhere ]; } } } } }`,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "UnknownReference")

	var doc struct {
		OK          bool `json:"ok"`
		Diagnostics []struct {
			Kind string `json:"kind"`
		} `json:"diagnostics"`
	}
	data(t, resp, &doc)
	assert.False(t, doc.OK)
	assert.NotEmpty(t, doc.Diagnostics)

	req := httptest.NewRequest("POST", "/api/v1/merge", strings.NewReader(`{"bogus": 1}`))
	rw := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rw, req)
	assert.Equal(t, http.StatusBadRequest, rw.Code)
}

func TestCheckEndpoint(t *testing.T) {
	f := newFixture(t)
	w, resp := f.do(t, "POST", "/api/v1/check", CheckRequest{Document: policyDoc})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
}

func TestConfigLifecycle(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, "GET", "/api/v1/config", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = f.do(t, "POST", "/api/v1/config/load", LoadRequest{Text: policyDoc})
	assert.Equal(t, http.StatusConflict, w.Code, "load outside config mode")

	w, _ = f.do(t, "POST", "/api/v1/config/enter", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = f.do(t, "POST", "/api/v1/config/enter", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = f.do(t, "POST", "/api/v1/config/load", LoadRequest{Text: policyDoc})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, resp := f.do(t, "GET", "/api/v1/config/compare", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var text TextResponse
	data(t, resp, &text)
	assert.Contains(t, text.Output, "+set security zones security-zone trust")

	w, _ = f.do(t, "POST", "/api/v1/config/commit", CommitRequest{Comment: "first"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, resp = f.do(t, "GET", "/api/v1/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	w, _ = f.do(t, "GET", "/api/v1/config?format=set", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "set security policies from-zone trust to-zone untrust policy allow then permit")

	w, _ = f.do(t, "GET", "/api/v1/config?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = f.do(t, "GET", "/api/v1/config/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var hist []HistoryEntry
	data(t, resp, &hist)
	require.Len(t, hist, 1)
	assert.Equal(t, 1, hist[0].Index)
	assert.Equal(t, "first", hist[0].Comment)

	w, _ = f.do(t, "POST", "/api/v1/config/delete", DeleteRequest{Path: "security.policies"})
	require.Equal(t, http.StatusOK, w.Code)
	w, resp = f.do(t, "GET", "/api/v1/config/show?format=set", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data(t, resp, &text)
	assert.NotContains(t, text.Output, "policies")

	w, _ = f.do(t, "POST", "/api/v1/config/rollback", RollbackRequest{N: 0})
	require.Equal(t, http.StatusOK, w.Code)
	w, resp = f.do(t, "GET", "/api/v1/config/compare", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data(t, resp, &text)
	assert.Equal(t, "[no changes]\n", text.Output)

	w, _ = f.do(t, "POST", "/api/v1/config/rollback", RollbackRequest{N: 7})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, "GET", "/api/v1/config/show-rollback?n=1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = f.do(t, "GET", "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var st StatusResponse
	data(t, resp, &st)
	assert.Equal(t, 1, st.ActivePolicies)
	assert.True(t, st.ConfigMode)
	assert.Equal(t, 1, st.HistoryEntries)

	w, _ = f.do(t, "POST", "/api/v1/config/exit", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, f.store.InConfigMode())
}

func TestCommitFatalKeepsActive(t *testing.T) {
	f := newFixture(t)
	f.do(t, "POST", "/api/v1/config/enter", nil)
	w, _ := f.do(t, "POST", "/api/v1/config/load", LoadRequest{Mode: "override",
		Text: `security { policies { from-zone a to-zone b { policy p { match { source-address ghost; } then { permit; } } } } }`})
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := f.do(t, "POST", "/api/v1/config/commit", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, resp.Error, "commit check failed")
	assert.Nil(t, f.store.ActiveConfig())

	w, _ = f.do(t, "POST", "/api/v1/config/load", LoadRequest{Mode: "append"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, "POST", "/api/v1/check", CheckRequest{Document: policyDoc})

	w, _ := f.do(t, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `srxmerge_merges_total{result="ok"} 1`)
	assert.Contains(t, body, "srxmerge_merge_duration_seconds_bucket")
	assert.Contains(t, body, "srxmerge_history_entries 0")
	assert.Contains(t, body, "srxmerge_config_mode 0")
}

func TestStoreCollectorPolicies(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.EnterConfigure())
	_, err := f.store.LoadMerge(t.Context(), policyDoc)
	require.NoError(t, err)
	_, err = f.store.Commit(t.Context(), "")
	require.NoError(t, err)

	w, _ := f.do(t, "GET", "/metrics", nil)
	assert.Contains(t, w.Body.String(), `srxmerge_active_policies{from_zone="trust",to_zone="untrust"} 1`)
	assert.Contains(t, w.Body.String(), "srxmerge_config_mode 1")
}
