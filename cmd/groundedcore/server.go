package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/groundedcore/internal/alerts"
	"github.com/haasonsaas/groundedcore/internal/trace"
	"github.com/haasonsaas/groundedcore/pkg/domain"
)

// newMux wires every handler spec.md §6 names onto a plain net/http
// ServeMux using Go's method+path pattern routing, the same
// http.NewServeMux the teacher's gateway HTTP server builds on
// (internal/gateway/http_server.go), narrowed here to this service's own
// surface instead of webhook/channel routes.
func newMux(d *deps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", d.handleHealth)

	mux.HandleFunc("POST /tools/list", d.handleToolsList)
	mux.HandleFunc("POST /tools/call", d.handleToolsCall)

	mux.HandleFunc("POST /v1/npc/chat", d.handleChat)

	mux.HandleFunc("GET /v1/traces/{trace_id}", d.handleGetTrace)
	mux.HandleFunc("GET /v1/traces/{trace_id}/unified", d.handleUnifiedTrace)

	mux.HandleFunc("GET /v1/sessions/{session_id}", d.handleGetSession)
	mux.HandleFunc("DELETE /v1/sessions/{session_id}", d.handleClearSession)
	mux.HandleFunc("PUT /v1/sessions/{session_id}/preference", d.handleUpdatePreference)

	mux.HandleFunc("GET /v1/policies/evidence-gate/active", d.handleActivePolicy)
	mux.HandleFunc("GET /v1/policies/evidence-gate/versions", d.handleListPolicyVersions)
	mux.HandleFunc("POST /v1/policies/evidence-gate", d.handlePutPolicy)
	mux.HandleFunc("POST /v1/policies/evidence-gate/rollback/{version}", d.handleRollbackPolicy)
	mux.HandleFunc("POST /v1/policies/evidence-gate/export", d.handleExportPolicy)

	mux.HandleFunc("POST /v1/releases", d.handleCreateRelease)
	mux.HandleFunc("GET /v1/releases/active", d.handleActiveRelease)
	mux.HandleFunc("POST /v1/releases/{id}/activate", d.handleActivateRelease)
	mux.HandleFunc("POST /v1/releases/{id}/rollback", d.handleRollbackRelease)
	mux.HandleFunc("GET /v1/releases/history", d.handleReleaseHistory)

	mux.HandleFunc("POST /v1/experiments", d.handleCreateExperiment)
	mux.HandleFunc("PATCH /v1/experiments/{id}/status", d.handleUpdateExperimentStatus)
	mux.HandleFunc("GET /v1/experiments/active", d.handleListActiveExperiments)
	mux.HandleFunc("GET /v1/experiments/assign", d.handleAssignExperiment)
	mux.HandleFunc("GET /v1/experiments/ab-summary", d.handleExperimentABSummary)

	mux.HandleFunc("GET /v1/alerts/rules", d.handleAlertRules)
	mux.HandleFunc("GET /v1/alerts/evaluate", d.handleAlertEvaluate)
	mux.HandleFunc("GET /v1/alerts/summary", d.handleAlertSummary)
	mux.HandleFunc("GET /v1/alerts/events", d.handleAlertEvents)
	mux.HandleFunc("GET /v1/alerts/silences", d.handleListSilences)
	mux.HandleFunc("POST /v1/alerts/silences", d.handleCreateSilence)
	mux.HandleFunc("DELETE /v1/alerts/silences/{id}", d.handleDeleteSilence)

	return mux
}

func (d *deps) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "time": time.Now().UTC()})
}

// scopeFromHeaders resolves (tenant, site) plus the correlation headers
// spec.md §6 names, and records the scope for the alert Scheduler's
// ScopeSource.
func (d *deps) scopeFromHeaders(r *http.Request) domain.ToolContext {
	tc := domain.ToolContext{
		Scope: domain.Scope{
			TenantID: r.Header.Get("X-Tenant-ID"),
			SiteID:   r.Header.Get("X-Site-ID"),
		},
		TraceID:   r.Header.Get("X-Trace-ID"),
		SpanID:    r.Header.Get("X-Span-ID"),
		SessionID: r.Header.Get("X-Session-ID"),
		NPCID:     r.Header.Get("X-NPC-ID"),
		UserID:    r.Header.Get("X-User-ID"),
	}
	d.scopes.observe(tc.Scope)
	return tc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func requireScope(w http.ResponseWriter, scope domain.Scope) bool {
	if !scope.Valid() {
		writeError(w, http.StatusBadRequest, "tenant and site are required (X-Tenant-ID, X-Site-ID)")
		return false
	}
	return true
}

func authorizeInternal(d *deps, w http.ResponseWriter, r *http.Request) bool {
	if d.cfg.ToolClient.InternalAPIKey == "" {
		return true
	}
	if r.Header.Get("X-Internal-API-Key") != d.cfg.ToolClient.InternalAPIKey {
		writeError(w, http.StatusUnauthorized, "invalid internal api key")
		return false
	}
	return true
}

// --- tools ---

func (d *deps) handleToolsList(w http.ResponseWriter, r *http.Request) {
	defs := d.toolReg.List()
	writeJSON(w, http.StatusOK, map[string]any{"tools": defs, "total": len(defs)})
}

func (d *deps) handleToolsCall(w http.ResponseWriter, r *http.Request) {
	if !authorizeInternal(d, w, r) {
		return
	}
	var body struct {
		ToolName string          `json:"tool_name"`
		Input    json.RawMessage `json:"input"`
		Context  domain.ToolContext `json:"context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tc := body.Context
	if !tc.Scope.Valid() {
		tc = d.scopeFromHeaders(r)
	} else {
		d.scopes.observe(tc.Scope)
	}
	if !requireScope(w, tc.Scope) {
		return
	}
	if body.ToolName == "" {
		writeError(w, http.StatusBadRequest, "tool_name is required")
		return
	}
	result := d.toolExec.Execute(r.Context(), tc, body.ToolName, body.Input)
	writeJSON(w, http.StatusOK, result)
}

// --- dialog ---

// chatWireRequest is the §6 wire shape for POST /v1/npc/chat: the field is
// named "query" on the wire but feeds domain.ChatRequest.Message, the name
// the Dialog Runtime's pipeline uses internally.
type chatWireRequest struct {
	domain.Scope
	NPCID     string `json:"npc_id"`
	Query     string `json:"query"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

func (d *deps) handleChat(w http.ResponseWriter, r *http.Request) {
	var wire chatWireRequest
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !requireScope(w, wire.Scope) {
		return
	}
	if len(wire.Query) == 0 || len(wire.Query) > 1000 {
		writeError(w, http.StatusBadRequest, "query must be between 1 and 1000 characters")
		return
	}
	req := domain.ChatRequest{
		Scope:     wire.Scope,
		NPCID:     wire.NPCID,
		SessionID: wire.SessionID,
		UserID:    wire.UserID,
		Message:   wire.Query,
		TraceID:   wire.TraceID,
	}
	d.scopes.observe(req.Scope)
	resp := d.runtime.Chat(r.Context(), req)
	writeJSON(w, http.StatusOK, resp)
}

// --- traces ---

func (d *deps) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	tc := d.scopeFromHeaders(r)
	if !requireScope(w, tc.Scope) {
		return
	}
	record, err := d.traces.Get(r.Context(), tc.Scope, r.PathValue("trace_id"))
	if err != nil {
		if errors.Is(err, trace.ErrNotFound) {
			writeError(w, http.StatusNotFound, "trace not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if r.URL.Query().Get("include_session") != "true" {
		writeJSON(w, http.StatusOK, record)
		return
	}
	summary, err := d.sessions.GetSessionSummary(r.Context(), tc.Scope, record.SessionID, record.NPCID, 50)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"trace": record})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trace": record, "session": summary})
}

func (d *deps) handleUnifiedTrace(w http.ResponseWriter, r *http.Request) {
	tc := d.scopeFromHeaders(r)
	if !requireScope(w, tc.Scope) {
		return
	}
	unified, err := d.replayer.Unify(r.Context(), tc.Scope, r.PathValue("trace_id"))
	if err != nil {
		if errors.Is(err, trace.ErrNotFound) {
			writeError(w, http.StatusNotFound, "trace not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, unified)
}

// --- sessions ---

func (d *deps) handleGetSession(w http.ResponseWriter, r *http.Request) {
	tc := d.scopeFromHeaders(r)
	if !requireScope(w, tc.Scope) {
		return
	}
	summary, err := d.sessions.GetSessionSummary(r.Context(), tc.Scope, r.PathValue("session_id"), r.URL.Query().Get("npc_id"), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (d *deps) handleClearSession(w http.ResponseWriter, r *http.Request) {
	tc := d.scopeFromHeaders(r)
	if !requireScope(w, tc.Scope) {
		return
	}
	if err := d.sessions.ClearSession(r.Context(), tc.Scope, r.PathValue("session_id"), r.URL.Query().Get("npc_id")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (d *deps) handleUpdatePreference(w http.ResponseWriter, r *http.Request) {
	tc := d.scopeFromHeaders(r)
	if !requireScope(w, tc.Scope) {
		return
	}
	var pref domain.Preference
	if err := json.NewDecoder(r.Body).Decode(&pref); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := d.sessions.UpdatePreference(r.Context(), tc.Scope, r.PathValue("session_id"), pref); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pref)
}

// --- evidence gate policy management ---

func (d *deps) handleActivePolicy(w http.ResponseWriter, r *http.Request) {
	pv, err := d.policies.GetActivePolicy(r.Context(), evidenceGatePolicyName)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pv)
}

func (d *deps) handleListPolicyVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := d.policies.ListPolicyVersions(r.Context(), evidenceGatePolicyName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

func (d *deps) handlePutPolicy(w http.ResponseWriter, r *http.Request) {
	var content map[string]any
	if err := json.NewDecoder(r.Body).Decode(&content); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	pv, err := d.policies.PutPolicy(r.Context(), evidenceGatePolicyName, content)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, pv)
}

func (d *deps) handleRollbackPolicy(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.Atoi(r.PathValue("version"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "version must be an integer")
		return
	}
	if err := d.policies.ActivatePolicyVersion(r.Context(), evidenceGatePolicyName, version); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	pv, err := d.policies.GetActivePolicy(r.Context(), evidenceGatePolicyName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pv)
}

func (d *deps) handleExportPolicy(w http.ResponseWriter, r *http.Request) {
	pv, err := d.policies.GetActivePolicy(r.Context(), evidenceGatePolicyName)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="evidence-gate-policy.json"`)
	writeJSON(w, http.StatusOK, pv)
}

// --- releases ---

func (d *deps) handleCreateRelease(w http.ResponseWriter, r *http.Request) {
	tc := d.scopeFromHeaders(r)
	if !requireScope(w, tc.Scope) {
		return
	}
	var release domain.Release
	if err := json.NewDecoder(r.Body).Decode(&release); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	release.Scope = tc.Scope
	if release.ID == "" {
		release.ID = uuid.NewString()
	}
	created, err := d.releases.CreateRelease(r.Context(), release)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (d *deps) handleActiveRelease(w http.ResponseWriter, r *http.Request) {
	tc := d.scopeFromHeaders(r)
	if !requireScope(w, tc.Scope) {
		return
	}
	release, err := d.releases.GetActiveRelease(r.Context(), tc.Scope)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, release)
}

func (d *deps) handleActivateRelease(w http.ResponseWriter, r *http.Request) {
	tc := d.scopeFromHeaders(r)
	if !requireScope(w, tc.Scope) {
		return
	}
	release, err := d.releases.ActivateRelease(r.Context(), tc.Scope, r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, release)
}

func (d *deps) handleRollbackRelease(w http.ResponseWriter, r *http.Request) {
	tc := d.scopeFromHeaders(r)
	if !requireScope(w, tc.Scope) {
		return
	}
	release, err := d.releases.Rollback(r.Context(), tc.Scope)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, release)
}

func (d *deps) handleReleaseHistory(w http.ResponseWriter, r *http.Request) {
	tc := d.scopeFromHeaders(r)
	if !requireScope(w, tc.Scope) {
		return
	}
	history, err := d.releases.ListReleaseHistory(r.Context(), tc.Scope)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

// --- experiments ---

func (d *deps) handleCreateExperiment(w http.ResponseWriter, r *http.Request) {
	tc := d.scopeFromHeaders(r)
	if !requireScope(w, tc.Scope) {
		return
	}
	var experiment domain.Experiment
	if err := json.NewDecoder(r.Body).Decode(&experiment); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	experiment.Scope = tc.Scope
	if experiment.ID == "" {
		experiment.ID = uuid.NewString()
	}
	created, err := d.experiments.CreateExperiment(r.Context(), experiment)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (d *deps) handleUpdateExperimentStatus(w http.ResponseWriter, r *http.Request) {
	tc := d.scopeFromHeaders(r)
	if !requireScope(w, tc.Scope) {
		return
	}
	var body struct {
		Status domain.ExperimentStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	experiment, err := d.experiments.UpdateStatus(r.Context(), tc.Scope, r.PathValue("id"), body.Status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, experiment)
}

func (d *deps) handleListActiveExperiments(w http.ResponseWriter, r *http.Request) {
	tc := d.scopeFromHeaders(r)
	if !requireScope(w, tc.Scope) {
		return
	}
	experiments, err := d.experiments.ListExperiments(r.Context(), tc.Scope)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	active := make([]domain.Experiment, 0, len(experiments))
	for _, e := range experiments {
		if e.Status == domain.ExperimentActive {
			active = append(active, e)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"experiments": active})
}

func (d *deps) handleAssignExperiment(w http.ResponseWriter, r *http.Request) {
	tc := d.scopeFromHeaders(r)
	if !requireScope(w, tc.Scope) {
		return
	}
	experimentID := r.URL.Query().Get("experiment_id")
	subjectKey := r.URL.Query().Get("subject_key")
	if experimentID == "" || subjectKey == "" {
		writeError(w, http.StatusBadRequest, "experiment_id and subject_key are required")
		return
	}
	assignment, err := d.experiments.AssignSubject(r.Context(), tc.Scope, experimentID, subjectKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, assignment)
}

// handleExperimentABSummary reports each variant's assignment count over an
// optional lookback window (the "range" query param, a Go duration string
// such as "24h"; the default is the experiment's full history).
func (d *deps) handleExperimentABSummary(w http.ResponseWriter, r *http.Request) {
	tc := d.scopeFromHeaders(r)
	if !requireScope(w, tc.Scope) {
		return
	}
	experimentID := r.URL.Query().Get("experiment_id")
	if experimentID == "" {
		writeError(w, http.StatusBadRequest, "experiment_id is required")
		return
	}
	var since time.Time
	if rangeParam := r.URL.Query().Get("range"); rangeParam != "" {
		lookback, err := time.ParseDuration(rangeParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, "range must be a duration like \"24h\"")
			return
		}
		since = time.Now().Add(-lookback)
	}
	assignments, err := d.experiments.ListAssignments(r.Context(), tc.Scope, experimentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	counts := map[string]int{}
	total := 0
	for _, a := range assignments {
		if !since.IsZero() && a.AssignedAt.Before(since) {
			continue
		}
		counts[a.VariantName]++
		total++
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"experiment_id":    experimentID,
		"total_assignments": total,
		"variant_counts":   counts,
	})
}

// --- alerts ---

func (d *deps) handleAlertRules(w http.ResponseWriter, r *http.Request) {
	rules, err := alerts.LoadRules(r.Context(), d.policies)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

func (d *deps) handleAlertEvaluate(w http.ResponseWriter, r *http.Request) {
	tc := d.scopeFromHeaders(r)
	if !requireScope(w, tc.Scope) {
		return
	}
	result, err := d.evaluator.Evaluate(r.Context(), tc.Scope)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleAlertSummary reports firing/silenced event counts by severity plus
// the raw metric snapshot the rules evaluated against, over a 1h window.
func (d *deps) handleAlertSummary(w http.ResponseWriter, r *http.Request) {
	tc := d.scopeFromHeaders(r)
	if !requireScope(w, tc.Scope) {
		return
	}
	firing, err := d.events.ListFiring(r.Context(), tc.Scope)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	rules, err := alerts.LoadRules(r.Context(), d.policies)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	severityByCode := make(map[string]domain.AlertSeverity, len(rules))
	for _, rule := range rules {
		severityByCode[rule.Code] = rule.Severity
	}
	bySeverity := map[string]int{}
	for _, e := range firing {
		bySeverity[string(severityByCode[e.AlertCode])]++
	}
	var snapshot alerts.Snapshot
	if d.evaluator.Metrics != nil {
		snapshot, _ = d.evaluator.Metrics.Snapshot(r.Context(), tc.Scope, time.Hour)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"firing_count":    len(firing),
		"by_severity":     bySeverity,
		"metrics_window":  snapshot.Window.String(),
		"metrics_values":  snapshot.Values,
	})
}

func (d *deps) handleAlertEvents(w http.ResponseWriter, r *http.Request) {
	tc := d.scopeFromHeaders(r)
	if !requireScope(w, tc.Scope) {
		return
	}
	var events []domain.AlertEvent
	var err error
	if r.URL.Query().Get("firing_only") == "true" {
		events, err = d.events.ListFiring(r.Context(), tc.Scope)
	} else {
		events, err = d.events.ListAll(r.Context(), tc.Scope)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (d *deps) handleListSilences(w http.ResponseWriter, r *http.Request) {
	tc := d.scopeFromHeaders(r)
	if !requireScope(w, tc.Scope) {
		return
	}
	var silences []domain.AlertSilence
	var err error
	if r.URL.Query().Get("active_only") == "true" {
		silences, err = d.silences.ListActive(r.Context(), tc.Scope, time.Now())
	} else {
		silences, err = d.silences.List(r.Context(), tc.Scope)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"silences": silences})
}

func (d *deps) handleCreateSilence(w http.ResponseWriter, r *http.Request) {
	tc := d.scopeFromHeaders(r)
	if !requireScope(w, tc.Scope) {
		return
	}
	var silence domain.AlertSilence
	if err := json.NewDecoder(r.Body).Decode(&silence); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	silence.Scope = tc.Scope
	if silence.ID == "" {
		silence.ID = uuid.NewString()
	}
	if silence.CreatedAt.IsZero() {
		silence.CreatedAt = time.Now()
	}
	created, err := d.silences.Create(r.Context(), silence)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (d *deps) handleDeleteSilence(w http.ResponseWriter, r *http.Request) {
	tc := d.scopeFromHeaders(r)
	if !requireScope(w, tc.Scope) {
		return
	}
	if err := d.silences.Delete(r.Context(), tc.Scope, r.PathValue("id")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
