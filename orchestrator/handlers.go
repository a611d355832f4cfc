// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package orchestrator

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"axonflow/scribe/shared/logger"
)

// ServiceName identifies the service in health and info responses.
const ServiceName = "Scribe Orchestration Engine"

// ServiceVersion is reported by the root endpoint.
const ServiceVersion = "1.0.0"

// ProcessRequest is the body accepted by the three /process endpoints.
type ProcessRequest struct {
	Message   string `json:"message"`
	Sender    string `json:"sender"`
	ProjectID string `json:"project_id"`
	MessageID string `json:"message_id,omitempty"`
}

// ProcessResponse is the summary returned by POST /process.
type ProcessResponse struct {
	StateID               string  `json:"state_id"`
	Status                string  `json:"status"`
	Message               string  `json:"message"`
	ExecutionTimeMS       float64 `json:"execution_time_ms"`
	ExecutionResultsCount int     `json:"execution_results_count"`
}

// Handler is the HTTP surface over the orchestration engine.
type Handler struct {
	engine *Engine
	log    *logger.Logger
}

// NewHandler creates the HTTP handler set around an engine.
func NewHandler(engine *Engine) *Handler {
	return &Handler{
		engine: engine,
		log:    logger.New("http"),
	}
}

// Router returns the service's route table.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.recoverPanics)

	r.HandleFunc("/", h.rootHandler).Methods("GET")
	r.HandleFunc("/health", h.healthHandler).Methods("GET")

	// Processing endpoints: same request body, three output forms
	r.HandleFunc("/process", h.processHandler).Methods("POST")
	r.HandleFunc("/process/scribe-map", h.processMapHandler).Methods("POST")
	r.HandleFunc("/process/json", h.processJSONHandler).Methods("POST")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return r
}

// recoverPanics converts an escaped panic into a 500 without taking the
// process down. Detail stays in the server log; clients get a fixed body.
func (h *Handler) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() {
			if rec := recover(); rec != nil {
				h.log.Error("", "panic recovered while serving request", map[string]interface{}{
					"path":  r.URL.Path,
					"panic": fmt.Sprintf("%v", rec),
					"stack": string(debug.Stack()),
				})
				recordRequest(r.URL.Path, "error", time.Since(start).Seconds()*1000)
				h.sendJSON(w, http.StatusInternalServerError, map[string]string{
					"error": "Error processing message",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) rootHandler(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, http.StatusOK, map[string]interface{}{
		"service":     ServiceName,
		"version":     ServiceVersion,
		"description": "Hierarchical LLM orchestration engine",
		"endpoints": map[string]string{
			"GET /health":              "Health check",
			"POST /process":            "Process message (JSON summary)",
			"POST /process/scribe-map": "Process message (SCRIBE MAP text response)",
			"POST /process/json":       "Process message (detailed JSON response)",
			"GET /metrics":             "Prometheus metrics",
			"GET /":                    "This endpoint",
		},
	})
}

func (h *Handler) healthHandler(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   ServiceName,
	})
}

func (h *Handler) processHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	msg, verrs := h.decodeProcessRequest(r)
	if verrs != nil {
		h.sendValidationError(w, "process", verrs, start)
		return
	}

	state := h.engine.Process(r.Context(), msg)
	executionTimeMS := time.Since(start).Seconds() * 1000

	status := string(OverallStatusCompleted)
	if state.Evaluation != nil {
		status = string(state.Evaluation.OverallStatus)
	}

	recordRequest("process", "success", executionTimeMS)
	h.sendJSON(w, http.StatusOK, ProcessResponse{
		StateID:               state.StateID,
		Status:                status,
		Message:               "Orchestration completed successfully",
		ExecutionTimeMS:       executionTimeMS,
		ExecutionResultsCount: state.ExecutionResults.Len(),
	})
}

func (h *Handler) processMapHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	msg, verrs := h.decodeProcessRequest(r)
	if verrs != nil {
		h.sendValidationError(w, "process_scribe_map", verrs, start)
		return
	}

	state := h.engine.Process(r.Context(), msg)
	executionTimeMS := time.Since(start).Seconds() * 1000
	scribeMap := RenderMap(state)

	recordRequest("process_scribe_map", "success", executionTimeMS)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-State-ID", state.StateID)
	w.Header().Set("X-Execution-Time-Ms", fmt.Sprintf("%.2f", executionTimeMS))
	w.Header().Set("X-Tasks-Executed", strconv.Itoa(state.ExecutionResults.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(scribeMap)); err != nil {
		h.log.ErrorWithCause(state.StateID, "failed to write map response", err, nil)
	}
}

func (h *Handler) processJSONHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	msg, verrs := h.decodeProcessRequest(r)
	if verrs != nil {
		h.sendValidationError(w, "process_json", verrs, start)
		return
	}

	state := h.engine.Process(r.Context(), msg)
	executionTimeMS := time.Since(start).Seconds() * 1000

	payload := RenderJSON(state)
	payload["execution_time_ms"] = executionTimeMS

	recordRequest("process_json", "success", executionTimeMS)
	w.Header().Set("X-State-ID", state.StateID)
	w.Header().Set("X-Execution-Time-Ms", fmt.Sprintf("%.2f", executionTimeMS))
	h.sendJSON(w, http.StatusOK, payload)
}

// decodeProcessRequest parses and validates a /process body. A nil error
// slice means the message is ready for the engine.
func (h *Handler) decodeProcessRequest(r *http.Request) (InputMessage, []FieldError) {
	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return InputMessage{}, []FieldError{{Field: "body", Message: "Invalid JSON payload"}}
	}

	msg := InputMessage{
		Message:   req.Message,
		Sender:    req.Sender,
		ProjectID: req.ProjectID,
		MessageID: req.MessageID,
	}

	if errs := ValidateInputMessage(msg); len(errs) > 0 {
		return InputMessage{}, errs
	}

	return msg, nil
}

func (h *Handler) sendValidationError(w http.ResponseWriter, endpoint string, details []FieldError, start time.Time) {
	recordRequest(endpoint, "validation_error", time.Since(start).Seconds()*1000)
	h.sendJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{
		Error:   "Validation failed",
		Details: details,
	})
}

func (h *Handler) sendJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.ErrorWithCause("", "error encoding response", err, nil)
	}
}
