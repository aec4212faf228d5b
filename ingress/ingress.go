// Package ingress implements the two HTTP entrypoints spec.md §4.8
// describes: the async webhook handler, which publishes the inbound event
// to the ingress queue and replies immediately, and the sync call handler,
// which matches the event against the pipeline directory and executes the
// first hit in-request. Routing is done with net/http's 1.22+ ServeMux
// method+wildcard patterns and r.PathValue, matching the teacher's
// module/http_router.go (StandardHTTPRouter), which also builds its mux
// around path-template placeholders rather than a third-party router.
package ingress

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bluzky/pocsync/event"
	"github.com/bluzky/pocsync/executor"
	"github.com/bluzky/pocsync/match"
	"github.com/bluzky/pocsync/metrics"
	"github.com/bluzky/pocsync/pipeline"
	"github.com/bluzky/pocsync/store"
)

// Publisher is the narrow broker dependency the async handler needs.
type Publisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// Handlers wires the HTTP surface documented in spec.md §6: async webhook
// publish and sync match-and-execute.
type Handlers struct {
	Directory  store.Directory
	Publisher  Publisher
	Executor   *executor.PipelineExecutor
	EventQueue string
	Logger     *slog.Logger
	Metrics    *metrics.Collector
}

// NewHandlers constructs a Handlers with required collaborators. eventQueue
// defaults to "inn_event_queue" (spec.md §6) if empty.
func NewHandlers(dir store.Directory, pub Publisher, exec *executor.PipelineExecutor, eventQueue string, logger *slog.Logger) *Handlers {
	if eventQueue == "" {
		eventQueue = "inn_event_queue"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		Directory:  dir,
		Publisher:  pub,
		Executor:   exec,
		EventQueue: eventQueue,
		Logger:     logger,
	}
}

// Mount registers the async and sync routes under /api on mux.
func (h *Handlers) Mount(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/webhook/{app_id}/{path...}", h.Webhook)
	mux.HandleFunc("POST /api/webhook/{app_id}/{path...}", h.Webhook)
	mux.HandleFunc("GET /api/call/{app_id}/{path...}", h.Call)
	mux.HandleFunc("POST /api/call/{app_id}/{path...}", h.Call)
}

// buildEvent constructs an Event from an inbound request, per spec.md §3's
// Event shape: source "webhook", the request path, method, and the merged
// query-string/JSON-body params plus headers.
func buildEvent(r *http.Request, appID string) event.Event {
	params := map[string]any{"app_id": appID}
	for k, v := range r.URL.Query() {
		if len(v) == 1 {
			params[k] = v[0]
		} else {
			anyVals := make([]any, len(v))
			for i, s := range v {
				anyVals[i] = s
			}
			params[k] = anyVals
		}
	}

	if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			for k, v := range body {
				params[k] = v
			}
		}
	}

	headers := make(map[string]any, len(r.Header))
	for k, v := range r.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	return event.Event{
		Source:  "webhook",
		Path:    r.URL.Path,
		Method:  r.Method,
		Params:  params,
		Headers: headers,
	}
}

// Webhook implements the async ingress: construct an Event, publish it to
// the ingress queue, and reply 200 immediately regardless of publish
// outcome's visibility to the caller — by design, errors here are invisible
// to the caller (spec.md §7).
func (h *Handlers) Webhook(w http.ResponseWriter, r *http.Request) {
	appID := r.PathValue("app_id")
	evt := buildEvent(r, appID)

	body, err := json.Marshal(evt.ToMap())
	if err != nil {
		h.Logger.Error("ingress: encode event failed", "error", err)
	} else if err := h.Publisher.Publish(r.Context(), h.EventQueue, body); err != nil {
		h.Logger.Error("ingress: publish event failed", "queue", h.EventQueue, "error", err)
	}

	h.recordIngress("async", http.StatusOK)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Event received and processed"})
}

// Call implements the sync ingress: match the event against the pipeline
// directory and execute the first hit in-request, per spec.md §4.8 and
// testable scenario S1.
func (h *Handlers) Call(w http.ResponseWriter, r *http.Request) {
	appID := r.PathValue("app_id")
	evt := buildEvent(r, appID)
	evtMap := evt.ToMap()

	pipelines, err := h.Directory.ListPipelines(r.Context())
	if err != nil {
		h.Logger.Error("ingress: list pipelines failed", "error", err)
		h.recordIngress("sync", http.StatusBadRequest)
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	var matched *pipeline.Pipeline
	for i := range pipelines {
		if match.Match(evtMap, pipelines[i].Pattern) {
			matched = &pipelines[i]
			break
		}
	}
	if matched == nil {
		h.recordIngress("sync", http.StatusNotFound)
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "No matching pipeline found"})
		return
	}

	executionID := executor.NewExecutionID()
	record := h.Executor.Execute(r.Context(), executionID, *matched, evtMap)
	if record.Failed() || record.Cancelled() {
		h.recordIngress("sync", http.StatusBadRequest)
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": record.Error})
		return
	}

	h.recordIngress("sync", http.StatusOK)
	writeJSON(w, http.StatusOK, map[string]any{"data": record.FinalOutput()})
}

func (h *Handlers) recordIngress(mode string, status int) {
	if h.Metrics != nil {
		h.Metrics.RecordIngress(mode, status)
	}
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
