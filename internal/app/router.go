package app

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	repoerrors "scrollguard/internal/infrastructure/errors"
	"scrollguard/internal/infrastructure/logging"
)

// MessageType names one request understood by the router
type MessageType string

const (
	MsgGetProductivityStats      MessageType = "GET_PRODUCTIVITY_STATS"
	MsgGetHistoricalActivity     MessageType = "GET_HISTORICAL_ACTIVITY"
	MsgGetKnowledgeGraph         MessageType = "GET_KNOWLEDGE_GRAPH"
	MsgGetRAGContext             MessageType = "GET_RAG_CONTEXT"
	MsgGetStorageUsage           MessageType = "GET_STORAGE_USAGE"
	MsgExportData                MessageType = "EXPORT_DATA"
	MsgImportData                MessageType = "IMPORT_DATA"
	MsgApplyRetention            MessageType = "APPLY_RETENTION"
	MsgAddJournalEntry           MessageType = "ADD_JOURNAL_ENTRY"
	MsgGetJournalEntries         MessageType = "GET_JOURNAL_ENTRIES"
	MsgSearchJournal             MessageType = "SEARCH_JOURNAL"
	MsgSaveDailyMetric           MessageType = "SAVE_DAILY_METRIC"
	MsgRecordPattern             MessageType = "RECORD_PATTERN"
	MsgGetRecentPatterns         MessageType = "GET_RECENT_PATTERNS"
	MsgSaveSiteActivity          MessageType = "SAVE_SITE_ACTIVITY"
	MsgGetTopSites               MessageType = "GET_TOP_SITES"
	MsgSaveReport                MessageType = "SAVE_REPORT"
	MsgGetRecentReports          MessageType = "GET_RECENT_REPORTS"
	MsgClearReports              MessageType = "CLEAR_REPORTS"
	MsgGetPreferences            MessageType = "GET_PREFERENCES"
	MsgUpdatePreferences         MessageType = "UPDATE_PREFERENCES"
	MsgGetNudgeSettings          MessageType = "GET_NUDGE_SETTINGS"
	MsgUpdateNudgeSettings       MessageType = "UPDATE_NUDGE_SETTINGS"
	MsgGetTabGroupingSettings    MessageType = "GET_TAB_GROUPING_SETTINGS"
	MsgUpdateTabGroupingSettings MessageType = "UPDATE_TAB_GROUPING_SETTINGS"
)

// Request is one message sent to the store
type Request struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the uniform reply. On failure Data holds the empty value of the
// message and Code names the error category.
type Response struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
	Code  string          `json:"code,omitempty"`
}

// HandlerFunc answers one message type
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

type route struct {
	handler HandlerFunc
	empty   any
	write   bool
}

// Router dispatches requests to registered handlers
type Router struct {
	mu      sync.RWMutex
	routes  map[MessageType]route
	onWrite func()
	logger  logging.Logger
}

// NewRouter creates an empty router
func NewRouter(logger logging.Logger) *Router {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Router{routes: make(map[MessageType]route), logger: logger}
}

// Handle registers a read handler. empty is returned as data on failure.
func (r *Router) Handle(t MessageType, h HandlerFunc, empty any) {
	r.register(t, route{handler: h, empty: empty})
}

// HandleWrite registers a handler whose success triggers the write hook
func (r *Router) HandleWrite(t MessageType, h HandlerFunc, empty any) {
	r.register(t, route{handler: h, empty: empty, write: true})
}

func (r *Router) register(t MessageType, rt route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[t] = rt
}

// OnWrite sets the hook called after every successful write message
func (r *Router) OnWrite(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onWrite = fn
}

// Types lists the registered message types in sorted order
func (r *Router) Types() []MessageType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MessageType, 0, len(r.routes))
	for t := range r.routes {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Dispatch runs the handler for req to completion. Cancelling ctx does not
// interrupt an operation once issued.
func (r *Router) Dispatch(ctx context.Context, req Request) Response {
	start := time.Now()

	r.mu.RLock()
	rt, ok := r.routes[req.Type]
	onWrite := r.onWrite
	r.mu.RUnlock()

	if !ok {
		return r.fail(req.Type, nil, repoerrors.HandleValidationError("Dispatch", "type", string(req.Type), "unknown message type"))
	}

	result, err := rt.handler(context.WithoutCancel(ctx), req.Payload)
	if err != nil {
		return r.fail(req.Type, rt.empty, err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return r.fail(req.Type, rt.empty, repoerrors.NewStoreError(string(req.Type), err, repoerrors.ErrCodeInternal))
	}

	if rt.write && onWrite != nil {
		onWrite()
	}

	logging.LogOperation(r.logger, string(req.Type), time.Since(start), nil)
	return Response{OK: true, Data: data}
}

// Call dispatches req and waits for the reply or for ctx. A reply arriving
// after ctx is done is discarded; the operation itself still completes.
func (r *Router) Call(ctx context.Context, req Request) (Response, error) {
	reply := make(chan Response, 1)
	go func() {
		reply <- r.Dispatch(ctx, req)
	}()

	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		return Response{}, repoerrors.NewStoreErrorWithContext("Call", ctx.Err(), repoerrors.ErrCodeTimeout,
			map[string]string{"type": string(req.Type)})
	}
}

func (r *Router) fail(t MessageType, empty any, err error) Response {
	logging.LogError(r.logger, err, string(t), nil)

	data, mErr := json.Marshal(empty)
	if mErr != nil {
		data = json.RawMessage("null")
	}
	return Response{
		OK:    false,
		Data:  data,
		Error: err.Error(),
		Code:  repoerrors.CodeOf(err).String(),
	}
}

// decodePayload unmarshals an optional payload. An absent or null payload
// yields the zero value.
func decodePayload[T any](op string, payload json.RawMessage) (T, error) {
	var v T
	if len(payload) == 0 || string(payload) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, repoerrors.HandleValidationError(op, "payload", "", err.Error())
	}
	return v, nil
}
