package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// DiagnosticEventType identifies the type of diagnostic event.
type DiagnosticEventType string

const (
	EventTypeDecision      DiagnosticEventType = "decision.made"
	EventTypeProviderFetch DiagnosticEventType = "provider.fetch"
	EventTypeCachePurge    DiagnosticEventType = "cache.purge"
	EventTypeJanitorRun    DiagnosticEventType = "janitor.run"
)

// DiagnosticEvent is the base event structure.
type DiagnosticEvent struct {
	Type DiagnosticEventType `json:"type"`
	Seq  int64               `json:"seq"`
	Ts   int64               `json:"ts"`
}

// DecisionEvent tracks a single variation decision.
type DecisionEvent struct {
	DiagnosticEvent
	ExperimentID string `json:"experiment_id"`
	Variation    int    `json:"variation"`
	Source       string `json:"source"`
	Fresh        bool   `json:"fresh"`
	RequestID    string `json:"request_id,omitempty"`
	DurationMs   int64  `json:"duration_ms,omitempty"`
}

// ProviderFetchEvent tracks an upstream experiment fetch.
type ProviderFetchEvent struct {
	DiagnosticEvent
	ExperimentID string `json:"experiment_id"`
	Outcome      string `json:"outcome"` // "success", "error", "cooldown"
	Attempts     int    `json:"attempts,omitempty"`
	DurationMs   int64  `json:"duration_ms,omitempty"`
	Error        string `json:"error,omitempty"`
}

// CachePurgeEvent tracks a cache purge pass.
type CachePurgeEvent struct {
	DiagnosticEvent
	ExpiredOnly bool `json:"expired_only"`
	Removed     int  `json:"removed"`
}

// JanitorRunEvent tracks a scheduled maintenance task run.
type JanitorRunEvent struct {
	DiagnosticEvent
	Task       string `json:"task"`
	Outcome    string `json:"outcome"` // "completed", "error"
	Removed    int64  `json:"removed,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
}

// DiagnosticEventPayload is a union type for all diagnostic events.
type DiagnosticEventPayload interface {
	EventType() DiagnosticEventType
	Sequence() int64
	Timestamp() int64
}

func (e *DiagnosticEvent) EventType() DiagnosticEventType { return e.Type }
func (e *DiagnosticEvent) Sequence() int64                { return e.Seq }
func (e *DiagnosticEvent) Timestamp() int64               { return e.Ts }

// DiagnosticListener receives diagnostic events.
type DiagnosticListener func(event DiagnosticEventPayload)

// DiagnosticEmitter manages diagnostic event emission.
type DiagnosticEmitter struct {
	mu        sync.RWMutex
	seq       int64
	enabled   bool
	nextID    int
	listeners map[int]DiagnosticListener
}

var globalEmitter = &DiagnosticEmitter{}

// SetDiagnosticsEnabled enables or disables diagnostic events.
func SetDiagnosticsEnabled(enabled bool) {
	globalEmitter.mu.Lock()
	defer globalEmitter.mu.Unlock()
	globalEmitter.enabled = enabled
}

// IsDiagnosticsEnabled returns whether diagnostics are enabled.
func IsDiagnosticsEnabled() bool {
	globalEmitter.mu.RLock()
	defer globalEmitter.mu.RUnlock()
	return globalEmitter.enabled
}

// OnDiagnosticEvent registers a listener for diagnostic events and
// returns a function that unregisters it.
func OnDiagnosticEvent(listener DiagnosticListener) func() {
	globalEmitter.mu.Lock()
	defer globalEmitter.mu.Unlock()
	if globalEmitter.listeners == nil {
		globalEmitter.listeners = make(map[int]DiagnosticListener)
	}
	id := globalEmitter.nextID
	globalEmitter.nextID++
	globalEmitter.listeners[id] = listener

	return func() {
		globalEmitter.mu.Lock()
		defer globalEmitter.mu.Unlock()
		delete(globalEmitter.listeners, id)
	}
}

// nextSeq returns the next sequence number.
func nextSeq() int64 {
	return atomic.AddInt64(&globalEmitter.seq, 1)
}

// emit sends an event to all listeners.
func emit(event DiagnosticEventPayload) {
	globalEmitter.mu.RLock()
	if !globalEmitter.enabled {
		globalEmitter.mu.RUnlock()
		return
	}
	listeners := make([]DiagnosticListener, 0, len(globalEmitter.listeners))
	for _, l := range globalEmitter.listeners {
		listeners = append(listeners, l)
	}
	globalEmitter.mu.RUnlock()

	for _, listener := range listeners {
		func() {
			defer func() {
				if recovered := recover(); recovered != nil {
					_ = recovered
				}
			}() // Ignore listener panics
			listener(event)
		}()
	}
}

// EmitDecision emits a decision event.
func EmitDecision(e *DecisionEvent) {
	e.Type = EventTypeDecision
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitProviderFetch emits a provider fetch event.
func EmitProviderFetch(e *ProviderFetchEvent) {
	e.Type = EventTypeProviderFetch
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitCachePurge emits a cache purge event.
func EmitCachePurge(e *CachePurgeEvent) {
	e.Type = EventTypeCachePurge
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitJanitorRun emits a janitor run event.
func EmitJanitorRun(e *JanitorRunEvent) {
	e.Type = EventTypeJanitorRun
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// DiagnosticBuffer is a DiagnosticListener that retains the most
// recent events in a fixed-size ring.
type DiagnosticBuffer struct {
	mu     sync.Mutex
	max    int
	events []DiagnosticEventPayload
}

// NewDiagnosticBuffer creates a buffer holding up to maxSize events.
func NewDiagnosticBuffer(maxSize int) *DiagnosticBuffer {
	if maxSize <= 0 {
		maxSize = 256
	}
	return &DiagnosticBuffer{max: maxSize}
}

// Record appends an event, evicting the oldest when full. It has the
// DiagnosticListener signature so it can be passed to OnDiagnosticEvent.
func (b *DiagnosticBuffer) Record(event DiagnosticEventPayload) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	if len(b.events) > b.max {
		b.events = b.events[len(b.events)-b.max:]
	}
}

// Snapshot returns the buffered events, oldest first.
func (b *DiagnosticBuffer) Snapshot() []DiagnosticEventPayload {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]DiagnosticEventPayload, len(b.events))
	copy(out, b.events)
	return out
}

// Len returns the number of buffered events.
func (b *DiagnosticBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// ResetDiagnosticsForTest resets diagnostic state for testing.
func ResetDiagnosticsForTest() {
	globalEmitter.mu.Lock()
	defer globalEmitter.mu.Unlock()
	atomic.StoreInt64(&globalEmitter.seq, 0)
	globalEmitter.listeners = nil
}
