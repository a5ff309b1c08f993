package observability

import (
	"testing"
)

func resetDiagnostics(t *testing.T) {
	t.Helper()
	ResetDiagnosticsForTest()
	SetDiagnosticsEnabled(true)
	t.Cleanup(func() {
		SetDiagnosticsEnabled(false)
		ResetDiagnosticsForTest()
	})
}

func TestEmitterDisabledByDefault(t *testing.T) {
	ResetDiagnosticsForTest()
	SetDiagnosticsEnabled(false)
	t.Cleanup(ResetDiagnosticsForTest)

	called := false
	unsubscribe := OnDiagnosticEvent(func(DiagnosticEventPayload) {
		called = true
	})
	defer unsubscribe()

	EmitDecision(&DecisionEvent{ExperimentID: "myExp", Variation: 3})
	if called {
		t.Error("expected no events while diagnostics are disabled")
	}
}

func TestEmitDecision(t *testing.T) {
	resetDiagnostics(t)

	var got DiagnosticEventPayload
	unsubscribe := OnDiagnosticEvent(func(e DiagnosticEventPayload) {
		got = e
	})
	defer unsubscribe()

	EmitDecision(&DecisionEvent{
		ExperimentID: "myExp",
		Variation:    3,
		Source:       "draw",
		Fresh:        true,
	})

	if got == nil {
		t.Fatal("expected listener to receive event")
	}
	if got.EventType() != EventTypeDecision {
		t.Errorf("EventType = %q, want %q", got.EventType(), EventTypeDecision)
	}
	if got.Sequence() == 0 {
		t.Error("expected non-zero sequence")
	}
	if got.Timestamp() == 0 {
		t.Error("expected non-zero timestamp")
	}

	decision, ok := got.(*DecisionEvent)
	if !ok {
		t.Fatalf("expected *DecisionEvent, got %T", got)
	}
	if decision.ExperimentID != "myExp" || decision.Variation != 3 {
		t.Errorf("unexpected payload: %+v", decision)
	}
}

func TestSequenceIncreases(t *testing.T) {
	resetDiagnostics(t)

	var seqs []int64
	unsubscribe := OnDiagnosticEvent(func(e DiagnosticEventPayload) {
		seqs = append(seqs, e.Sequence())
	})
	defer unsubscribe()

	EmitProviderFetch(&ProviderFetchEvent{ExperimentID: "a", Outcome: "success"})
	EmitCachePurge(&CachePurgeEvent{ExpiredOnly: true, Removed: 2})
	EmitJanitorRun(&JanitorRunEvent{Task: "cache_purge", Outcome: "completed"})

	if len(seqs) != 3 {
		t.Fatalf("expected 3 events, got %d", len(seqs))
	}
	for i := 1; i < len(seqs); i++ {
		if seqs[i] <= seqs[i-1] {
			t.Errorf("sequence not increasing: %v", seqs)
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	resetDiagnostics(t)

	count := 0
	unsubscribe := OnDiagnosticEvent(func(DiagnosticEventPayload) {
		count++
	})

	EmitDecision(&DecisionEvent{ExperimentID: "a"})
	unsubscribe()
	EmitDecision(&DecisionEvent{ExperimentID: "b"})

	if count != 1 {
		t.Errorf("expected 1 delivery after unsubscribe, got %d", count)
	}
}

func TestListenerPanicIsContained(t *testing.T) {
	resetDiagnostics(t)

	unsubscribePanic := OnDiagnosticEvent(func(DiagnosticEventPayload) {
		panic("listener boom")
	})
	defer unsubscribePanic()

	received := false
	unsubscribe := OnDiagnosticEvent(func(DiagnosticEventPayload) {
		received = true
	})
	defer unsubscribe()

	EmitDecision(&DecisionEvent{ExperimentID: "myExp"})
	if !received {
		t.Error("expected healthy listener to still receive the event")
	}
}

func TestDiagnosticBuffer(t *testing.T) {
	resetDiagnostics(t)

	buf := NewDiagnosticBuffer(3)
	unsubscribe := OnDiagnosticEvent(buf.Record)
	defer unsubscribe()

	for i := 0; i < 5; i++ {
		EmitDecision(&DecisionEvent{ExperimentID: "myExp", Variation: i})
	}

	if buf.Len() != 3 {
		t.Fatalf("Len = %d, want 3", buf.Len())
	}

	events := buf.Snapshot()
	if len(events) != 3 {
		t.Fatalf("Snapshot returned %d events, want 3", len(events))
	}

	// Oldest two were evicted, so the ring holds variations 2, 3, 4.
	for i, e := range events {
		decision, ok := e.(*DecisionEvent)
		if !ok {
			t.Fatalf("expected *DecisionEvent, got %T", e)
		}
		if decision.Variation != i+2 {
			t.Errorf("events[%d].Variation = %d, want %d", i, decision.Variation, i+2)
		}
	}
}

func TestDiagnosticBufferDefaultSize(t *testing.T) {
	buf := NewDiagnosticBuffer(0)
	if buf.max != 256 {
		t.Errorf("default max = %d, want 256", buf.max)
	}
}
