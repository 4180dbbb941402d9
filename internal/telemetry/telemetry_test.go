package telemetry

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func TestPort_ZeroValueDrops(t *testing.T) {
	var p Port
	if p.Attached() {
		t.Fatal("zero port must not be attached")
	}
	p.Emit(1, PhaseRS, CodeRSMetric, 0.1, 0.2) // must not panic
}

func TestPort_ForwardsToSink(t *testing.T) {
	var got []Event
	p := NewPort(SinkFunc(func(e Event) { got = append(got, e) }))
	p.Emit(1.5, PhaseGate, CodeGatePass, 0.02, 0.8)
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Code != CodeGatePass || got[0].Phase != PhaseGate || got[0].ValueA != 0.02 {
		t.Fatalf("unexpected event %+v", got[0])
	}
}

func TestRing_OverwritesOldest(t *testing.T) {
	r := NewRing(3)
	for i := 1; i <= 5; i++ {
		r.Emit(Event{Timestamp: float64(i)})
	}
	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 events, got %d", len(snap))
	}
	for i, want := range []float64{3, 4, 5} {
		if snap[i].Timestamp != want {
			t.Errorf("snap[%d]: expected %v, got %v", i, want, snap[i].Timestamp)
		}
	}
	if r.Overwritten() != 2 {
		t.Fatalf("expected 2 overwritten, got %d", r.Overwritten())
	}
}

func TestRing_DrainEmpties(t *testing.T) {
	r := NewRing(4)
	r.Emit(Event{Timestamp: 1})
	r.Emit(Event{Timestamp: 2})
	if got := r.Drain(); len(got) != 2 {
		t.Fatalf("expected 2 drained, got %d", len(got))
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty ring, got %d", r.Len())
	}
	r.Emit(Event{Timestamp: 3})
	if snap := r.Snapshot(); len(snap) != 1 || snap[0].Timestamp != 3 {
		t.Fatalf("unexpected snapshot after drain: %+v", snap)
	}
}

func TestRing_ConcurrentEmit(t *testing.T) {
	r := NewRing(64)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				r.Emit(Event{Timestamp: float64(i + 1)})
			}
		}()
	}
	wg.Wait()
	if r.Len() != 64 {
		t.Fatalf("expected full ring, got %d", r.Len())
	}
	if r.Overwritten() != 800-64 {
		t.Fatalf("expected %d overwritten, got %d", 800-64, r.Overwritten())
	}
}

func TestCSV_WriteThenRead(t *testing.T) {
	in := []Event{
		{Timestamp: 0.5, Phase: PhaseRS, Code: CodeRSMetric, ValueA: 0.01, ValueB: -0.002},
		{Timestamp: 0.6, Phase: PhaseGate, Code: CodeGatePass, ValueA: 0.02, ValueB: 0.8},
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 events, got %d", len(out))
	}
	if out[1].Code != CodeGatePass || out[1].Phase != PhaseGate || out[1].ValueB != 0.8 {
		t.Fatalf("unexpected event %+v", out[1])
	}
}

func TestReadCSV_LegacyLayoutWithoutPhase(t *testing.T) {
	data := "timestamp,code,valueA,valueB\n1.0,128,0.03,0.6\n"
	events, err := ReadCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(events) != 1 || events[0].Code != CodeWindowSummary {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestReadCSV_MissingColumn(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("timestamp,code\n1,2\n")); err == nil {
		t.Fatal("expected error for missing columns")
	}
}

func TestSummarize(t *testing.T) {
	events := []Event{
		{Timestamp: 0, Code: CodeRSMetric}, // ignored
		{Timestamp: 1, Code: CodeRSMetric},
		{Timestamp: 1.1, Code: CodeRSMetric},
		{Timestamp: 1.2, Code: CodeRSLocality},
		{Timestamp: 1.3, Code: CodeWindowSummary, ValueA: 0.02, ValueB: 0.5},
		{Timestamp: 1.4, Code: CodeWindowSummary, ValueA: 0.04, ValueB: 0.3},
		{Timestamp: 1.5, Code: CodeGatePass},
		{Timestamp: 1.6, Code: CodeGateFail},
		{Timestamp: 1.7, Code: CodeFinalized},
	}
	s := Summarize("run", events)
	if s.RSFrames != 2 || s.RSRefusals != 1 || s.Windows != 2 {
		t.Fatalf("unexpected counts %+v", s)
	}
	if s.Pass != 1 || s.Fail != 1 || s.Finalized != 1 {
		t.Fatalf("unexpected verdict counts %+v", s)
	}
	if s.PeakWindowShear != 0.04 || s.PeakStructure != 0.5 {
		t.Fatalf("unexpected peaks %+v", s)
	}
}
