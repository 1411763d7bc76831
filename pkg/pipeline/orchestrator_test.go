package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/andrisyah/vokalis/pkg/frames"
	"github.com/andrisyah/vokalis/pkg/metrics"
)

type tagProcessor struct {
	name string
	mu   sync.Mutex
	seen []frames.Frame
}

func (p *tagProcessor) Name() string { return p.name }

func (p *tagProcessor) Process(f frames.Frame) ([]frames.Frame, error) {
	p.mu.Lock()
	p.seen = append(p.seen, f)
	p.mu.Unlock()
	return []frames.Frame{f}, nil
}

type dropProcessor struct{}

func (dropProcessor) Name() string { return "drop" }

func (dropProcessor) Process(f frames.Frame) ([]frames.Frame, error) {
	if f.Kind() == frames.KindAudio {
		return nil, nil
	}
	return []frames.Frame{f}, nil
}

func testPipelineConfig(async bool) Config {
	return Config{
		Async:         async,
		StageBuffer:   16,
		HighCapacity:  32,
		LowCapacity:   64,
		FairnessRatio: 3,
	}
}

func collectSink() (func(frames.Frame), func() []frames.Frame) {
	var mu sync.Mutex
	var got []frames.Frame
	sink := func(f frames.Frame) {
		mu.Lock()
		got = append(got, f)
		mu.Unlock()
	}
	snapshot := func() []frames.Frame {
		mu.Lock()
		defer mu.Unlock()
		out := make([]frames.Frame, len(got))
		copy(out, got)
		return out
	}
	return sink, snapshot
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("condition not reached")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestOrchestratorSyncDeliversToSink(t *testing.T) {
	for _, async := range []bool{false, true} {
		proc := &tagProcessor{name: "tag"}
		orch := New(testPipelineConfig(async))
		_ = orch.AddProcessor(proc)
		sink, snapshot := collectSink()
		orch.SetSink(sink)
		orch.SetContext(context.Background())
		if err := orch.Start(); err != nil {
			t.Fatalf("start (async=%v): %v", async, err)
		}

		for i := 0; i < 3; i++ {
			orch.In() <- frames.NewControlFrame("s-1", int64(i+1), frames.ControlFlush, nil)
		}
		waitFor(t, func() bool { return len(snapshot()) == 3 })
		_ = orch.Stop()
	}
}

func TestOrchestratorProcessorCanDropFrames(t *testing.T) {
	orch := New(testPipelineConfig(false))
	_ = orch.AddProcessor(dropProcessor{})
	sink, snapshot := collectSink()
	orch.SetSink(sink)
	if err := orch.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer orch.Stop()

	orch.In() <- frames.NewAudioFrame("s-1", 1, []byte{0, 0}, 48000, 1, nil)
	orch.In() <- frames.NewControlFrame("s-1", 2, frames.ControlSessionEnd, nil)

	waitFor(t, func() bool { return len(snapshot()) == 1 })
	got := snapshot()
	if got[0].Kind() != frames.KindControl {
		t.Fatalf("surviving frame kind = %s, want control", got[0].Kind())
	}
}

func TestOrchestratorRecordsFlowEvents(t *testing.T) {
	obs := metrics.NewMemoryObserver()
	orch := New(testPipelineConfig(false))
	_ = orch.AddProcessor(&tagProcessor{name: "tag"})
	sink, snapshot := collectSink()
	orch.SetSink(sink)
	orch.SetObserver(obs)
	if err := orch.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer orch.Stop()

	orch.In() <- frames.NewControlFrame("s-1", 1, frames.ControlFlush, nil)
	waitFor(t, func() bool { return len(snapshot()) == 1 })
	waitFor(t, func() bool { return obs.CountByName(metrics.EventFrameOut) >= 1 })

	if obs.CountByName(metrics.EventFrameIn) < 1 {
		t.Fatal("missing frame_in event")
	}
	if obs.CountByName(metrics.EventStageLatencyUS) < 1 {
		t.Fatal("missing stage latency event")
	}
}

func TestSessionRegistryLifecycle(t *testing.T) {
	var built int
	reg := NewSessionRegistry(func(ctx context.Context, streamID, traceID string) (Orchestrator, error) {
		built++
		return New(testPipelineConfig(false)), nil
	})

	sess, created, err := reg.GetOrCreate("s-1", "t-1")
	if err != nil || !created {
		t.Fatalf("first GetOrCreate: created=%v err=%v", created, err)
	}
	if sess.StreamID != "s-1" || sess.TraceID != "t-1" {
		t.Fatalf("unexpected session identity: %+v", sess)
	}

	again, created, err := reg.GetOrCreate("s-1", "t-other")
	if err != nil || created {
		t.Fatalf("second GetOrCreate must reuse: created=%v err=%v", created, err)
	}
	if again != sess {
		t.Fatal("expected the same session")
	}
	if built != 1 {
		t.Fatalf("factory ran %d times, want 1", built)
	}
	if reg.Count() != 1 {
		t.Fatalf("count = %d, want 1", reg.Count())
	}

	reg.Remove("s-1")
	if reg.Count() != 0 {
		t.Fatalf("count after remove = %d, want 0", reg.Count())
	}
	if _, ok := reg.Get("s-1"); ok {
		t.Fatal("session still resolvable after remove")
	}
}

func TestSessionRegistryRejectsEmptyStreamID(t *testing.T) {
	reg := NewSessionRegistry(func(ctx context.Context, streamID, traceID string) (Orchestrator, error) {
		return New(testPipelineConfig(false)), nil
	})
	sess, created, err := reg.GetOrCreate("", "t-1")
	if err == nil {
		t.Fatal("empty stream id must be rejected")
	}
	if sess != nil || created {
		t.Fatalf("no session expected: sess=%v created=%v", sess, created)
	}
}

func TestSessionRegistryWaitForEmpty(t *testing.T) {
	reg := NewSessionRegistry(func(ctx context.Context, streamID, traceID string) (Orchestrator, error) {
		return New(testPipelineConfig(false)), nil
	})
	if _, _, err := reg.GetOrCreate("s-1", "t-1"); err != nil {
		t.Fatalf("create: %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		reg.CloseAll()
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if !reg.WaitForEmpty(ctx, 10*time.Millisecond) {
		t.Fatal("registry did not drain")
	}
}
