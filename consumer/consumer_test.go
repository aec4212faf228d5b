package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/bluzky/pocsync/executor"
	"github.com/bluzky/pocsync/pipeline"
	"github.com/bluzky/pocsync/registry"
	"github.com/bluzky/pocsync/router"
	"github.com/bluzky/pocsync/store"
)

// fakePublisher records every published envelope in place of a real broker.
type fakePublisher struct {
	mu        sync.Mutex
	published []publishedMsg
	failQueue string
	attempts  int
}

type publishedMsg struct {
	queue string
	body  []byte
}

func (f *fakePublisher) Publish(ctx context.Context, queue string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if queue == f.failQueue {
		return errPublishFailed
	}
	f.published = append(f.published, publishedMsg{queue: queue, body: body})
	return nil
}

var errPublishFailed = &publishError{}

type publishError struct{}

func (e *publishError) Error() string { return "publish failed" }

func testLogger() *slog.Logger {
	return slog.Default()
}

func TestEventConsumer_Handle_MatchesAndPublishes(t *testing.T) {
	p := pipeline.New("lazada-orders", map[string]any{"source": "lazada"}, []pipeline.Step{
		pipeline.NewStep("trigger", pipeline.StepTypeTrigger, "pocsync.builtin", "pocsync.webhook.trigger", nil, 0),
	})
	dir := store.NewStaticDirectory([]pipeline.Pipeline{p})
	r := router.New([]router.Rule{
		{Queue: "lazada_pipeline_queue", Pattern: map[string]any{"source": "lazada"}},
		{Queue: "default_pipeline_queue", Pattern: map[string]any{}},
	})
	pub := &fakePublisher{}

	ec := &EventConsumer{Directory: dir, Router: r, Publisher: pub, Logger: testLogger()}

	body, _ := json.Marshal(map[string]any{"source": "lazada", "order_id": "123"})
	if err := ec.handle(context.Background(), body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pub.published) != 1 {
		t.Fatalf("expected 1 published envelope, got %d", len(pub.published))
	}
	if pub.published[0].queue != "lazada_pipeline_queue" {
		t.Fatalf("unexpected target queue: %s", pub.published[0].queue)
	}

	var env Envelope
	if err := json.Unmarshal(pub.published[0].body, &env); err != nil {
		t.Fatalf("failed to decode published envelope: %v", err)
	}
	if env.Pipeline.ID != p.ID {
		t.Fatalf("expected envelope to carry the matched pipeline")
	}
	if env.Context["order_id"] != "123" {
		t.Fatalf("expected envelope context to carry the original event")
	}
}

func TestEventConsumer_Handle_MalformedMessageDoesNotError(t *testing.T) {
	ec := &EventConsumer{
		Directory: store.NewStaticDirectory(nil),
		Router:    router.New(nil),
		Publisher: &fakePublisher{},
		Logger:    testLogger(),
	}

	if err := ec.handle(context.Background(), []byte("not json")); err != nil {
		t.Fatalf("expected handle to swallow decode errors (ack-and-drop), got %v", err)
	}
}

func TestEventConsumer_Handle_NoRouteIsLoggedAndDropped(t *testing.T) {
	p := pipeline.New("unrouted", map[string]any{}, []pipeline.Step{
		pipeline.NewStep("trigger", pipeline.StepTypeTrigger, "pocsync.builtin", "pocsync.webhook.trigger", nil, 0),
	})
	dir := store.NewStaticDirectory([]pipeline.Pipeline{p})
	r := router.New(nil) // no rules at all -> ErrNoMatch for everything
	pub := &fakePublisher{}

	ec := &EventConsumer{Directory: dir, Router: r, Publisher: pub, Logger: testLogger()}

	body, _ := json.Marshal(map[string]any{"anything": true})
	if err := ec.handle(context.Background(), body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.published) != 0 {
		t.Fatalf("expected no publications when no route matches")
	}
}

func TestEventConsumer_Handle_PublishFailureDoesNotBlockOtherMatches(t *testing.T) {
	p1 := pipeline.New("one", map[string]any{}, []pipeline.Step{
		pipeline.NewStep("trigger", pipeline.StepTypeTrigger, "pocsync.builtin", "pocsync.webhook.trigger", nil, 0),
	})
	p2 := pipeline.New("two", map[string]any{}, []pipeline.Step{
		pipeline.NewStep("trigger", pipeline.StepTypeTrigger, "pocsync.builtin", "pocsync.webhook.trigger", nil, 0),
	})
	dir := store.NewStaticDirectory([]pipeline.Pipeline{p1, p2})
	r := router.New([]router.Rule{
		{Queue: "bad_queue", Pattern: map[string]any{}},
	})
	pub := &fakePublisher{failQueue: "bad_queue"}

	ec := &EventConsumer{Directory: dir, Router: r, Publisher: pub, Logger: testLogger()}

	body, _ := json.Marshal(map[string]any{})
	if err := ec.handle(context.Background(), body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Both publishes fail (same queue), but handle must still process both
	// matches without stopping early or returning an error.
	if pub.attempts != 2 {
		t.Fatalf("expected a publish attempt for each of the 2 matches, got %d", pub.attempts)
	}
	if len(pub.published) != 0 {
		t.Fatalf("expected 0 successful publications, got %d", len(pub.published))
	}
}

func TestPipelineConsumer_Handle_ExecutesAndReportsCompletion(t *testing.T) {
	reg := registry.New()
	reg.Register(registry.Integration{
		Name: "pocsync.builtin",
		Actions: map[string]registry.ActionDefinition{
			"pocsync.webhook.trigger": {
				Name: "pocsync.webhook.trigger",
				Executor: func(ctx context.Context, input map[string]any) (map[string]any, error) {
					return input, nil
				},
			},
		},
	})
	pe := executor.NewPipelineExecutor(executor.NewStepExecutor(reg), nil)

	var completed *executor.ExecutionRecord
	pc := &PipelineConsumer{
		Executor: pe,
		Logger:   testLogger(),
		OnComplete: func(record *executor.ExecutionRecord) {
			completed = record
		},
	}

	p := pipeline.New("single-step", nil, []pipeline.Step{
		pipeline.NewStep("trigger", pipeline.StepTypeTrigger, "pocsync.builtin", "pocsync.webhook.trigger", nil, 0),
	})
	body, _ := json.Marshal(Envelope{Pipeline: p, Context: map[string]any{"order_id": "123"}})

	if err := pc.handle(context.Background(), body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if completed == nil {
		t.Fatalf("expected OnComplete to be called")
	}
	if !completed.Success() {
		t.Fatalf("expected successful execution, got %s", completed.Status)
	}
}

func TestPipelineConsumer_Handle_MalformedMessageDoesNotError(t *testing.T) {
	pc := &PipelineConsumer{Logger: testLogger()}
	if err := pc.handle(context.Background(), []byte("not json")); err != nil {
		t.Fatalf("expected handle to swallow decode errors (ack-and-drop), got %v", err)
	}
}
