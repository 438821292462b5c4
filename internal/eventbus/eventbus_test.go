package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/marketeros/runtime/internal/ports"
	"github.com/marketeros/runtime/internal/security"
	"github.com/marketeros/runtime/internal/task"
)

func TestEmit_SanitizerBlocksOversizedPayload(t *testing.T) {
	director := ports.NewFakeDirector()
	b := New(director, nil)
	b.Sanitizer = security.NewSanitizer(security.SanitizerConfig{MaxInputLength: 10})
	b.AddMapping(EventMapping{EventType: "manual_trigger", PipelineTemplate: "SEO Cycle", Priority: task.PriorityP2})

	r := b.Emit(context.Background(), SystemEvent{ID: "e1", Type: "manual_trigger", Data: []byte(`"this payload is far too long to pass"`)})
	if r.PipelinesTriggered != 0 {
		t.Fatalf("PipelinesTriggered = %d, want 0", r.PipelinesTriggered)
	}
	if len(r.SkippedReasons) != 1 {
		t.Fatalf("SkippedReasons = %v, want exactly one", r.SkippedReasons)
	}
	if len(director.Started) != 0 {
		t.Errorf("director.Started = %d, want 0", len(director.Started))
	}
}

func TestEmit_IdempotentWithCooldown(t *testing.T) {
	clock := ports.NewFixedClock(time.Date(2026, 2, 16, 6, 0, 0, 0, time.UTC))
	director := ports.NewFakeDirector()
	b := New(director, nil)
	b.Clock = clock

	b.AddMapping(EventMapping{EventType: "traffic_drop", PipelineTemplate: "SEO Cycle", Priority: task.PriorityP1, CooldownMs: 60000})

	r1 := b.Emit(context.Background(), SystemEvent{ID: "e1", Type: "traffic_drop"})
	if r1.PipelinesTriggered != 1 {
		t.Fatalf("r1.PipelinesTriggered = %d, want 1", r1.PipelinesTriggered)
	}
	if len(r1.SkippedReasons) != 0 {
		t.Errorf("r1.SkippedReasons = %v, want none", r1.SkippedReasons)
	}

	r2 := b.Emit(context.Background(), SystemEvent{ID: "e1", Type: "traffic_drop"})
	if r2.PipelinesTriggered != 0 {
		t.Errorf("r2.PipelinesTriggered = %d, want 0", r2.PipelinesTriggered)
	}
	if len(r2.SkippedReasons) != 1 || r2.SkippedReasons[0] != "Duplicate event ID" {
		t.Errorf("r2.SkippedReasons = %v, want [Duplicate event ID]", r2.SkippedReasons)
	}

	r3 := b.Emit(context.Background(), SystemEvent{ID: "e2", Type: "traffic_drop"})
	if r3.PipelinesTriggered != 0 {
		t.Errorf("r3.PipelinesTriggered = %d, want 0", r3.PipelinesTriggered)
	}
	if len(r3.SkippedReasons) != 1 || r3.SkippedReasons[0] != "Cooldown active" {
		t.Errorf("r3.SkippedReasons = %v, want [Cooldown active]", r3.SkippedReasons)
	}

	if len(director.Started) != 1 {
		t.Errorf("director.Started = %d, want 1", len(director.Started))
	}
}

func TestEmit_CooldownExpires(t *testing.T) {
	clock := ports.NewFixedClock(time.Date(2026, 2, 16, 6, 0, 0, 0, time.UTC))
	director := ports.NewFakeDirector()
	b := New(director, nil)
	b.Clock = clock
	b.AddMapping(EventMapping{EventType: "traffic_drop", PipelineTemplate: "SEO Cycle", CooldownMs: 60000})

	b.Emit(context.Background(), SystemEvent{ID: "e1", Type: "traffic_drop"})
	clock.Advance(61 * time.Second)
	r := b.Emit(context.Background(), SystemEvent{ID: "e2", Type: "traffic_drop"})
	if r.PipelinesTriggered != 1 {
		t.Fatalf("PipelinesTriggered = %d, want 1 after cooldown expiry", r.PipelinesTriggered)
	}
	if len(director.Started) != 2 {
		t.Errorf("director.Started = %d, want 2", len(director.Started))
	}
}

func TestEmit_NoMatchingMapping(t *testing.T) {
	director := ports.NewFakeDirector()
	b := New(director, nil)
	r := b.Emit(context.Background(), SystemEvent{ID: "e1", Type: "unmapped_event"})
	if r.PipelinesTriggered != 0 {
		t.Errorf("PipelinesTriggered = %d, want 0", r.PipelinesTriggered)
	}
	if len(director.Started) != 0 {
		t.Errorf("director.Started = %d, want 0", len(director.Started))
	}
}

func TestEmit_ConditionFalseSkips(t *testing.T) {
	director := ports.NewFakeDirector()
	b := New(director, nil)
	b.AddMapping(EventMapping{
		EventType:        "metric_alert",
		PipelineTemplate: "Alert Pipeline",
		Condition:        func(e SystemEvent) (bool, error) { return false, nil },
	})

	r := b.Emit(context.Background(), SystemEvent{ID: "e1", Type: "metric_alert"})
	if r.PipelinesTriggered != 0 {
		t.Errorf("PipelinesTriggered = %d, want 0", r.PipelinesTriggered)
	}
	if len(r.SkippedReasons) != 1 || r.SkippedReasons[0] != "Condition not met" {
		t.Errorf("SkippedReasons = %v, want [Condition not met]", r.SkippedReasons)
	}
}

func TestEmit_ConditionPanicDoesNotAbortOtherMappings(t *testing.T) {
	director := ports.NewFakeDirector()
	b := New(director, nil)
	b.AddMapping(EventMapping{
		EventType:        "metric_alert",
		PipelineTemplate: "Panicky Pipeline",
		Condition:        func(e SystemEvent) (bool, error) { panic("boom") },
	})
	b.AddMapping(EventMapping{EventType: "metric_alert", PipelineTemplate: "Healthy Pipeline"})

	r := b.Emit(context.Background(), SystemEvent{ID: "e1", Type: "metric_alert"})
	if r.PipelinesTriggered != 1 {
		t.Fatalf("PipelinesTriggered = %d, want 1 (the healthy mapping still fires)", r.PipelinesTriggered)
	}
	found := false
	for _, reason := range r.SkippedReasons {
		if reason == "Condition error: boom" {
			found = true
		}
	}
	if !found {
		t.Errorf("SkippedReasons = %v, want one entry for the panicking mapping", r.SkippedReasons)
	}
}

func TestEmit_MultipleMappingsBothFire(t *testing.T) {
	director := ports.NewFakeDirector()
	b := New(director, nil)
	b.AddMapping(EventMapping{EventType: "deploy", PipelineTemplate: "Smoke Test"})
	b.AddMapping(EventMapping{EventType: "deploy", PipelineTemplate: "Changelog Draft"})

	r := b.Emit(context.Background(), SystemEvent{ID: "e1", Type: "deploy"})
	if r.PipelinesTriggered != 2 {
		t.Fatalf("PipelinesTriggered = %d, want 2", r.PipelinesTriggered)
	}
	if len(r.PipelineIDs) != 2 {
		t.Errorf("PipelineIDs = %v, want 2 entries", r.PipelineIDs)
	}
}

func TestEmit_QueueEnqueuesTriggeredTasks(t *testing.T) {
	director := ports.NewFakeDirector()
	queue := ports.NewFakeQueueManager()
	b := New(director, queue)
	b.AddMapping(EventMapping{EventType: "deploy", PipelineTemplate: "Smoke Test"})

	b.Emit(context.Background(), SystemEvent{ID: "e1", Type: "deploy"})
	if len(queue.Batches) != 1 {
		t.Fatalf("queue.Batches = %d, want 1", len(queue.Batches))
	}
}

func TestClearCooldowns_ResetsDedupAndCooldown(t *testing.T) {
	director := ports.NewFakeDirector()
	b := New(director, nil)
	b.AddMapping(EventMapping{EventType: "traffic_drop", PipelineTemplate: "SEO Cycle", CooldownMs: 60000})

	b.Emit(context.Background(), SystemEvent{ID: "e1", Type: "traffic_drop"})
	b.ClearCooldowns()

	r := b.Emit(context.Background(), SystemEvent{ID: "e1", Type: "traffic_drop"})
	if r.PipelinesTriggered != 1 {
		t.Errorf("PipelinesTriggered = %d, want 1 after ClearCooldowns", r.PipelinesTriggered)
	}
}

func TestRemoveMappingByEvent(t *testing.T) {
	director := ports.NewFakeDirector()
	b := New(director, nil)
	b.AddMapping(EventMapping{EventType: "deploy", PipelineTemplate: "Smoke Test"})
	b.AddMapping(EventMapping{EventType: "other", PipelineTemplate: "Unrelated"})

	b.RemoveMappingByEvent("deploy")
	remaining := b.GetMappings()
	if len(remaining) != 1 || remaining[0].EventType != "other" {
		t.Errorf("remaining mappings = %v, want only 'other'", remaining)
	}
}
