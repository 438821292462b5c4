// Package eventbus implements the Event Bus (C4, spec.md §4.7): routes
// inbound system events to pipeline activations, at-least-once with
// idempotent per-event-id dedup and per-event-type cooldowns.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/marketeros/runtime/internal/observability"
	"github.com/marketeros/runtime/internal/ports"
	"github.com/marketeros/runtime/internal/security"
	"github.com/marketeros/runtime/internal/task"
)

// SystemEvent is an inbound event, typically delivered via the webhook
// interface (spec.md §6.2).
type SystemEvent struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// EventMapping binds an event type to a pipeline template, with an
// optional guard condition and cooldown.
type EventMapping struct {
	EventType       string
	PipelineTemplate string
	Priority        task.Priority
	CooldownMs      int64
	Condition       func(SystemEvent) (bool, error) // nil means "always fires"
}

func (m EventMapping) cooldown() time.Duration { return time.Duration(m.CooldownMs) * time.Millisecond }

// EmitResult is the sole output of Emit — it never returns a Go error
// (spec.md §4.7: "emit never throws; errors become skippedReasons").
type EmitResult struct {
	EventID            string
	EventType          string
	PipelinesTriggered int
	PipelineIDs        []string
	SkippedReasons     []string
}

// Bus is the Event Bus engine (C4, spec.md §4.7).
type Bus struct {
	Director  ports.Director
	Queue     ports.QueueManager
	Clock     ports.Clock
	Logger    *observability.Logger
	Sanitizer *security.Sanitizer

	mu                sync.Mutex
	mappings          []EventMapping
	cooldownUntil     map[string]time.Time
	processedEventIDs map[string]bool
}

// New builds an empty Bus.
func New(director ports.Director, queue ports.QueueManager) *Bus {
	return &Bus{
		Director:          director,
		Queue:             queue,
		Clock:             ports.SystemClock{},
		Logger:            observability.NewLogger(nil),
		Sanitizer:         security.NewSanitizer(security.SanitizerConfig{}),
		cooldownUntil:     make(map[string]time.Time),
		processedEventIDs: make(map[string]bool),
	}
}

// AddMapping registers a new event-to-pipeline binding.
func (b *Bus) AddMapping(m EventMapping) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mappings = append(b.mappings, m)
}

// RemoveMappingByEvent removes every mapping registered for eventType.
func (b *Bus) RemoveMappingByEvent(eventType string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.mappings[:0]
	for _, m := range b.mappings {
		if m.EventType != eventType {
			kept = append(kept, m)
		}
	}
	b.mappings = kept
}

// GetMappings returns a defensive copy of the registered mappings.
func (b *Bus) GetMappings() []EventMapping {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]EventMapping, len(b.mappings))
	copy(out, b.mappings)
	return out
}

// ClearCooldowns resets both the cooldown clock and the processed-event-id
// dedup set.
func (b *Bus) ClearCooldowns() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cooldownUntil = make(map[string]time.Time)
	b.processedEventIDs = make(map[string]bool)
}

// Emit routes event to every matching mapping (spec.md §4.7 algorithm).
func (b *Bus) Emit(ctx context.Context, event SystemEvent) *EmitResult {
	result := &EmitResult{EventID: event.ID, EventType: event.Type}

	b.mu.Lock()
	if b.processedEventIDs[event.ID] {
		b.mu.Unlock()
		result.SkippedReasons = append(result.SkippedReasons, "Duplicate event ID")
		return result
	}

	var matching []EventMapping
	for _, m := range b.mappings {
		if m.EventType == event.Type {
			matching = append(matching, m)
		}
	}

	now := b.now()
	for _, m := range matching {
		if m.CooldownMs > 0 {
			if until, ok := b.cooldownUntil[event.Type]; ok && until.After(now) {
				b.mu.Unlock()
				result.SkippedReasons = append(result.SkippedReasons, "Cooldown active")
				b.markProcessed(event.ID)
				return result
			}
			break
		}
	}
	b.mu.Unlock()

	var latestCooldown time.Duration
	for _, m := range matching {
		ok, skipReason := b.evaluateCondition(m, event)
		if skipReason != "" {
			result.SkippedReasons = append(result.SkippedReasons, skipReason)
			continue
		}
		if !ok {
			result.SkippedReasons = append(result.SkippedReasons, "Condition not met")
			continue
		}

		payload := string(event.Data)
		if b.Sanitizer != nil {
			sanitized := b.Sanitizer.Sanitize(payload)
			if sanitized.Blocked {
				b.log().Warn("event payload blocked by sanitizer", "event_type", event.Type, "reason", sanitized.BlockReason)
				result.SkippedReasons = append(result.SkippedReasons, "Payload rejected: "+sanitized.BlockReason)
				continue
			}
			payload = sanitized.Clean
		}

		description := fmt.Sprintf("[Event: %s] %s", event.Type, payload)
		started, err := b.Director.StartPipeline(ctx, m.PipelineTemplate, description, m.Priority)
		if err != nil {
			b.log().Error("start_pipeline failed", "event_type", event.Type, "mapping", m.PipelineTemplate, "err", err)
			result.SkippedReasons = append(result.SkippedReasons, err.Error())
			continue
		}

		result.PipelinesTriggered++
		result.PipelineIDs = append(result.PipelineIDs, started.RunID)
		if m.cooldown() > latestCooldown {
			latestCooldown = m.cooldown()
		}

		if b.Queue != nil {
			tasks := make([]*task.Task, 0, len(started.TaskIDs))
			for _, id := range started.TaskIDs {
				tasks = append(tasks, &task.Task{ID: id})
			}
			if err := b.Queue.EnqueueBatch(ctx, tasks); err != nil {
				b.log().Error("enqueue_batch failed", "event_type", event.Type, "err", err)
			}
		}
	}

	if latestCooldown > 0 {
		b.mu.Lock()
		b.cooldownUntil[event.Type] = now.Add(latestCooldown)
		b.mu.Unlock()
	}

	b.markProcessed(event.ID)
	return result
}

func (b *Bus) evaluateCondition(m EventMapping, event SystemEvent) (ok bool, skipReason string) {
	if m.Condition == nil {
		return true, ""
	}
	defer func() {
		if r := recover(); r != nil {
			skipReason = fmt.Sprintf("Condition error: %v", r)
			b.log().Warn("mapping condition panicked", "event_type", event.Type, "recover", r)
		}
	}()
	matched, err := m.Condition(event)
	if err != nil {
		return false, fmt.Sprintf("Condition error: %s", err.Error())
	}
	return matched, ""
}

func (b *Bus) markProcessed(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.processedEventIDs[id] = true
}

func (b *Bus) now() time.Time {
	if b.Clock != nil {
		return b.Clock.Now()
	}
	return time.Now().UTC()
}

func (b *Bus) log() *observability.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return observability.NewLogger(nil)
}
