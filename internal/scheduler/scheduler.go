// Package scheduler runs the single polling loop that turns due
// internal/cron tasks into agent invocations and delivers their
// replies back into the originating channel.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/emanueleielo/parrotgate/internal/cron"
	"github.com/emanueleielo/parrotgate/internal/providers"
	"github.com/emanueleielo/parrotgate/internal/tierrouter"
)

// Agent is the scheduler's view of the external agent: the same
// contract the router depends on.
type Agent interface {
	Invoke(ctx context.Context, threadID string, input providers.Message) (string, error)
}

// ChannelRegistry delivers a scheduled task's result into a channel by
// name. Unknown channel names are the caller's concern to report.
type ChannelRegistry interface {
	Send(ctx context.Context, channel, chatID, text string) error
}

// Scheduler polls log for due tasks at a fixed interval and dispatches
// each one outside the lock that guards the tasks file.
type Scheduler struct {
	log      *cron.TaskLog
	agent    Agent
	channels ChannelRegistry
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
	wg     errgroup.Group

	mu      sync.Mutex
	running bool
}

// New builds a Scheduler. interval is clamped to at least one second.
func New(log *cron.TaskLog, agent Agent, channels ChannelRegistry, interval time.Duration) *Scheduler {
	if interval < time.Second {
		interval = time.Second
	}
	return &Scheduler{log: log, agent: agent, channels: channels, interval: interval}
}

// Start launches the polling loop. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(loopCtx)
}

// Stop cancels the polling loop and waits for it to exit. In-flight
// spawn-execute workers are not cancelled: shutdown drains them.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done
	_ = s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick implements the mark-before-dispatch-outside-lock ordering
// guarantee: CheckAndMark atomically reads, marks, and persists due
// tasks under the task log's single lock, then every due task is
// dispatched concurrently outside that lock so a slow agent call never
// blocks the next tick or another due task's dispatch.
func (s *Scheduler) tick(ctx context.Context) {
	due, err := s.log.CheckAndMark(time.Now())
	if err != nil {
		slog.Error("scheduler: check-and-mark failed", "error", err)
		return
	}
	// Dispatch on a context detached from the poll loop's cancellation:
	// Stop (and process shutdown) must stop scheduling new work without
	// yanking the network calls of tasks already in flight.
	execCtx := context.WithoutCancel(ctx)
	for _, task := range due {
		t := task
		s.wg.Go(func() error {
			s.spawnExecute(execCtx, t)
			return nil
		})
	}
}

func (s *Scheduler) spawnExecute(ctx context.Context, t cron.ScheduledTask) {
	if t.ModelTier != "" {
		ctx = tierrouter.WithTier(ctx, t.ModelTier)
	}

	threadID := fmt.Sprintf("scheduler_%s", t.ID)
	reply, err := s.agent.Invoke(ctx, threadID, providers.Message{Role: providers.RoleHuman, Content: t.Prompt})
	if err != nil {
		slog.Error("scheduler: agent invocation failed", "taskId", t.ID, "error", err)
		return
	}

	if err := s.channels.Send(ctx, t.Channel, t.ChatID, reply); err != nil {
		slog.Error("scheduler: delivery failed", "taskId", t.ID, "channel", t.Channel, "chatId", t.ChatID, "error", err)
	}
}
