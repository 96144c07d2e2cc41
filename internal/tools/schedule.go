package tools

import (
	"context"
	"fmt"

	"github.com/emanueleielo/parrotgate/internal/cron"
	"github.com/emanueleielo/parrotgate/internal/router"
)

// ScheduleTaskTool lets the agent register a cron/interval/once task
// that fires a follow-up prompt back into the conversation it was
// invoked from.
type ScheduleTaskTool struct {
	log *cron.TaskLog
}

func NewScheduleTaskTool(log *cron.TaskLog) *ScheduleTaskTool {
	return &ScheduleTaskTool{log: log}
}

func (t *ScheduleTaskTool) Name() string { return "schedule_task" }

func (t *ScheduleTaskTool) Description() string {
	return "Schedule a prompt to run later: once at a timestamp, on a fixed interval, or on a cron expression. Delivers the agent's response back to the conversation that scheduled it."
}

func (t *ScheduleTaskTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt": map[string]any{
				"type":        "string",
				"description": "The prompt to run when the task fires.",
			},
			"type": map[string]any{
				"type":        "string",
				"description": "Schedule kind.",
				"enum":        []string{"cron", "interval", "once"},
			},
			"value": map[string]any{
				"type":        "string",
				"description": `Schedule value: a cron expression for "cron", a whole number of seconds for "interval", or an RFC3339 timestamp for "once".`,
			},
			"model_tier": map[string]any{
				"type":        "string",
				"description": "Optional model tier to use when the task fires.",
			},
		},
		"required": []string{"prompt", "type", "value"},
	}
}

func (t *ScheduleTaskTool) Execute(ctx context.Context, args map[string]any) *Result {
	prompt, _ := args["prompt"].(string)
	taskType, _ := args["type"].(string)
	value, _ := args["value"].(string)
	modelTier, _ := args["model_tier"].(string)

	if prompt == "" || taskType == "" || value == "" {
		return ErrorResult("prompt, type, and value are required")
	}

	ic, ok := router.InvocationContextFromContext(ctx)
	if !ok {
		return ErrorResult("schedule_task can only be used from within a conversation")
	}

	id, err := t.log.Schedule(prompt, cron.TaskType(taskType), value, ic.Channel, ic.ChatID, modelTier)
	if err != nil {
		return ErrorResult(fmt.Sprintf("could not schedule task: %v", err)).WithError(err)
	}
	return NewResult(fmt.Sprintf("Scheduled task %s (%s: %s).", id, taskType, value))
}

// ListTasksTool lists the active scheduled tasks.
type ListTasksTool struct {
	log *cron.TaskLog
}

func NewListTasksTool(log *cron.TaskLog) *ListTasksTool {
	return &ListTasksTool{log: log}
}

func (t *ListTasksTool) Name() string { return "list_tasks" }

func (t *ListTasksTool) Description() string {
	return "List active scheduled tasks."
}

func (t *ListTasksTool) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (t *ListTasksTool) Execute(_ context.Context, _ map[string]any) *Result {
	tasks, err := t.log.List()
	if err != nil {
		return ErrorResult(fmt.Sprintf("could not list tasks: %v", err)).WithError(err)
	}
	if len(tasks) == 0 {
		return NewResult("No active scheduled tasks.")
	}
	out := ""
	for _, task := range tasks {
		out += fmt.Sprintf("- %s [%s] %s = %q: %s\n", task.ID, task.Channel, task.Type, task.Value, task.Prompt)
	}
	return NewResult(out)
}

// CancelTaskTool deactivates a scheduled task by id.
type CancelTaskTool struct {
	log *cron.TaskLog
}

func NewCancelTaskTool(log *cron.TaskLog) *CancelTaskTool {
	return &CancelTaskTool{log: log}
}

func (t *CancelTaskTool) Name() string { return "cancel_task" }

func (t *CancelTaskTool) Description() string {
	return "Cancel a previously scheduled task by id."
}

func (t *CancelTaskTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id": map[string]any{"type": "string", "description": "Task id returned by schedule_task."},
		},
		"required": []string{"id"},
	}
}

func (t *CancelTaskTool) Execute(_ context.Context, args map[string]any) *Result {
	id, _ := args["id"].(string)
	if id == "" {
		return ErrorResult("id is required")
	}
	found, err := t.log.Cancel(id)
	if err != nil {
		return ErrorResult(fmt.Sprintf("could not cancel task: %v", err)).WithError(err)
	}
	if !found {
		return ErrorResult(fmt.Sprintf("no active task with id %q", id))
	}
	return NewResult(fmt.Sprintf("Cancelled task %s.", id))
}
