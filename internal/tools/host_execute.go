package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/shlex"

	"github.com/emanueleielo/parrotgate/internal/gateway"
)

// maxHostOutputLength caps the text returned to the agent from one
// host_execute call, grounded on the original host tool's
// MAX_OUTPUT_LENGTH.
const maxHostOutputLength = 15_000

// HostExecuteTool runs a shell command on the host machine through the
// gateway, grounded on original_source/src/tools/host.py.
type HostExecuteTool struct {
	client         *gateway.Client
	bridges        map[string][]string
	defaultTimeout int
}

// NewHostExecuteTool builds the tool over an already-connected gateway
// client and the bridge->allowed-commands map read from config.
func NewHostExecuteTool(client *gateway.Client, bridges map[string][]string, defaultTimeout int) *HostExecuteTool {
	return &HostExecuteTool{client: client, bridges: bridges, defaultTimeout: defaultTimeout}
}

func (t *HostExecuteTool) Name() string { return "host_execute" }

func (t *HostExecuteTool) Description() string {
	return "Execute a command on the host machine via the secure gateway (e.g. a configured bridge's CLI)."
}

func (t *HostExecuteTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"bridge":  map[string]any{"type": "string", "description": "Bridge name to execute against."},
			"command": map[string]any{"type": "string", "description": "Shell command string, e.g. \"memo list\"."},
			"timeout": map[string]any{"type": "integer", "description": "Seconds. 0 uses the default."},
		},
		"required": []string{"bridge", "command"},
	}
}

func (t *HostExecuteTool) Execute(ctx context.Context, args map[string]any) *Result {
	if t.client == nil {
		return ErrorResult("Error: host gateway not configured.")
	}

	bridge, _ := args["bridge"].(string)
	command, _ := args["command"].(string)
	timeout := intArg(args["timeout"])

	if _, ok := t.bridges[bridge]; !ok {
		names := make([]string, 0, len(t.bridges))
		for name := range t.bridges {
			names = append(names, name)
		}
		sort.Strings(names)
		available := strings.Join(names, ", ")
		if available == "" {
			available = "(none)"
		}
		return NewResult(fmt.Sprintf("Error: unknown bridge %q. Available: %s", bridge, available))
	}

	cmdList, err := shlex.Split(command)
	if err != nil {
		return NewResult(fmt.Sprintf("Error: invalid command syntax: %v", err))
	}
	if len(cmdList) == 0 {
		return NewResult("Error: empty command.")
	}

	effectiveTimeout := timeout
	if effectiveTimeout <= 0 {
		effectiveTimeout = t.defaultTimeout
	}

	result := t.client.Execute(ctx, bridge, cmdList, "", effectiveTimeout)
	if result.Error != "" {
		return NewResult(fmt.Sprintf("Error: %s", result.Error))
	}

	output := strings.TrimSpace(result.Stdout)
	if result.ReturnCode != 0 {
		stderr := strings.TrimSpace(result.Stderr)
		switch {
		case stderr != "":
			output = fmt.Sprintf("Command failed (exit %d):\n%s", result.ReturnCode, stderr)
		case output != "":
			output = fmt.Sprintf("Command failed (exit %d):\n%s", result.ReturnCode, output)
		default:
			output = fmt.Sprintf("Command failed with exit code %d.", result.ReturnCode)
		}
	}

	if output == "" {
		return NewResult("(no output)")
	}
	if len(output) > maxHostOutputLength {
		output = output[:maxHostOutputLength] + "\n\n... (truncated)"
	}
	return NewResult(output)
}

func intArg(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
