package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"reelgate/internal/stage"
)

const (
	commandWaitDelay = 2 * time.Second
	maxStderrTail    = 2048
)

// CommandAgent runs an external program per generation. The request is
// written to stdin as JSON; stdout must hold the payload, either bare or
// wrapped in a {"stage": ..., "data": ...} envelope.
type CommandAgent struct {
	Stage stage.Name
	Argv  []string
	Dir   string
	Env   []string
}

func (a *CommandAgent) Generate(ctx context.Context, req Request) (stage.Payload, error) {
	if len(a.Argv) == 0 {
		return nil, errors.New("command is empty")
	}
	input, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	cmd := exec.CommandContext(ctx, a.Argv[0], a.Argv[1:]...) //nolint:gosec
	cmd.Dir = a.Dir
	if len(a.Env) > 0 {
		cmd.Env = a.Env
	}
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = commandWaitDelay

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", a.Argv[0], ctxErr)
		}
		if tail := stderrTail(stderr.Bytes()); tail != "" {
			return nil, fmt.Errorf("%s: %w: %s", a.Argv[0], err, tail)
		}
		return nil, fmt.Errorf("%s: %w", a.Argv[0], err)
	}
	return decodeOutput(a.Stage, stdout.Bytes())
}

// Health reports whether the program resolves on PATH.
func (a *CommandAgent) Health(context.Context) stage.Health {
	name := string(a.Stage)
	if len(a.Argv) == 0 {
		return stage.Unhealthy(name, "command not configured")
	}
	if _, err := exec.LookPath(a.Argv[0]); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("command %s not found", a.Argv[0]))
	}
	return stage.Health{Name: name, Ready: true, Detail: "command " + a.Argv[0]}
}

func decodeOutput(name stage.Name, out []byte) (stage.Payload, error) {
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return nil, errors.New("command produced no output")
	}
	var probe struct {
		Stage string          `json:"stage"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(out, &probe); err == nil && probe.Stage != "" && len(probe.Data) > 0 {
		return stage.Decode(out)
	}
	return stage.DecodeData(name, out)
}

func stderrTail(stderr []byte) string {
	text := strings.TrimSpace(string(stderr))
	if len(text) > maxStderrTail {
		text = "..." + text[len(text)-maxStderrTail:]
	}
	return text
}
