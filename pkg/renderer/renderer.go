package renderer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/systemstart/ctrender/pkg/api"
	"github.com/systemstart/ctrender/pkg/retry"
)

// Endpoints carries the service addresses and tokens handed to the
// renderer. Empty fields are omitted from the command line and the
// renderer falls back to its own environment handling.
type Endpoints struct {
	ConsulAddr  string
	ConsulToken string
	VaultAddr   string
	VaultToken  string
}

// Invocation describes one single-shot render.
type Invocation struct {
	Binary    string // renderer executable, defaults to api.DefaultRendererBinary
	Source    string // template file read by the renderer
	Output    string // file the renderer writes
	Endpoints Endpoints
	Env       []string      // process environment, nil inherits the parent's
	Timeout   time.Duration // zero means no timeout
}

// Outcome classifies what the renderer produced.
type Outcome int

const (
	// Rendered means the output file exists and has content.
	Rendered Outcome = iota
	// Empty means the renderer completed but produced a missing or
	// zero-size output file.
	Empty
)

func (o Outcome) String() string {
	switch o {
	case Rendered:
		return "rendered"
	case Empty:
		return "empty"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// args builds the renderer command line. Single-shot flags come first,
// endpoint flags only when set, the template mapping last.
func (i Invocation) args() []string {
	args := []string{"-once", "-vault-renew-token=false", "-vault-retry=false"}
	if i.Endpoints.ConsulAddr != "" {
		args = append(args, "-consul-addr="+i.Endpoints.ConsulAddr)
	}
	if i.Endpoints.ConsulToken != "" {
		args = append(args, "-consul-token="+i.Endpoints.ConsulToken)
	}
	if i.Endpoints.VaultAddr != "" {
		args = append(args, "-vault-addr="+i.Endpoints.VaultAddr)
	}
	if i.Endpoints.VaultToken != "" {
		args = append(args, "-vault-token="+i.Endpoints.VaultToken)
	}
	args = append(args, "-template="+i.Source+":"+i.Output)
	return args
}

// Run executes the renderer once, synchronously, and classifies its
// output file.
func Run(ctx context.Context, inv Invocation) (Outcome, error) {
	bin := inv.Binary
	if bin == "" {
		bin = api.DefaultRendererBinary
	}

	path, err := exec.LookPath(bin)
	if err != nil {
		return Empty, fmt.Errorf("%s binary not found in PATH: %w", bin, err)
	}

	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	args := inv.args()
	slog.Debug("running renderer", "binary", path, "args", redactTokens(args))

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Env = inv.Env
	// A killed renderer can leave children holding the output pipes;
	// don't let them block Wait past the deadline.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Empty, fmt.Errorf("renderer timed out after %s", inv.Timeout)
		}
		return Empty, fmt.Errorf("renderer failed: %w\nstderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	return classify(inv.Output)
}

// RunWithRetry executes the renderer, retrying failed runs per policy.
// An empty render is a completed run, never retried.
func RunWithRetry(ctx context.Context, inv Invocation, policy retry.Policy) (Outcome, error) {
	var lastErr error

	for attempt := 0; ; attempt++ {
		outcome, err := Run(ctx, inv)
		if err == nil {
			return outcome, nil
		}
		lastErr = err

		if attempt >= policy.MaxRetries {
			break
		}

		delay := policy.Delay(attempt + 1)
		slog.Warn("render attempt failed, retrying", "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Empty, ctx.Err()
		}
	}

	if policy.MaxRetries > 0 {
		return Empty, fmt.Errorf("render failed after %d attempts: %w", policy.MaxRetries+1, lastErr)
	}
	return Empty, lastErr
}

// classify inspects the output file; a missing or zero-size file means
// the renderer had nothing to say for this template.
func classify(output string) (Outcome, error) {
	info, err := os.Stat(output)
	if err != nil {
		if os.IsNotExist(err) {
			return Empty, nil
		}
		return Empty, fmt.Errorf("stat rendered output: %w", err)
	}
	if info.Size() == 0 {
		return Empty, nil
	}
	return Rendered, nil
}

// redactTokens masks credential values before they reach a log line.
func redactTokens(args []string) []string {
	redacted := make([]string, len(args))
	for i, a := range args {
		switch {
		case strings.HasPrefix(a, "-consul-token="):
			a = "-consul-token=****"
		case strings.HasPrefix(a, "-vault-token="):
			a = "-vault-token=****"
		}
		redacted[i] = a
	}
	return redacted
}
