package fetch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"slices"
)

// SCP copies remote templates by shelling out to scp. Remote paths use
// scp addressing (`host:path` or `user@host:path`).
type SCP struct {
	Binary string   // scp executable, defaults to "scp"
	Args   []string // extra options placed before the paths, e.g. -i or -o
}

// Fetch copies remotePath to localPath.
func (s SCP) Fetch(ctx context.Context, remotePath, localPath string) error {
	bin := s.Binary
	if bin == "" {
		bin = "scp"
	}

	if _, err := exec.LookPath(bin); err != nil {
		return fmt.Errorf("%s binary not found in PATH: %w", bin, err)
	}

	args := append(slices.Clone(s.Args), remotePath, localPath)

	slog.Info("fetching remote template", "remote", remotePath, "local", localPath)

	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("fetching %s failed: %w\nstderr: %s", remotePath, err, stderr.String())
	}

	return nil
}
