package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/systemstart/ctrender/pkg/api"
	"github.com/systemstart/ctrender/pkg/fetch"
	"github.com/systemstart/ctrender/pkg/publish"
	"github.com/systemstart/ctrender/pkg/renderer"
	"github.com/systemstart/ctrender/pkg/retry"
)

// Fetcher copies a remote template to a local path.
type Fetcher interface {
	Fetch(ctx context.Context, remotePath, localPath string) error
}

// Placer publishes a rendered file to its destination.
type Placer interface {
	Place(ctx context.Context, req publish.Request) (publish.Result, error)
}

// Pipeline runs render entries end to end: resolve the template source,
// render it against live Consul/Vault data, publish the output.
type Pipeline struct {
	Fetcher Fetcher
	Placer  Placer

	// RendererBin overrides the renderer executable. Empty means the
	// default binary looked up in PATH.
	RendererBin string

	// Check reports what would change without touching any destination.
	Check bool
	// ShowDiff attaches before/after diffs to changed results.
	ShowDiff bool

	// TempDir is the parent for per-entry scratch directories. Empty
	// means the system default.
	TempDir string

	// Getenv supplies endpoint fallbacks for entries that leave them
	// unset. Defaults to os.Getenv.
	Getenv func(string) string
}

// New returns a Pipeline wired for production use: templates are fetched
// over scp and published to the local filesystem.
func New() *Pipeline {
	return &Pipeline{
		Fetcher: fetch.SCP{},
		Placer:  publish.LocalPlacer{},
		Getenv:  os.Getenv,
	}
}

// Run executes one render entry. taskDir anchors relative src paths.
// Failures never escape as errors; they come back as Result.Failed with
// the message in Msg, so one bad entry cannot abort a batch.
func (p *Pipeline) Run(ctx context.Context, entry *api.Render, taskDir string) Result {
	res := Result{
		Name: entry.Name,
		Src:  entry.SrcRef(),
		Dest: entry.Dest,
	}

	// Work on a copy so env fallbacks do not leak back into the task.
	r := *entry
	getenv := p.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	r.ApplyEnvDefaults(getenv)

	// Reject bad entries before any filesystem work.
	if err := api.ValidateRender(&r); err != nil {
		return res.fail(stageError(KindConfig, err))
	}

	scratch, err := os.MkdirTemp(p.TempDir, "ctrender-*")
	if err != nil {
		return res.fail(newError(KindInternal, "could not create scratch directory: %v", err))
	}
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			slog.Warn("failed to remove scratch directory", "dir", scratch, "error", rmErr)
		}
	}()

	src, err := p.resolveSource(ctx, &r, taskDir, scratch)
	if err != nil {
		return res.fail(err)
	}

	mode, err := resolveMode(&r, src)
	if err != nil {
		return res.fail(stageError(KindSource, err))
	}

	output := filepath.Join(scratch, filepath.Base(src))
	inv := renderer.Invocation{
		Binary: p.RendererBin,
		Source: src,
		Output: output,
		Endpoints: renderer.Endpoints{
			ConsulAddr:  r.ConsulAddr,
			ConsulToken: r.ConsulToken,
			VaultAddr:   r.VaultAddr,
			VaultToken:  r.VaultToken,
		},
		Env:     MergeEnviron(os.Environ(), r.Env),
		Timeout: r.RenderTimeout.Std(),
	}
	policy := retry.NewPolicy(r.RenderRetryBackoff, r.RenderRetryWait.Std(), 0, r.RenderRetries)

	outcome, err := renderer.RunWithRetry(ctx, inv, policy)
	if err != nil {
		return res.fail(stageError(KindRender, err))
	}
	if outcome == renderer.Empty {
		res.Skipped = true
		res.Msg = "template rendered to empty file, skipping"
		return res
	}

	placed, err := p.Placer.Place(ctx, publish.Request{
		Src:      output,
		Dest:     r.Dest,
		Mode:     mode,
		Owner:    r.Owner,
		Group:    r.Group,
		Backup:   r.BackupEnabled(),
		Validate: r.Validate,
		ShowDiff: p.ShowDiff,
		Check:    p.Check,
	})
	if err != nil {
		return res.fail(stageError(KindPublish, err))
	}

	res.Changed = placed.Changed
	res.Diff = placed.Diff
	res.BackupFile = placed.BackupFile
	return res
}

func (r Result) fail(err error) Result {
	r.Failed = true
	r.Msg = err.Error()
	return r
}

// RunTask executes every entry of one loaded task file and logs each
// outcome. Entries run in file order; a failed entry does not stop the
// ones after it.
func (p *Pipeline) RunTask(ctx context.Context, task *api.TaskFile) []Result {
	results := make([]Result, 0, len(task.Renders))

	for i := range task.Renders {
		entry := &task.Renders[i]
		slog.Info("rendering", "task", task.FilePath, "entry", entry.DisplayName())

		res := p.Run(ctx, entry, task.Dir)
		switch {
		case res.Failed:
			slog.Error("render failed", "entry", entry.DisplayName(), "error", res.Msg)
		case res.Skipped:
			slog.Info("render skipped", "entry", entry.DisplayName(), "reason", res.Msg)
		case res.Changed:
			slog.Info("render changed destination", "entry", entry.DisplayName(), "dest", res.Dest)
		default:
			slog.Info("render left destination unchanged", "entry", entry.DisplayName(), "dest", res.Dest)
		}

		results = append(results, res)
	}

	return results
}

// RunTasks executes a batch of task files and returns all results. The
// error summarizes which entries failed, after every task has run.
func (p *Pipeline) RunTasks(ctx context.Context, tasks []*api.TaskFile) ([]Result, error) {
	var results []Result
	var failed []string

	for _, task := range tasks {
		slog.Info("executing task", "path", task.FilePath)
		for _, res := range p.RunTask(ctx, task) {
			if res.Failed {
				failed = append(failed, res.label())
			}
			results = append(results, res)
		}
	}

	if len(failed) > 0 {
		return results, fmt.Errorf("%d render(s) failed: %v", len(failed), failed)
	}
	return results, nil
}

func (r Result) label() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Dest
}
