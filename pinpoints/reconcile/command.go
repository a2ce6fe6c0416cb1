package reconcile

import (
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/pinplay-tools/pinpoints/pinpoints/config"
	"github.com/pinplay-tools/pinpoints/pinpoints/jobs"
)

// CommandData is the data the materializer command template is executed with.
type CommandData struct {
	Stream      string // trace path, without extension
	Name        string
	In          string // regions to materialize
	Out         string // overlap report to write
	RegionDir   string // base name for materialized regions
	Pass        int
	Warmup      int64
	Prolog      int64
	Epilog      int64
	FocusThread int
	State       string // state document path
}

// CommandJobs returns a JobFactory that renders cfg.Replayer for each stream.
// statePath is handed to every job through {{.State}} and PINPOINTS_STATE.
// The template function quote shell-quotes its argument.
func CommandJobs(repo *FileRepository, cfg *config.Config, statePath string) (JobFactory, error) {
	tmpl, err := template.New("replayer").
		Funcs(template.FuncMap{"quote": jobs.ShellQuote}).
		Option("missingkey=error").
		Parse(cfg.Replayer)
	if err != nil {
		return nil, fmt.Errorf("parsing replayer command template: %w", err)
	}
	return func(s Stream, pass int) (jobs.Job, error) {
		p := repo.Paths(s)
		if err := os.MkdirAll(p.RegionDir, 0o755); err != nil {
			return jobs.Job{}, fmt.Errorf("creating region directory for %s: %w", s.Name, err)
		}
		data := CommandData{
			Stream:      s.Pinball,
			Name:        s.Name,
			In:          p.In,
			Out:         p.Out,
			RegionDir:   p.RegionDir + string(os.PathSeparator) + s.Name,
			Pass:        pass,
			Warmup:      cfg.WarmupLength,
			Prolog:      cfg.PrologLength,
			Epilog:      cfg.EpilogLength,
			FocusThread: cfg.ThreadID(),
			State:       statePath,
		}
		var sb strings.Builder
		if err := tmpl.Execute(&sb, data); err != nil {
			return jobs.Job{}, fmt.Errorf("rendering replayer command for %s: %w", s.Name, err)
		}
		job := jobs.Job{
			Label:   fmt.Sprintf("(pass %d) %s", pass, s.Name),
			Command: sb.String(),
		}
		if statePath != "" {
			job.Env = []string{config.StateEnv + "=" + statePath}
		}
		return job, nil
	}, nil
}
