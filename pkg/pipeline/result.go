package pipeline

import "github.com/systemstart/ctrender/pkg/publish"

// Result is the observable outcome of one render entry. Exactly one of
// Changed, Failed and Skipped carries the primary signal; Failed and
// Skipped never combine with each other or with Changed.
type Result struct {
	Name       string         `yaml:"name,omitempty" json:"name,omitempty"`
	Changed    bool           `yaml:"changed" json:"changed"`
	Failed     bool           `yaml:"failed" json:"failed"`
	Skipped    bool           `yaml:"skipped" json:"skipped"`
	Msg        string         `yaml:"msg,omitempty" json:"msg,omitempty"`
	Src        string         `yaml:"src" json:"src"`
	Dest       string         `yaml:"dest" json:"dest"`
	Diff       []publish.Diff `yaml:"diff,omitempty" json:"diff,omitempty"`
	BackupFile string         `yaml:"backup_file,omitempty" json:"backup_file,omitempty"`
}
