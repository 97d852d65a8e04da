package publish

import (
	"strings"

	"github.com/k14s/difflib"
)

// Diff describes one destination content change.
type Diff struct {
	Before       string `yaml:"before" json:"before"`
	After        string `yaml:"after" json:"after"`
	BeforeHeader string `yaml:"before_header" json:"before_header"`
	AfterHeader  string `yaml:"after_header" json:"after_header"`
}

func newDiff(before, after, dest string) Diff {
	return Diff{
		Before:       before,
		After:        after,
		BeforeHeader: dest,
		AfterHeader:  dest,
	}
}

// RenderText pretty-prints a diff for terminal display.
func RenderText(d Diff) string {
	var b strings.Builder
	b.WriteString("--- " + d.BeforeHeader + "\n")
	b.WriteString("+++ " + d.AfterHeader + "\n")
	b.WriteString(difflib.PPDiff(strings.Split(d.Before, "\n"), strings.Split(d.After, "\n")))
	return b.String()
}
