package main

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tekert/golang-msgtable/msgtable"
)

// globs matches names case-insensitively against doublestar patterns. Windows
// paths are matched with / separators so that ** spans directories. An empty
// set matches everything.
type globs []string

func parseGlobs(list string) (globs, error) {
	var g globs
	for _, p := range splitList(list) {
		p = globName(p)
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("bad glob pattern %q", p)
		}
		g = append(g, p)
	}
	return g, nil
}

func globName(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), `\`, "/")
}

func (g globs) Match(name string) bool {
	if len(g) == 0 {
		return true
	}
	name = globName(name)
	for _, p := range g {
		// patterns were validated
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// selection is the log, source and module path filter of a run.
type selection struct {
	logs    globs
	sources globs
	paths   globs
}

func newSelection(c *Config) (*selection, error) {
	var s selection
	var err error
	if s.logs, err = parseGlobs(c.Logs); err != nil {
		return nil, fmt.Errorf("--log: %w", err)
	}
	if s.sources, err = parseGlobs(c.SourceNames); err != nil {
		return nil, fmt.Errorf("--source: %w", err)
	}
	if s.paths, err = parseGlobs(c.Paths); err != nil {
		return nil, fmt.Errorf("--path: %w", err)
	}
	return &s, nil
}

func (s *selection) Source(src msgtable.Source) bool {
	return s.logs.Match(src.Log) && s.sources.Match(src.Name)
}

func (s *selection) File(mf *msgtable.MessageFile) bool {
	return s.paths.Match(string(mf.Path()))
}
