package msgtable

import (
	"errors"
	"iter"
	"log/slog"
	"syscall"
)

// Source is one classic event source and its registered message modules.
type Source struct {
	Log  string `json:"log"`
	Name string `json:"name"`
	// Raw EventMessageFile value, ';' separated.
	MessageFiles string `json:"messageFiles"`
}

func (s Source) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("log", s.Log),
		slog.String("name", s.Name),
	)
}

// PathDiagnostic reports what happened to one entry of EventMessageFile.
type PathDiagnostic struct {
	RawPath string       `json:"raw"`
	Path    ResolvedPath `json:"path"`
	Step    ResolveStep  `json:"-"`
	OK      bool         `json:"ok"`
	// OS error code of the failed load, 0 when unknown.
	Errno    syscall.Errno `json:"errno,omitempty"`
	Message  string        `json:"message,omitempty"`
	Attempts []Attempt     `json:"-"`
}

// SourceResult is the outcome of processing one Source.
type SourceResult struct {
	Source      Source
	Files       []*MessageFile
	Diagnostics []PathDiagnostic
}

// OK reports whether every registered module was loaded.
func (r *SourceResult) OK() bool {
	for _, d := range r.Diagnostics {
		if !d.OK {
			return false
		}
	}
	return true
}

// Process loads every module src registers. Modules already in the cache are
// not loaded again. Failures do not stop the other modules, they are reported
// in the result diagnostics.
func (c *Cache) Process(src Source) SourceResult {
	res := SourceResult{Source: src}

	paths := SplitPathList(src.MessageFiles)
	if len(paths) == 0 {
		LogTrace("event source registers no message file", "source", src)
		return res
	}

	for _, raw := range paths {
		mf, err := c.GetOrLoad(src.Log, src.Name, raw)
		d := PathDiagnostic{RawPath: raw}
		if mf != nil {
			d.Path = mf.Path()
			d.Step = mf.Step()
			res.Files = append(res.Files, mf)
		}
		if err != nil {
			d.Message = err.Error()
			d.Errno, _ = errnoOf(err)
			var rerr *ResolveError
			if errors.As(err, &rerr) {
				d.Attempts = rerr.Attempts
			}
		} else {
			d.OK = true
		}
		res.Diagnostics = append(res.Diagnostics, d)
	}
	return res
}

// ProcessAll processes every source in order.
func (c *Cache) ProcessAll(sources iter.Seq[Source]) []SourceResult {
	var results []SourceResult
	for src := range sources {
		results = append(results, c.Process(src))
	}
	return results
}
