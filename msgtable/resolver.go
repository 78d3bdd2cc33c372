package msgtable

import (
	"errors"
	"iter"
	"log/slog"
	"os"
	"strings"
)

// ResolvedPath is a normalized module path: lower case, backslash separated,
// no repeated separators. It is the key of the Cache, two raw spellings of
// the same file normalize to the same ResolvedPath.
type ResolvedPath string

func (p ResolvedPath) String() string {
	return string(p)
}

// FileName returns the last path element.
func (p ResolvedPath) FileName() string {
	s := string(p)
	if i := strings.LastIndexByte(s, '\\'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// NormalizePath lower-cases path, turns forward slashes into backslashes,
// collapses repeated separators (keeping a UNC prefix) and trims blanks and
// quotes.
func NormalizePath(path string) ResolvedPath {
	p := strings.TrimSpace(path)
	p = strings.Trim(p, `"`)
	p = strings.ToLower(p)
	p = strings.ReplaceAll(p, "/", `\`)

	unc := strings.HasPrefix(p, `\\`) && !strings.HasPrefix(p, `\\?\`)
	var b strings.Builder
	b.Grow(len(p))
	for i := 0; i < len(p); i++ {
		if p[i] == '\\' && i > 0 && p[i-1] == '\\' && !(unc && i == 1) {
			continue
		}
		b.WriteByte(p[i])
	}
	return ResolvedPath(strings.TrimRight(b.String(), `\`))
}

// Environment holds the directories placeholders in registered paths expand
// to. Values are compared case-insensitively.
type Environment struct {
	SystemRoot  string // %SystemRoot%, \SystemRoot
	WinDir      string // %windir%
	SystemDir   string // $(runtime.system32)
	SystemDrive string // %SystemDrive%
	// %ProgramFiles%, as seen by the current process.
	ProgramFiles string
	// 32-bit Program Files, empty on 32-bit Windows.
	ProgramFilesX86 string
	// Native Program Files, the same as ProgramFiles for 64-bit processes.
	ProgramW6432 string
	// WOW64 is set for a 32-bit process on 64-bit Windows, system32 is
	// redirected to SysWOW64 for it.
	WOW64 bool
}

// EnvironmentFromOS reads the process environment, falling back to the
// Windows defaults for anything unset.
func EnvironmentFromOS() Environment {
	return Environment{
		SystemRoot:      os.Getenv("SystemRoot"),
		WinDir:          os.Getenv("windir"),
		SystemDrive:     os.Getenv("SystemDrive"),
		ProgramFiles:    os.Getenv("ProgramFiles"),
		ProgramFilesX86: os.Getenv("ProgramFiles(x86)"),
		ProgramW6432:    os.Getenv("ProgramW6432"),
		WOW64:           isWow64Process(),
	}.withDefaults()
}

func (e Environment) withDefaults() Environment {
	norm := func(s string) string { return string(NormalizePath(s)) }

	e.SystemRoot = norm(e.SystemRoot)
	if e.SystemRoot == "" {
		e.SystemRoot = `c:\windows`
	}
	e.WinDir = norm(e.WinDir)
	if e.WinDir == "" {
		e.WinDir = e.SystemRoot
	}
	e.SystemDir = norm(e.SystemDir)
	if e.SystemDir == "" {
		e.SystemDir = e.SystemRoot + `\system32`
	}
	e.SystemDrive = norm(e.SystemDrive)
	if e.SystemDrive == "" && len(e.SystemRoot) >= 2 && e.SystemRoot[1] == ':' {
		e.SystemDrive = e.SystemRoot[:2]
	}
	e.ProgramFiles = norm(e.ProgramFiles)
	e.ProgramFilesX86 = norm(e.ProgramFilesX86)
	e.ProgramW6432 = norm(e.ProgramW6432)
	return e
}

// Is64BitOS reports whether the OS has a separate 32-bit Program Files
// directory, the only case where WOW64 redirection exists.
func (e Environment) Is64BitOS() bool {
	return e.ProgramFilesX86 != ""
}

// ResolveStep tells which repair produced a Candidate.
type ResolveStep uint8

const (
	StepLiteral      ResolveStep = iota // placeholders expanded, nothing else
	StepUnrooted                        // bare file name placed in system32
	StepProgramFiles                    // 32-bit Program Files swapped for the native one
	StepNoRedirect                      // system32 path loaded with WOW64 redirection disabled
)

func (s ResolveStep) String() string {
	switch s {
	case StepLiteral:
		return "literal"
	case StepUnrooted:
		return "unrooted"
	case StepProgramFiles:
		return "programFiles"
	case StepNoRedirect:
		return "noRedirect"
	}
	return "unknown"
}

// Candidate is one path to try loading.
type Candidate struct {
	Path ResolvedPath
	Step ResolveStep
	// NoRedirect asks the reader to disable WOW64 file system redirection
	// around the load attempt.
	NoRedirect bool
}

// Resolver turns raw EventMessageFile entries into loadable paths.
type Resolver struct {
	env Environment
}

// NewResolver creates a resolver for env, unset directories get the Windows
// defaults.
func NewResolver(env Environment) *Resolver {
	return &Resolver{env: env.withDefaults()}
}

func (r *Resolver) Environment() Environment {
	return r.env
}

// SplitPathList splits an EventMessageFile value into its entries.
func SplitPathList(raw string) []string {
	parts := strings.Split(raw, ";")
	paths := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.Trim(strings.TrimSpace(p), `"`))
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// Expand substitutes the placeholders registrations use, case-insensitively,
// and normalizes the result. A separator missing after a substituted
// directory ("%SystemRoot%System32\x.dll") is repaired.
func (r *Resolver) Expand(raw string) ResolvedPath {
	p := string(NormalizePath(raw))
	if p == "" {
		return ""
	}

	// NT object manager and long path prefixes, \\?\ is already down to \?\
	p = strings.TrimPrefix(p, `\??\`)
	p = strings.TrimPrefix(p, `\?\`)

	if rest, ok := strings.CutPrefix(p, `\systemroot`); ok && (rest == "" || rest[0] == '\\') {
		p = r.env.SystemRoot + rest
	}

	// Ordered: %programfiles(x86)% must go before %programfiles%.
	replacements := []struct{ placeholder, dir string }{
		{"%systemroot%", r.env.SystemRoot},
		{"%windir%", r.env.WinDir},
		{"$(runtime.system32)", r.env.SystemDir},
		{"%systemdrive%", r.env.SystemDrive},
		{"%programfiles(x86)%", r.env.ProgramFilesX86},
		{"%programfiles%", r.env.ProgramFiles},
		{"%programw6432%", r.env.ProgramW6432},
	}
	for _, rep := range replacements {
		p = replaceDir(p, rep.placeholder, rep.dir)
	}

	return NormalizePath(p)
}

// replaceDir replaces every placeholder in p with dir, adding the separator
// the registration forgot.
func replaceDir(p, placeholder, dir string) string {
	if dir == "" || !strings.Contains(p, placeholder) {
		return p
	}
	var b strings.Builder
	for {
		i := strings.Index(p, placeholder)
		if i < 0 {
			b.WriteString(p)
			return b.String()
		}
		b.WriteString(p[:i])
		b.WriteString(dir)
		p = p[i+len(placeholder):]
		if p != "" && p[0] != '\\' {
			b.WriteByte('\\')
		}
	}
}

// Candidates yields the paths to try for raw, in order. Each repair builds on
// the path of the previous one and is only produced when the caller asks for
// more, which it does only after the previous candidate failed to load.
//
//  1. placeholders expanded
//  2. unrooted file name placed under <system root>\system32
//  3. 32-bit Program Files rewritten to the native Program Files
//  4. <system root>\system32 loaded with WOW64 redirection disabled, only
//     for a WOW64 process
func (r *Resolver) Candidates(raw string) iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		p := r.Expand(raw)
		if p == "" {
			return
		}
		if !yield(Candidate{Path: p, Step: StepLiteral}) {
			return
		}

		if !isRooted(p) {
			p = ResolvedPath(r.env.SystemRoot + `\system32\` + string(p))
			if !yield(Candidate{Path: p, Step: StepUnrooted}) {
				return
			}
		}

		x86, native := r.env.ProgramFilesX86, r.env.ProgramW6432
		if x86 != "" && native != "" && x86 != native && hasPathPrefix(p, x86) {
			p = ResolvedPath(native + string(p)[len(x86):])
			if !yield(Candidate{Path: p, Step: StepProgramFiles}) {
				return
			}
		}

		if r.env.WOW64 && hasPathPrefix(p, r.env.SystemRoot+`\system32`) {
			yield(Candidate{Path: p, Step: StepNoRedirect, NoRedirect: true})
		}
	}
}

// Resolve tries every candidate of raw with reader until one loads. The
// returned error is ErrNoMessageTable or wraps ErrCorruptImage when the
// module loaded but has nothing to decode, and is a *ResolveError when no
// candidate loaded.
func (r *Resolver) Resolve(raw string, reader ModuleReader) (Candidate, []byte, error) {
	return r.resolve(raw, reader.ReadMessageTable)
}

func (r *Resolver) resolve(raw string, load func(Candidate) ([]byte, error)) (Candidate, []byte, error) {
	var attempts []Attempt

	for c := range r.Candidates(raw) {
		data, err := load(c)
		var le *LoadError
		if errors.As(err, &le) {
			LogTrace("message file candidate failed to load",
				"raw", raw, "path", c.Path, "step", c.Step, "error", err)
			attempts = append(attempts, Attempt{Candidate: c, Err: err})
			continue
		}
		if len(attempts) > 0 {
			slog.Info("message file path fix worked",
				"before", raw, "after", c.Path, "step", c.Step)
		}
		return c, data, err
	}

	return Candidate{}, nil, &ResolveError{Raw: raw, Attempts: attempts}
}

// isRooted reports whether p is a drive, UNC or root relative path.
func isRooted(p ResolvedPath) bool {
	s := string(p)
	if len(s) >= 2 && s[1] == ':' {
		return true
	}
	return strings.HasPrefix(s, `\`)
}

func hasPathPrefix(p ResolvedPath, dir string) bool {
	s := string(p)
	return s == dir || strings.HasPrefix(s, dir+`\`)
}
