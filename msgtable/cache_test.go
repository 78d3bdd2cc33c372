package msgtable

import (
	"errors"
	"fmt"
	"sync"
	"syscall"
	"testing"

	"github.com/0xrawsec/toast"

	"github.com/tekert/golang-msgtable/internal/test"
)

// fakeModules serves message tables by loaded path, every other path fails to
// load with ERROR_MOD_NOT_FOUND.
type fakeModules struct {
	sync.Mutex
	tables map[ResolvedPath][]byte
	errs   map[ResolvedPath]error
	reads  map[ResolvedPath]int
}

func newFakeModules() *fakeModules {
	return &fakeModules{
		tables: make(map[ResolvedPath][]byte),
		errs:   make(map[ResolvedPath]error),
		reads:  make(map[ResolvedPath]int),
	}
}

func (f *fakeModules) add(p ResolvedPath, texts ...string) {
	f.tables[p] = test.MessageTable{Blocks: []test.Block{
		{Low: 1, High: uint32(len(texts)), Entries: test.ANSI(texts...)},
	}}.Bytes()
}

func (f *fakeModules) ReadMessageTable(c Candidate) ([]byte, error) {
	f.Lock()
	defer f.Unlock()
	f.reads[c.Path]++
	if err, ok := f.errs[c.Path]; ok {
		return nil, err
	}
	if data, ok := f.tables[c.Path]; ok {
		return data, nil
	}
	return nil, &LoadError{Path: c.Path, Err: syscall.Errno(126)}
}

func (f *fakeModules) readsOf(p ResolvedPath) int {
	f.Lock()
	defer f.Unlock()
	return f.reads[p]
}

const kernel32Path = ResolvedPath(`c:\windows\system32\kernel32.dll`)

func testCache(f *fakeModules) *Cache {
	return NewCache(f, WithResolver(NewResolver(testEnv64)))
}

func TestCacheLoadOnce(t *testing.T) {
	t.Parallel()

	tt := toast.FromT(t)

	f := newFakeModules()
	f.add(kernel32Path, "The operation completed successfully.", "Incorrect function call.")
	c := testCache(f)

	spellings := []string{
		`%SystemRoot%\System32\kernel32.dll`,
		`%windir%\system32\KERNEL32.DLL`,
		`C:/Windows/System32/kernel32.dll`,
		`\SystemRoot\System32\kernel32.dll`,
		`kernel32.dll`,
	}
	var first *MessageFile
	for i, raw := range spellings {
		mf, err := c.GetOrLoad("Application", fmt.Sprintf("Source%d", i), raw)
		tt.CheckErr(err)
		if first == nil {
			first = mf
		}
		tt.Assert(mf == first, "%q loaded another file", raw)
	}

	// the bare name is tried as is before it hits the cached system32 path
	tt.Assert(c.Loads() == 2, "%d loads", c.Loads())
	tt.Assert(f.readsOf(kernel32Path) == 1)
	tt.Assert(c.Len() == 1)

	tt.Assert(first.Loaded() && first.Err() == nil)
	tt.Assert(first.Path() == kernel32Path && first.FileName() == "kernel32.dll")
	tt.Assert(first.Step() == StepLiteral)
	tt.Assert(first.LogName() == "Application" && first.SourceName() == "Source0")
	tt.Assert(first.Len() == 2 && first.Stats().Records == 2)

	records := first.Records()
	tt.Assert(records[0].Source == "Source0" && records[1].ID.Value() == 2)
	records[0].Text = "changed"
	tt.Assert(first.Records()[0].Text != "changed")

	for _, raw := range spellings {
		tt.Assert(c.Contains(raw), "%q not cached", raw)
	}
	tt.Assert(!c.Contains(`c:\windows\system32\ntdll.dll`))
}

func TestCacheUnrootedLoadedFirst(t *testing.T) {
	t.Parallel()

	tt := toast.FromT(t)

	f := newFakeModules()
	f.add(kernel32Path, "The operation completed successfully.")
	c := testCache(f)

	mf, err := c.GetOrLoad("System", "Bare", "kernel32.dll")
	tt.CheckErr(err)
	tt.Assert(mf.Step() == StepUnrooted)
	tt.Assert(mf.RawPath() == "kernel32.dll")
	tt.Assert(c.Loads() == 2)

	// the absolute spelling finds the entry without loading
	again, err := c.GetOrLoad("System", "Absolute", `%SystemRoot%\System32\kernel32.dll`)
	tt.CheckErr(err)
	tt.Assert(again == mf)
	tt.Assert(c.Loads() == 2)
}

func TestCacheNegative(t *testing.T) {
	t.Parallel()

	tt := toast.FromT(t)

	f := newFakeModules()
	c := testCache(f)

	mf, err := c.GetOrLoad("Application", "Gone", `%ProgramFiles%\Gone\gone.dll`)
	tt.ExpectErr(err, ErrUnresolvable)
	tt.Assert(mf != nil && !mf.Loaded())
	tt.Assert(mf.Path() == `c:\program files (x86)\gone\gone.dll`)
	tt.ExpectErr(mf.Err(), ErrLoadFailed)
	loads := c.Loads()
	tt.Assert(loads == 2, "%d loads", loads)

	again, err := c.GetOrLoad("Application", "Gone too", `%ProgramFiles(x86)%\Gone\gone.dll`)
	tt.ExpectErr(err, ErrUnresolvable)
	tt.Assert(again == mf)
	tt.Assert(c.Loads() == loads, "failed module retried")

	tt.Assert(c.Len() == 0)
	for range c.Files() {
		t.Error("failed module listed in Files")
	}
	tt.Assert(len(c.Failures()) == 1 && c.Failures()[0] == mf)
	tt.Assert(!c.Contains(`%ProgramFiles%\Gone\gone.dll`))
}

func TestCacheNegativeOtherSpelling(t *testing.T) {
	t.Parallel()

	tt := toast.FromT(t)

	f := newFakeModules()
	c := testCache(f)

	mf, err := c.GetOrLoad("System", "Bare", "x.dll")
	tt.ExpectErr(err, ErrUnresolvable)
	// literal, unrooted then redirection disabled
	tt.Assert(c.Loads() == 3, "%d loads", c.Loads())

	for _, raw := range []string{`%SystemRoot%\system32\x.dll`, `C:\Windows\System32\X.DLL`, "X.dll"} {
		again, err := c.GetOrLoad("System", "Rooted", raw)
		tt.ExpectErr(err, ErrUnresolvable)
		tt.Assert(again == mf, "%q loaded another file", raw)
	}
	tt.Assert(c.Loads() == 3, "failed module retried, %d loads", c.Loads())
	tt.Assert(f.readsOf(`c:\windows\system32\x.dll`) == 2)
	tt.Assert(len(c.Failures()) == 1)
}

func TestCacheCorrupt(t *testing.T) {
	t.Parallel()

	tt := toast.FromT(t)

	f := newFakeModules()
	f.errs[kernel32Path] = fmt.Errorf("%w: bad tree", ErrCorruptImage)
	f.tables[`c:\windows\system32\short.dll`] = []byte{1, 0}
	c := testCache(f)

	mf, err := c.GetOrLoad("System", "Corrupt", kernel32Path.String())
	tt.ExpectErr(err, ErrCorruptImage)
	tt.Assert(!mf.Loaded())
	// the next candidate is not tried, the module was found
	tt.Assert(c.Loads() == 1)

	mf, err = c.GetOrLoad("System", "Short", `%SystemRoot%\System32\short.dll`)
	tt.ExpectErr(err, ErrCorruptTable)
	tt.Assert(!mf.Loaded())

	_, err = c.GetOrLoad("System", "Corrupt", kernel32Path.String())
	tt.ExpectErr(err, ErrCorruptImage)
	tt.Assert(c.Loads() == 2)
	tt.Assert(len(c.Failures()) == 2)
	tt.Assert(c.Len() == 0)
}

func TestCacheNoMessageTable(t *testing.T) {
	t.Parallel()

	tt := toast.FromT(t)

	f := newFakeModules()
	f.errs[`c:\windows\system32\empty.dll`] = ErrNoMessageTable
	c := testCache(f)

	mf, err := c.GetOrLoad("System", "Empty", `%SystemRoot%\System32\empty.dll`)
	tt.CheckErr(err)
	tt.Assert(mf.Loaded() && mf.Len() == 0)
	tt.Assert(c.Len() == 1)
	tt.Assert(len(c.Failures()) == 0)
}

func TestCacheEmptyPath(t *testing.T) {
	t.Parallel()

	tt := toast.FromT(t)

	c := testCache(newFakeModules())
	mf, err := c.GetOrLoad("System", "Blank", "  ")
	tt.ExpectErr(err, ErrUnresolvable)
	tt.Assert(mf == nil)
	tt.Assert(c.Loads() == 0)
}

func TestCacheAdd(t *testing.T) {
	t.Parallel()

	tt := toast.FromT(t)

	f := newFakeModules()
	f.add(kernel32Path, "The operation completed successfully.")
	c := testCache(f)

	records := []MessageRecord{{Log: "System", Source: "Manual", ID: 7, Text: "Seven."}}
	mf := NewMessageFile("System", "Manual", `C:\Windows\System32\Manual.dll`, records)
	tt.Assert(c.Add(mf))
	tt.Assert(mf.Path() == `c:\windows\system32\manual.dll`)
	tt.Assert(mf.Loaded())

	dup := NewMessageFile("System", "Other", `c:\windows\system32\manual.dll`, nil)
	tt.Assert(!c.Add(dup))
	tt.Assert(!c.Add(nil))
	tt.Assert(!c.Add(NewMessageFile("System", "Blank", " ", nil)))
	tt.Assert(c.Len() == 1)
	tt.Assert(!c.Contains(""))

	got, ok := c.Get(`%SystemRoot%\System32\manual.dll`)
	tt.Assert(ok && got == mf)

	// an added file is never loaded
	loaded, err := c.GetOrLoad("System", "Manual", `%SystemRoot%\System32\manual.dll`)
	tt.CheckErr(err)
	tt.Assert(loaded == mf)
	tt.Assert(c.Loads() == 0)

	_, err = c.GetOrLoad("System", "Kernel", kernel32Path.String())
	tt.CheckErr(err)
	tt.Assert(!c.Add(NewMessageFile("System", "Again", kernel32Path, nil)))
	tt.Assert(c.Len() == 2)
}

func TestCacheRecords(t *testing.T) {
	t.Parallel()

	tt := toast.FromT(t)

	f := newFakeModules()
	f.add(kernel32Path, "First kernel message.", "Second kernel message.")
	f.add(`c:\windows\system32\netmsg.dll`, "Network message text.")
	c := testCache(f)

	for _, src := range []Source{
		{Log: "System", Name: "A", MessageFiles: `%SystemRoot%\System32\kernel32.dll;%SystemRoot%\System32\netmsg.dll`},
		{Log: "System", Name: "B", MessageFiles: `kernel32.dll`},
		{Log: "Application", Name: "C", MessageFiles: `%windir%\system32\netmsg.dll`},
	} {
		c.Process(src)
	}

	var texts []string
	for r := range c.Records() {
		tt.Assert(r.Source == "A", "record from %s", r.Source)
		texts = append(texts, r.Text)
	}
	tt.Assert(len(texts) == 3, "%v", texts)
	tt.Assert(texts[0] == "First kernel message." && texts[2] == "Network message text.")

	n := 0
	for range c.Records() {
		n++
		break
	}
	tt.Assert(n == 1)
}

func TestCacheConcurrent(t *testing.T) {
	t.Parallel()

	tt := toast.FromT(t)

	f := newFakeModules()
	const modules = 8
	for i := range modules {
		f.add(ResolvedPath(fmt.Sprintf(`c:\windows\system32\mod%d.dll`, i)), fmt.Sprintf("Module %d message.", i))
	}
	c := testCache(f)

	var wg sync.WaitGroup
	errs := make(chan error, 16*modules)
	for g := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range modules {
				raw := fmt.Sprintf(`%%SystemRoot%%\System32\mod%d.dll`, (i+g)%modules)
				if g%2 == 0 {
					raw = fmt.Sprintf(`mod%d.dll`, (i+g)%modules)
				}
				if _, err := c.GetOrLoad("Application", fmt.Sprintf("G%d", g), raw); err != nil {
					errs <- err
				}
				c.Files()
				c.Contains(raw)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		tt.CheckErr(err)
	}
	tt.Assert(c.Len() == modules)
	for i := range modules {
		p := ResolvedPath(fmt.Sprintf(`c:\windows\system32\mod%d.dll`, i))
		tt.Assert(f.readsOf(p) == 1, "%s read %d times", p, f.readsOf(p))
	}
}

func TestCacheDiagnosticsSampled(t *testing.T) {
	t.Parallel()

	tt := toast.FromT(t)

	f := newFakeModules()
	var entries []test.Entry
	for range 20 {
		entries = append(entries, test.Entry{Text: "Entry with broken flags.", Flags: test.Flags(7)})
	}
	f.tables[kernel32Path] = test.MessageTable{Blocks: []test.Block{{Low: 1, High: 20, Entries: entries}}}.Bytes()

	sampler := &countingSampler{}
	c := NewCache(f, WithResolver(NewResolver(testEnv64)), WithCacheSampler(sampler))

	mf, err := c.GetOrLoad("System", "Flags", kernel32Path.String())
	tt.CheckErr(err)
	tt.Assert(mf.Stats().BadFlags == 20)
	tt.Assert(sampler.flushes == 1)
	tt.Assert(sampler.seen > 0)
}

type countingSampler struct {
	seen    int
	flushes int
}

func (s *countingSampler) ShouldLog(string) bool {
	s.seen++
	return s.seen <= 2
}

func (s *countingSampler) Flush() { s.flushes++ }

var errTest = errors.New("test")

func TestCacheReaderErrorNotResolution(t *testing.T) {
	t.Parallel()

	tt := toast.FromT(t)

	f := newFakeModules()
	f.errs[kernel32Path] = errTest
	c := testCache(f)

	_, err := c.GetOrLoad("System", "Odd", "kernel32.dll")
	tt.ExpectErr(err, errTest)
	// the literal failed to load, the unrooted candidate stopped the search
	tt.Assert(c.Loads() == 2)
	tt.Assert(len(c.Failures()) == 1)
}
