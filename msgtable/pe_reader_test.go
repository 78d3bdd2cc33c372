package msgtable

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/0xrawsec/toast"

	"github.com/tekert/golang-msgtable/internal/test"
)

// writeImage writes a synthetic DLL under root, creating parent directories.
func writeImage(t *testing.T, root, rel string, image []byte) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, image, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestPEReader(t *testing.T) {
	t.Parallel()

	table := test.MessageTable{Blocks: []test.Block{
		{Low: 0x3E8, High: 0x3E9, Entries: test.Unicode("The service started.", "The service stopped.")},
	}}.Bytes()

	root := t.TempDir()
	writeImage(t, root, "Windows/System32/Test.DLL", test.BuildPE(test.MessageTableResource(LangEnglishUS, table)))
	writeImage(t, root, "Windows/System32/NoRes.dll", test.BuildPE())
	writeImage(t, root, "Windows/System32/text.dll", []byte("this is not an image"))

	r := NewPEReader(root, nil)

	t.Run("local path", func(t *testing.T) {
		tt := toast.FromT(t)
		got := r.LocalPath(`c:\windows\system32\test.dll`)
		tt.Assert(got == filepath.Join(root, "Windows", "System32", "Test.DLL"), "%s", got)

		got = r.LocalPath(`c:\windows\..\system32\absent.dll`)
		tt.Assert(got == filepath.Join(root, "Windows", "System32", "absent.dll"), "%s", got)

		tt.Assert(NewPEReader("", nil).LocalPath(`c:\x.dll`) == `c:\x.dll`)
	})

	t.Run("message table", func(t *testing.T) {
		tt := toast.FromT(t)
		data, err := r.ReadMessageTable(Candidate{Path: `c:\windows\system32\test.dll`})
		tt.CheckErr(err)
		tt.Assert(bytes.Equal(data, table))

		records, _, err := DecodeMessageTable(data, "System", "Service Control Manager")
		tt.CheckErr(err)
		tt.Assert(len(records) == 2)
		tt.Assert(records[1].ID.Value() == 0x3E9 && records[1].Text == "The service stopped.")
	})

	t.Run("language filter", func(t *testing.T) {
		tt := toast.FromT(t)
		_, err := NewPEReader(root, NewLanguageFilter(0x0407)).ReadMessageTable(Candidate{Path: `c:\windows\system32\test.dll`})
		tt.ExpectErr(err, ErrNoMessageTable)
	})

	t.Run("missing module", func(t *testing.T) {
		tt := toast.FromT(t)
		_, err := r.ReadMessageTable(Candidate{Path: `c:\windows\system32\absent.dll`})
		var le *LoadError
		tt.Assert(errors.As(err, &le))
		tt.ExpectErr(err, ErrLoadFailed)
		tt.ExpectErr(err, os.ErrNotExist)
	})

	t.Run("no resources", func(t *testing.T) {
		tt := toast.FromT(t)
		_, err := r.ReadMessageTable(Candidate{Path: `c:\windows\system32\nores.dll`})
		tt.ExpectErr(err, ErrNoMessageTable)
	})

	t.Run("not an image", func(t *testing.T) {
		tt := toast.FromT(t)
		_, err := r.ReadMessageTable(Candidate{Path: `c:\windows\system32\text.dll`})
		tt.ExpectErr(err, ErrLoadFailed)
	})
}

func TestPEReaderCache(t *testing.T) {
	t.Parallel()

	tt := toast.FromT(t)

	table := test.MessageTable{Blocks: []test.Block{
		{Low: 1, High: 1, Entries: test.ANSI("Offline message text.")},
	}}.Bytes()
	root := t.TempDir()
	writeImage(t, root, "WINDOWS/system32/Offline.dll", test.BuildPE(test.MessageTableResource(LangEnglishUS, table)))

	c := NewCache(NewPEReader(root, nil), WithResolver(NewResolver(testEnv64)))
	res := c.Process(Source{Log: "Application", Name: "Offline", MessageFiles: `offline.dll;%SystemRoot%\System32\offline.dll`})
	tt.Assert(res.OK())
	tt.Assert(res.Diagnostics[0].Step == StepUnrooted)
	tt.Assert(res.Files[0] == res.Files[1])

	var n int
	for r := range c.Records() {
		tt.Assert(r.Text == "Offline message text.")
		n++
	}
	tt.Assert(n == 1)
}
