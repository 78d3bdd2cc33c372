package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"github.com/tekert/golang-msgtable/msgtable"
)

// recordLine is one decoded message in the output.
type recordLine struct {
	Type     string `json:"type"`
	Log      string `json:"log"`
	Source   string `json:"source"`
	Module   string `json:"module"`
	ID       uint32 `json:"id"`
	Hex      string `json:"hex"`
	EventID  uint16 `json:"eventId"`
	Severity string `json:"severity"`
	Facility string `json:"facility"`
	Customer bool   `json:"customer,omitempty"`
	Message  string `json:"message"`
}

func newRecordLine(mf *msgtable.MessageFile, r *msgtable.MessageRecord) recordLine {
	return recordLine{
		Type:     "record",
		Log:      r.Log,
		Source:   r.Source,
		Module:   string(mf.Path()),
		ID:       r.ID.Value(),
		Hex:      fmt.Sprintf("0x%08X", r.ID.Value()),
		EventID:  r.EventID(),
		Severity: r.ID.Severity().String(),
		Facility: r.ID.Facility().String(),
		Customer: r.ID.IsCustomer(),
		Message:  r.Text,
	}
}

// failureLine is a message module that could not be read.
type failureLine struct {
	Log     string `json:"log"`
	Source  string `json:"source"`
	Raw     string `json:"raw"`
	Path    string `json:"path"`
	Errno   uint32 `json:"errno,omitempty"`
	Message string `json:"message"`
}

// summaryLine closes every output.
type summaryLine struct {
	Type     string        `json:"type"`
	RunID    string        `json:"runId"`
	Started  time.Time     `json:"started"`
	Duration string        `json:"duration"`
	Sources  int           `json:"sources"`
	Modules  int           `json:"modules"`
	Records  int           `json:"records"`
	Skipped  int           `json:"duplicates,omitempty"`
	Loads    int           `json:"loads"`
	Failures []failureLine `json:"failures,omitempty"`
}

// output writes JSON lines to a file or stdout, gzip compressed on demand.
type output struct {
	enc  *json.Encoder
	buf  *bufio.Writer
	gz   *gzip.Writer
	file io.Closer
}

func newOutput(path string, compress bool) (*output, error) {
	var w io.Writer = os.Stdout
	o := &output{}
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		w, o.file = f, f
	}
	return o.wrap(w, compress), nil
}

func (o *output) wrap(w io.Writer, compress bool) *output {
	if compress {
		o.gz = gzip.NewWriter(w)
		w = o.gz
	}
	o.buf = bufio.NewWriter(w)
	o.enc = json.NewEncoder(o.buf)
	o.enc.SetEscapeHTML(false)
	return o
}

// Write encodes v as one line.
func (o *output) Write(v any) error {
	return o.enc.Encode(v)
}

// Close flushes every layer, the file last.
func (o *output) Close() error {
	err := o.buf.Flush()
	if o.gz != nil {
		if cerr := o.gz.Close(); err == nil {
			err = cerr
		}
	}
	if o.file != nil {
		if cerr := o.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
