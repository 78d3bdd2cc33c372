package main

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"slices"

	"github.com/goccy/go-json"
	"github.com/phuslu/log"

	"github.com/tekert/golang-msgtable/eventlog"
	"github.com/tekert/golang-msgtable/msgtable"
)

// sourceEntry accepts both msgtable.Source and eventlog.SourceInfo JSON.
type sourceEntry struct {
	Log              string `json:"log"`
	Name             string `json:"name"`
	MessageFiles     string `json:"messageFiles"`
	EventMessageFile string `json:"eventMessageFile"`
}

func (e sourceEntry) source() msgtable.Source {
	files := e.MessageFiles
	if files == "" {
		files = e.EventMessageFile
	}
	return msgtable.Source{Log: e.Log, Name: e.Name, MessageFiles: files}
}

// readSourcesFile reads a JSON array of sources.
func readSourcesFile(path string) ([]msgtable.Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []sourceEntry
	if err := json.NewDecoder(f).Decode(&entries); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sources := make([]msgtable.Source, 0, len(entries))
	for _, e := range entries {
		sources = append(sources, e.source())
	}
	return sources, nil
}

// registrySources lists the event sources registered on this machine.
func registrySources() ([]msgtable.Source, error) {
	var sources []msgtable.Source
	for si, err := range eventlog.All() {
		if err != nil {
			return nil, err
		}
		if !si.HasMessageFile() {
			log.Debug().Str("log", si.Log).Str("source", si.Name).Msg("event source has no message file")
			continue
		}
		sources = append(sources, si.Source())
	}
	return sources, nil
}

// loadSources returns the selected sources, from the file the configuration
// names or from the registry.
func loadSources(c *Config, sel *selection) (iter.Seq[msgtable.Source], int, error) {
	var sources []msgtable.Source
	var err error
	if c.Sources != "" {
		sources, err = readSourcesFile(c.Sources)
	} else {
		sources, err = registrySources()
		if errors.Is(err, eventlog.ErrUnsupported) {
			err = fmt.Errorf("%w, use --sources", err)
		}
	}
	if err != nil {
		return nil, 0, err
	}

	sources = slices.DeleteFunc(sources, func(s msgtable.Source) bool {
		return !sel.Source(s)
	})
	return slices.Values(sources), len(sources), nil
}
