package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/tekert/golang-msgtable/msgtable"
)

const envPrefix = "MSGDUMP_"

// Config of a msgdump run. Every field can be set from the environment,
// MSGDUMP_IMAGE_ROOT sets image_root, flags win over the environment.
type Config struct {
	Sources   string `koanf:"sources"`
	ImageRoot string `koanf:"image_root"`
	Lang      string `koanf:"lang"`
	Charset   string `koanf:"charset"`

	// comma separated glob patterns
	Logs        string `koanf:"log"`
	SourceNames string `koanf:"source"`
	Paths       string `koanf:"path"`

	Out     string `koanf:"out"`
	Gzip    bool   `koanf:"gzip"`
	Unique  bool   `koanf:"unique"`
	Verbose bool   `koanf:"verbose"`
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"sources":    "sources",
	"image-root": "image_root",
	"lang":       "lang",
	"charset":    "charset",
	"log":        "log",
	"source":     "source",
	"path":       "path",
	"out":        "out",
	"gzip":       "gzip",
	"unique":     "unique",
	"verbose":    "verbose",
}

func bindFlags(fs *pflag.FlagSet) {
	fs.String("sources", "", "JSON file of [{log,name,messageFiles}] to read instead of the registry")
	fs.String("image-root", "", "read modules from an offline image mounted at this directory")
	fs.String("lang", "", "LANGIDs to decode, comma separated (0x409,1031) or \"any\"; default is the UI language")
	fs.String("charset", "", "IANA charset of ANSI entries (default windows-1252)")
	fs.String("log", "", "only logs matching these globs, comma separated")
	fs.String("source", "", "only sources matching these globs, comma separated")
	fs.String("path", "", "only modules whose resolved path matches these globs, comma separated")
	fs.StringP("out", "o", "-", "output file, - for stdout; a .gz suffix compresses")
	fs.Bool("gzip", false, "gzip the output")
	fs.Bool("unique", false, "drop records whose id and message were already written")
	fs.BoolP("verbose", "v", false, "debug logging")
}

// loadConfig reads the environment, then the flags that were set.
func loadConfig(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var flagErr error
	fs.Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		if err := k.Set(key, f.Value.String()); err != nil && flagErr == nil {
			flagErr = fmt.Errorf("flag --%s: %w", f.Name, err)
		}
	})
	if flagErr != nil {
		return nil, flagErr
	}

	cfg := &Config{Out: "-"}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}
	if cfg.Out == "" {
		cfg.Out = "-"
	}
	if strings.HasSuffix(strings.ToLower(cfg.Out), ".gz") {
		cfg.Gzip = true
	}
	return cfg, nil
}

// LanguageFilter parses Lang. Nil leaves the choice to the reader.
func (c *Config) LanguageFilter() (*msgtable.LanguageFilter, error) {
	s := strings.TrimSpace(c.Lang)
	switch strings.ToLower(s) {
	case "":
		return nil, nil
	case "any", "*":
		return msgtable.NewLanguageFilter(), nil
	}

	var langs []uint16
	for _, part := range splitList(s) {
		v, err := strconv.ParseUint(part, 0, 16)
		if err != nil {
			return nil, fmt.Errorf("bad LANGID %q: %w", part, err)
		}
		langs = append(langs, uint16(v))
	}
	return msgtable.NewLanguageFilter(langs...), nil
}

// ANSIEncoding looks up Charset, nil for the default code page.
func (c *Config) ANSIEncoding() (encoding.Encoding, error) {
	if c.Charset == "" {
		return nil, nil
	}
	enc, err := ianaindex.IANA.Encoding(c.Charset)
	if err != nil {
		return nil, fmt.Errorf("charset %q: %w", c.Charset, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("charset %q is not supported", c.Charset)
	}
	return enc, nil
}

// splitList splits a comma separated list, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
