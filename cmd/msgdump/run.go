package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/tekert/golang-msgtable/msgtable"
)

// newReader picks the offline reader when an image root is configured.
func newReader(c *Config) (msgtable.ModuleReader, error) {
	filter, err := c.LanguageFilter()
	if err != nil {
		return nil, err
	}
	if c.ImageRoot != "" {
		return msgtable.NewPEReader(c.ImageRoot, filter), nil
	}
	r, err := msgtable.NewNativeReader(filter)
	if err != nil {
		return nil, fmt.Errorf("%w, use --image-root", err)
	}
	return r, nil
}

// run inventories the selected sources and writes every distinct module's
// records once, then the summary.
func run(ctx context.Context, c *Config) (*summaryLine, error) {
	sum := &summaryLine{
		Type:    "summary",
		RunID:   uuid.NewString(),
		Started: time.Now().UTC(),
	}
	logger := log.DefaultLogger
	logger.Context = log.NewContext(nil).Str("run", sum.RunID).Value()

	sel, err := newSelection(c)
	if err != nil {
		return nil, err
	}
	reader, err := newReader(c)
	if err != nil {
		return nil, err
	}
	opts := []msgtable.CacheOption{}
	enc, err := c.ANSIEncoding()
	if err != nil {
		return nil, err
	}
	if enc != nil {
		opts = append(opts, msgtable.WithDecodeOptions(msgtable.WithANSIEncoding(enc)))
	}

	sources, n, err := loadSources(c, sel)
	if err != nil {
		return nil, err
	}
	logger.Info().Int("sources", n).Str("root", c.ImageRoot).Msg("inventory started")

	cache := msgtable.NewCache(reader, opts...)
	for src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := cache.Process(src)
		sum.Sources++
		for _, d := range res.Diagnostics {
			if d.OK {
				continue
			}
			logger.Warn().Str("log", src.Log).Str("source", src.Name).Str("raw", d.RawPath).
				Uint32("errno", uint32(d.Errno)).Msg(d.Message)
			sum.Failures = append(sum.Failures, failureLine{
				Log:     src.Log,
				Source:  src.Name,
				Raw:     d.RawPath,
				Path:    string(d.Path),
				Errno:   uint32(d.Errno),
				Message: d.Message,
			})
		}
	}

	out, err := newOutput(c.Out, c.Gzip)
	if err != nil {
		return nil, err
	}
	seen := make(map[msgtable.RecordKey]struct{})
	for mf := range cache.Files() {
		if !sel.File(mf) {
			continue
		}
		sum.Modules++
		for _, r := range mf.Records() {
			if c.Unique {
				if _, dup := seen[r.Key()]; dup {
					sum.Skipped++
					continue
				}
				seen[r.Key()] = struct{}{}
			}
			if err := out.Write(newRecordLine(mf, &r)); err != nil {
				out.Close()
				return nil, err
			}
			sum.Records++
		}
		logger.Debug().Str("module", string(mf.Path())).Int("records", mf.Len()).Msg("module written")
	}

	sum.Loads = cache.Loads()
	sum.Duration = time.Since(sum.Started).String()
	if err := out.Write(sum); err != nil {
		out.Close()
		return nil, err
	}
	if err := out.Close(); err != nil {
		return nil, err
	}

	logger.Info().Int("modules", sum.Modules).Int("records", sum.Records).
		Int("failures", len(sum.Failures)).Str("duration", sum.Duration).Msg("inventory done")
	return sum, nil
}
