//go:build windows

package eventlog

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"golang.org/x/sys/windows/registry"
)

// Logs returns the names of the classic event logs.
func Logs() ([]string, error) {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, EventLogKey, registry.ENUMERATE_SUB_KEYS)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", EventLogKey, err)
	}
	defer k.Close()

	return k.ReadSubKeyNames(-1)
}

// Sources returns the event sources registered under log.
func Sources(log string) ([]SourceInfo, error) {
	path := EventLogKey + `\` + log
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, path, registry.ENUMERATE_SUB_KEYS)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer k.Close()

	names, err := k.ReadSubKeyNames(-1)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", path, err)
	}

	sources := make([]SourceInfo, 0, len(names))
	for _, name := range names {
		s, err := readSource(k, log, name)
		if err != nil {
			// Some sources are ACL protected, skip them like Event Viewer does.
			slog.Debug("unable to read event source", "log", log, "source", name, "error", err)
			continue
		}
		sources = append(sources, s)
	}
	return sources, nil
}

// All yields every source of every log, stopping at the first log that
// cannot be listed.
func All() iter.Seq2[SourceInfo, error] {
	return func(yield func(SourceInfo, error) bool) {
		logs, err := Logs()
		if err != nil {
			yield(SourceInfo{}, err)
			return
		}
		for _, log := range logs {
			sources, err := Sources(log)
			if err != nil {
				yield(SourceInfo{}, err)
				return
			}
			for _, s := range sources {
				if !yield(s, nil) {
					return
				}
			}
		}
	}
}

func readSource(parent registry.Key, log, name string) (SourceInfo, error) {
	s := SourceInfo{Log: log, Name: name}

	k, err := registry.OpenKey(parent, name, registry.QUERY_VALUE)
	if err != nil {
		return s, err
	}
	defer k.Close()

	if s.EventMessageFile, err = stringValue(k, "EventMessageFile"); err != nil {
		return s, err
	}
	if s.CategoryMessageFile, err = stringValue(k, "CategoryMessageFile"); err != nil {
		return s, err
	}
	if s.ParameterMessageFile, err = stringValue(k, "ParameterMessageFile"); err != nil {
		return s, err
	}
	if s.CategoryCount, err = integerValue(k, "CategoryCount"); err != nil {
		return s, err
	}
	if s.TypesSupported, err = integerValue(k, "TypesSupported"); err != nil {
		return s, err
	}

	for _, v := range []string{"ProviderGuid", "PublisherGuid"} {
		raw, err := stringValue(k, v)
		if err != nil || raw == "" {
			continue
		}
		g, err := ParseGUID(raw)
		if err != nil {
			slog.Debug("invalid provider guid", "log", log, "source", name, "value", raw, "error", err)
			continue
		}
		s.ProviderGUID = g
		break
	}
	return s, nil
}

// stringValue reads REG_SZ and REG_EXPAND_SZ values without expanding them,
// a missing value is empty.
func stringValue(k registry.Key, name string) (string, error) {
	v, _, err := k.GetStringValue(name)
	if errors.Is(err, registry.ErrNotExist) {
		return "", nil
	}
	if errors.Is(err, registry.ErrUnexpectedType) {
		slog.Debug("registry value has an unexpected type", "value", name)
		return "", nil
	}
	return v, err
}

// integerValue reads a REG_DWORD, a missing value is 0.
func integerValue(k registry.Key, name string) (uint32, error) {
	v, _, err := k.GetIntegerValue(name)
	if errors.Is(err, registry.ErrNotExist) || errors.Is(err, registry.ErrUnexpectedType) {
		return 0, nil
	}
	return uint32(v), err
}
