// Package eventlog reads the classic event log registrations the msgtable
// package inventories: the logs under
// HKLM\SYSTEM\CurrentControlSet\Services\EventLog and, per log, the event
// sources with their message module values.
package eventlog

import (
	"errors"
	"log/slog"

	"github.com/tekert/golang-msgtable/msgtable"
)

// Root of the classic event log registrations, under HKEY_LOCAL_MACHINE.
const EventLogKey = `SYSTEM\CurrentControlSet\Services\EventLog`

var (
	ErrUnsupported = errors.New("event log registry is only available on windows")
)

// TypesSupported bits
const (
	EventTypeError        = 0x0001
	EventTypeWarning      = 0x0002
	EventTypeInformation  = 0x0004
	EventTypeAuditSuccess = 0x0008
	EventTypeAuditFailure = 0x0010
)

// SourceInfo is the registration of one event source. Paths are kept raw,
// unexpanded, the way they are stored.
type SourceInfo struct {
	Log  string `json:"log"`
	Name string `json:"name"`

	EventMessageFile     string `json:"eventMessageFile,omitempty"`
	CategoryMessageFile  string `json:"categoryMessageFile,omitempty"`
	ParameterMessageFile string `json:"parameterMessageFile,omitempty"`
	CategoryCount        uint32 `json:"categoryCount,omitempty"`
	TypesSupported       uint32 `json:"typesSupported,omitempty"`
	// ProviderGuid, set by sources also registered as manifest providers.
	ProviderGUID *GUID `json:"providerGuid,omitempty"`
}

// Source returns what the msgtable inventory needs from the registration.
func (s *SourceInfo) Source() msgtable.Source {
	return msgtable.Source{
		Log:          s.Log,
		Name:         s.Name,
		MessageFiles: s.EventMessageFile,
	}
}

// HasMessageFile reports whether the source registers any message module.
func (s *SourceInfo) HasMessageFile() bool {
	return len(msgtable.SplitPathList(s.EventMessageFile)) > 0
}

func (s *SourceInfo) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("log", s.Log),
		slog.String("name", s.Name),
		slog.String("eventMessageFile", s.EventMessageFile),
	}
	if s.ProviderGUID != nil {
		attrs = append(attrs, slog.String("providerGuid", s.ProviderGUID.String()))
	}
	return slog.GroupValue(attrs...)
}
