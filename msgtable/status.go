package msgtable

import (
	"log/slog"
	"strconv"
)

// https://learn.microsoft.com/en-us/openspecs/windows_protocols/ms-erref/87fba13e-bf06-450e-83b1-9241dc81e781
//
//	 3 3 2 2 2 2 2 2 2 2 2 2 1 1 1 1 1 1 1 1 1 1
//	 1 0 9 8 7 6 5 4 3 2 1 0 9 8 7 6 5 4 3 2 1 0 9 8 7 6 5 4 3 2 1 0
//	+---+-+-+-----------------------+-------------------------------+
//	|Sev|C|N|       Facility        |              Code             |
//	+---+-+-+-----------------------+-------------------------------+
//
// Message compilers (mc.exe) write event identifiers with this layout, and
// Event Viewer shows only the Code part as the "Event ID".
const (
	statusSeverityShift = 30
	statusSeverityMask  = 0x3
	statusCustomerBit   = 1 << 29
	statusReservedBit   = 1 << 28
	statusFacilityShift = 16
	statusFacilityMask  = 0x7FF
	statusCodeMask      = 0xFFFF
)

// Severity is the two most significant bits of a status value. Not to be
// confused with the event Level shown by Event Viewer.
type Severity uint8

const (
	SeveritySuccess Severity = iota
	SeverityInformational
	SeverityWarning
	SeverityError
)

var severityNames = [...]string{
	SeveritySuccess:       "Success",
	SeverityInformational: "Informational",
	SeverityWarning:       "Warning",
	SeverityError:         "Error",
}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return "Severity(" + strconv.Itoa(int(s)) + ")"
}

// StatusCode is an event identifier interpreted as an NTSTATUS value.
// All fields are derived from the 32-bit value, decoding never fails.
type StatusCode uint32

// DecodeStatus builds a StatusCode from the low 32 bits of value.
func DecodeStatus(value int64) StatusCode {
	return StatusCode(uint32(value))
}

// Value returns the original 32-bit value.
func (s StatusCode) Value() uint32 {
	return uint32(s)
}

func (s StatusCode) Severity() Severity {
	return Severity((uint32(s) >> statusSeverityShift) & statusSeverityMask)
}

// IsCustomer reports whether the value is customer defined. Always false for
// Microsoft defined values.
func (s StatusCode) IsCustomer() bool {
	return uint32(s)&statusCustomerBit != 0
}

// IsReserved reports whether the reserved (N) bit is set. It must be clear for
// a value to be mapped to an equivalent HRESULT.
func (s StatusCode) IsReserved() bool {
	return uint32(s)&statusReservedBit != 0
}

func (s StatusCode) Facility() Facility {
	return Facility((uint32(s) >> statusFacilityShift) & statusFacilityMask)
}

// Code is the value Event Viewer displays in its "Event ID" column.
func (s StatusCode) Code() uint16 {
	return uint16(uint32(s) & statusCodeMask)
}

// String returns the value as 0x prefixed uppercase hex, 0xC0000005 style.
func (s StatusCode) String() string {
	b := make([]byte, 0, 10)
	b = append(b, '0', 'x')
	hex := strconv.FormatUint(uint64(s), 16)
	for i := len(hex); i < 8; i++ {
		b = append(b, '0')
	}
	for i := 0; i < len(hex); i++ {
		c := hex[i]
		if c >= 'a' && c <= 'f' {
			c -= 'a' - 'A'
		}
		b = append(b, c)
	}
	return string(b)
}

func (s StatusCode) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("value", s.String()),
		slog.Int("code", int(s.Code())),
		slog.String("severity", s.Severity().String()),
		slog.Bool("customer", s.IsCustomer()),
		slog.Bool("reserved", s.IsReserved()),
		slog.Any("facility", lazyFacility{s.Facility()}),
	)
}
