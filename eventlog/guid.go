package eventlog

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var nullGUID = GUID{}

/*
typedef struct _GUID {
	DWORD Data1;
	WORD Data2;
	WORD Data3;
	BYTE Data4[8];
} GUID;
*/

// GUID of an event provider, as registered in ProviderGuid.
// Example: {9E814AAD-3204-11D2-9A82-006008A86939} =
// GUID(0x9e814aad, 0x3204, 0x11d2, [8]byte{0x9a, 0x82, 0x00, 0x60, 0x08, 0xa8, 0x69, 0x39})
type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// FromUUID converts an RFC 4122 (big-endian) UUID.
func FromUUID(u uuid.UUID) GUID {
	g := GUID{
		Data1: binary.BigEndian.Uint32(u[0:4]),
		Data2: binary.BigEndian.Uint16(u[4:6]),
		Data3: binary.BigEndian.Uint16(u[6:8]),
	}
	copy(g.Data4[:], u[8:])
	return g
}

// UUID returns the RFC 4122 byte order of g.
func (g *GUID) UUID() uuid.UUID {
	var u uuid.UUID
	binary.BigEndian.PutUint32(u[0:4], g.Data1)
	binary.BigEndian.PutUint16(u[4:6], g.Data2)
	binary.BigEndian.PutUint16(u[6:8], g.Data3)
	copy(u[8:], g.Data4[:])
	return u
}

// IsZero checks if GUID is all zeros
func (g *GUID) IsZero() bool {
	return g.Equals(&nullGUID)
}

// UPPERCASE String representation of the GUID, the registry spelling
func (g *GUID) String() string {
	return "{" + strings.ToUpper(g.UUID().String()) + "}"
}

// lowercase string representation of the GUID
func (g *GUID) StringL() string {
	return "{" + g.UUID().String() + "}"
}

func (g *GUID) Equals(other *GUID) bool {
	return other != nil && *g == *other
}

// MustParseGUID parses a guid string into a GUID struct or panics
func MustParseGUID(sguid string) (guid *GUID) {
	var err error
	if guid, err = ParseGUID(sguid); err != nil {
		panic(err)
	}
	return
}

// ParseGUID parses a hyphenated guid string, with or without curly
// brackets, into a GUID structure
func ParseGUID(guid string) (*GUID, error) {
	s := strings.TrimSpace(guid)
	if strings.HasPrefix(s, "{") != strings.HasSuffix(s, "}") {
		return nil, fmt.Errorf("bad GUID format: %q", guid)
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "{"), "}")
	if len(s) != 36 {
		return nil, fmt.Errorf("bad GUID format: %q", guid)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("bad GUID format: %w", err)
	}
	g := FromUUID(u)
	return &g, nil
}

// MarshalText writes the registry spelling.
func (g GUID) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

func (g *GUID) UnmarshalText(b []byte) error {
	p, err := ParseGUID(string(b))
	if err != nil {
		return err
	}
	*g = *p
	return nil
}
