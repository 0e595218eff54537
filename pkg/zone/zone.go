// Package zone defines the declared DNS state: zones, the records declared
// inside them, and the rules that turn a short record name into the
// fully-qualified name the provider stores.
package zone

import (
	"fmt"
	"strings"
)

// UpdateMode controls how a declared record is kept in sync with the provider.
type UpdateMode int

const (
	// EnsureExists guarantees the record is present with its declared value.
	// Existing records are never removed or corrected under this mode.
	EnsureExists UpdateMode = iota

	// PublicIp keeps the record's value equal to the host's current public
	// address. Any declared value is ignored.
	PublicIp
)

// String returns the configuration token for the mode.
func (m UpdateMode) String() string {
	switch m {
	case EnsureExists:
		return "EnsureExists"
	case PublicIp:
		return "PublicIp"
	default:
		return fmt.Sprintf("UpdateMode(%d)", int(m))
	}
}

// ParseUpdateMode converts a configuration string to an UpdateMode.
// Matching is case-insensitive and accepts snake_case spellings.
func ParseUpdateMode(s string) (UpdateMode, error) {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
	switch normalized {
	case "ensureexists":
		return EnsureExists, nil
	case "publicip":
		return PublicIp, nil
	default:
		return 0, fmt.Errorf("invalid update mode %q (must be EnsureExists or PublicIp)", s)
	}
}

// RecordType is one of the DNS record types the provider accepts.
type RecordType int

const (
	TypeA RecordType = iota
	TypeCNAME
	TypeMX
	TypeTXT
	TypeSRV
)

var recordTypeNames = map[RecordType]string{
	TypeA:     "A",
	TypeCNAME: "CNAME",
	TypeMX:    "MX",
	TypeTXT:   "TXT",
	TypeSRV:   "SRV",
}

// String returns the type token used by the provider API ("A", "TXT", ...).
func (t RecordType) String() string {
	if name, ok := recordTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("RecordType(%d)", int(t))
}

// ParseRecordType converts a configuration string to a RecordType.
func ParseRecordType(s string) (RecordType, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for t, name := range recordTypeNames {
		if name == upper {
			return t, nil
		}
	}
	return 0, fmt.Errorf("invalid record type %q (must be A, CNAME, MX, TXT, or SRV)", s)
}

// Record is a record declared in configuration.
type Record struct {
	UpdateMode UpdateMode
	Type       RecordType
	Name       string
	Value      string
}

// Zone is a DNS zone and the records declared under it, in declaration order.
type Zone struct {
	Name    string
	Records []Record
}

// Qualify returns the fully-qualified name of a record in this zone.
func (z Zone) Qualify(name string) string {
	return Qualify(z.Name, name)
}

// Qualify maps a short record name to its fully-qualified name in zoneName.
// An empty or whitespace-only name, or "@", refers to the zone apex.
//
//	Qualify("example.com", "")    == "example.com"
//	Qualify("example.com", "@")   == "example.com"
//	Qualify("example.com", "www") == "www.example.com"
func Qualify(zoneName, name string) string {
	if strings.TrimSpace(name) == "" || name == "@" {
		return zoneName
	}
	return name + "." + zoneName
}

// NeedsPublicAddress reports whether any record in zones uses PublicIp.
func NeedsPublicAddress(zones []Zone) bool {
	for _, z := range zones {
		for _, r := range z.Records {
			if r.UpdateMode == PublicIp {
				return true
			}
		}
	}
	return false
}

// CountRecords returns the total number of declared records across zones.
func CountRecords(zones []Zone) int {
	n := 0
	for _, z := range zones {
		n += len(z.Records)
	}
	return n
}
