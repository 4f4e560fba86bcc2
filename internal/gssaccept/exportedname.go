package gssaccept

import (
	"encoding/binary"
	"fmt"
)

// krb5MechOID is the DER encoding (excluding the leading tag and
// length octets) of the Kerberos V5 mechanism OID, 1.2.840.113554.1.2.2.
var krb5MechOID = []byte{0x2a, 0x86, 0x48, 0x86, 0xf7, 0x12, 0x01, 0x02, 0x02}

// ExportedName is the decoded result of validating a GSS exported
// name token (RFC 2743 §3.2): a two-byte TOK_ID (04 01), a DER-wrapped
// mechanism OID, and the mechanism-specific name string.
type ExportedName struct {
	// Name is the embedded principal display string, e.g.
	// "alice/admin@EXAMPLE.COM".
	Name string
}

// ParseExportedName validates the exported-name header produced by a
// successful GSS_Accept_sec_context call and returns the embedded
// principal string. There is no corresponding library call for this
// short, fixed ASN.1-like grammar anywhere in the pack (see
// DESIGN.md), so it is decoded directly over the raw octets:
//
//	TOK_ID(2)=04 01 | OID_LEN(2,BE) | 06 LEN(<128) OID(LEN) | NAME_LEN(4,BE) | NAME
func ParseExportedName(b []byte) (*ExportedName, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("gssaccept: exported name too short")
	}
	if b[0] != 0x04 || b[1] != 0x01 {
		return nil, fmt.Errorf("gssaccept: exported name has wrong TOK_ID %02x%02x", b[0], b[1])
	}

	oidLen := int(binary.BigEndian.Uint16(b[2:4]))
	rest := b[4:]
	if oidLen < 2 || oidLen > len(rest) {
		return nil, fmt.Errorf("gssaccept: exported name OID length out of range")
	}

	oidField := rest[:oidLen]
	if oidField[0] != 0x06 {
		return nil, fmt.Errorf("gssaccept: exported name OID wrapper has wrong tag 0x%02x", oidField[0])
	}
	derLen := int(oidField[1])
	if derLen >= 128 {
		return nil, fmt.Errorf("gssaccept: exported name OID uses unsupported long-form length")
	}
	if len(oidField) != 2+derLen {
		return nil, fmt.Errorf("gssaccept: exported name OID length mismatch")
	}
	oidBytes := oidField[2:]
	if !equalBytes(oidBytes, krb5MechOID) {
		return nil, fmt.Errorf("gssaccept: exported name mechanism is not Kerberos V5")
	}

	rest = rest[oidLen:]
	if len(rest) < 4 {
		return nil, fmt.Errorf("gssaccept: exported name missing NAME_LEN")
	}
	nameLen := int(binary.BigEndian.Uint32(rest[:4]))
	rest = rest[4:]
	if nameLen < 0 || nameLen > len(rest) {
		return nil, fmt.Errorf("gssaccept: exported name NAME_LEN out of range")
	}

	return &ExportedName{Name: string(rest[:nameLen])}, nil
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
