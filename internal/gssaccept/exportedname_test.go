package gssaccept

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseExportedNameRoundTrip(t *testing.T) {
	token := encodeExportedName("alice/admin@EXAMPLE.COM")
	name, err := ParseExportedName(token)
	require.NoError(t, err)
	require.Equal(t, "alice/admin@EXAMPLE.COM", name.Name)
}

func TestParseExportedNameEmptyPrincipal(t *testing.T) {
	token := encodeExportedName("")
	name, err := ParseExportedName(token)
	require.NoError(t, err)
	require.Equal(t, "", name.Name)
}

func TestParseExportedNameRejectsShortInput(t *testing.T) {
	_, err := ParseExportedName([]byte{0x04})
	require.Error(t, err)
}

func TestParseExportedNameRejectsWrongTokID(t *testing.T) {
	token := encodeExportedName("host/db@EXAMPLE.COM")
	token[0] = 0x05
	_, err := ParseExportedName(token)
	require.ErrorContains(t, err, "TOK_ID")
}

func TestParseExportedNameRejectsWrongOIDWrapperTag(t *testing.T) {
	token := encodeExportedName("host/db@EXAMPLE.COM")
	token[4] = 0x07
	_, err := ParseExportedName(token)
	require.ErrorContains(t, err, "wrong tag")
}

func TestParseExportedNameRejectsForeignMechanism(t *testing.T) {
	token := encodeExportedName("host/db@EXAMPLE.COM")
	token[6] ^= 0xff
	_, err := ParseExportedName(token)
	require.ErrorContains(t, err, "not Kerberos V5")
}

func TestParseExportedNameRejectsTruncatedName(t *testing.T) {
	token := encodeExportedName("host/db@EXAMPLE.COM")
	_, err := ParseExportedName(token[:len(token)-3])
	require.ErrorContains(t, err, "NAME_LEN")
}

func TestParseExportedNameRejectsLongFormOIDLength(t *testing.T) {
	token := encodeExportedName("host/db@EXAMPLE.COM")
	token[5] = 0x81
	_, err := ParseExportedName(token)
	require.Error(t, err)
}
