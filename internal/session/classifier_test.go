package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyHostPrincipal(t *testing.T) {
	isHost, isAdmin, hostname, realm, _ := classify("host/db1.example.com@REALM", "REALM")
	require.True(t, isHost)
	require.False(t, isAdmin)
	require.Equal(t, "db1.example.com", hostname)
	require.Equal(t, "REALM", realm)
}

func TestClassifyAdminPrincipal(t *testing.T) {
	isHost, isAdmin, hostname, _, _ := classify("alice/admin@REALM", "REALM")
	require.False(t, isHost)
	require.True(t, isAdmin)
	require.Equal(t, "", hostname)
}

func TestClassifyRealmMismatchClearsBothFlags(t *testing.T) {
	isHost, isAdmin, _, _, _ := classify("bob/admin@OTHER", "REALM")
	require.False(t, isHost)
	require.False(t, isAdmin)
}

func TestClassifyRealmComparisonIsLengthSensitive(t *testing.T) {
	// "REALM" vs "REALM2" must not match as a prefix.
	isHost, isAdmin, _, _, _ := classify("alice/admin@REALM2", "REALM")
	require.False(t, isHost)
	require.False(t, isAdmin)
}

func TestClassifyUnrecognizedShapeClearsBothFlags(t *testing.T) {
	isHost, isAdmin, _, _, _ := classify("alice@REALM", "REALM")
	require.False(t, isHost)
	require.False(t, isAdmin)
}

func TestClassifyThreeComponentPrincipalClearsBothFlags(t *testing.T) {
	isHost, isAdmin, _, _, _ := classify("a/b/c@REALM", "REALM")
	require.False(t, isHost)
	require.False(t, isAdmin)
}

func TestSessionClassifySetsFields(t *testing.T) {
	s := &Session{cfg: Config{DefaultRealm: "REALM"}, log: discardLogger()}
	s.PrincipalText = "host/db1.example.com@REALM"
	s.Classify()
	require.True(t, s.IsHost)
	require.Equal(t, "db1.example.com", s.Hostname)
}
