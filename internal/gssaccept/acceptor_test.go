package gssaccept

import (
	"testing"

	gssapi "github.com/golang-auth/go-gssapi/v2"
	"github.com/stretchr/testify/require"
)

// fakeMech is a minimal gssapi.Mech double for exercising Acceptor's
// own logic (flag checks, exported-name derivation) without a live
// Kerberos KDC.
type fakeMech struct {
	flags    gssapi.ContextFlag
	peer     string
	sigErr   error
	verifErr error
}

func (f *fakeMech) Accept(string) error                         { return nil }
func (f *fakeMech) Continue([]byte) ([]byte, error)              { return nil, nil }
func (f *fakeMech) IsEstablished() bool                          { return true }
func (f *fakeMech) ContextFlags() gssapi.ContextFlag             { return f.flags }
func (f *fakeMech) PeerName() string                             { return f.peer }
func (f *fakeMech) MakeSignature(p []byte) ([]byte, error)       { return p, f.sigErr }
func (f *fakeMech) VerifySignature(p, tok []byte) error          { return f.verifErr }

func TestHasRequiredFlagsBothSet(t *testing.T) {
	a := &Acceptor{mech: &fakeMech{flags: gssapi.ContextFlagMutual | gssapi.ContextFlagInteg}}
	require.True(t, a.HasRequiredFlags())
}

func TestHasRequiredFlagsMissingIntegrity(t *testing.T) {
	a := &Acceptor{mech: &fakeMech{flags: gssapi.ContextFlagMutual}}
	require.False(t, a.HasRequiredFlags())
}

func TestHasRequiredFlagsMissingMutual(t *testing.T) {
	a := &Acceptor{mech: &fakeMech{flags: gssapi.ContextFlagInteg}}
	require.False(t, a.HasRequiredFlags())
}

func TestExportedPrincipalDerivesFromPeerName(t *testing.T) {
	a := &Acceptor{mech: &fakeMech{peer: "alice/admin@EXAMPLE.COM"}}
	name, err := a.ExportedPrincipal()
	require.NoError(t, err)
	require.Equal(t, "alice/admin@EXAMPLE.COM", name)
}

func TestExportedPrincipalRejectsEmptyPeerName(t *testing.T) {
	a := &Acceptor{mech: &fakeMech{}}
	_, err := a.ExportedPrincipal()
	require.Error(t, err)
}
