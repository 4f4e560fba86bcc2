package session

import (
	"testing"

	gssapi "github.com/golang-auth/go-gssapi/v2"
	"github.com/stretchr/testify/require"

	"github.com/golang-auth/krb5-rekeyd/internal/gssaccept"
	"github.com/golang-auth/krb5-rekeyd/internal/wire"
)

// fakeMech is a minimal gssapi.Mech double driving the established-
// on-first-token path with a configurable peer name and flags.
type fakeMech struct {
	flags    gssapi.ContextFlag
	peer     string
	continueErr error
	continueTok []byte
	established bool
}

func (f *fakeMech) Accept(string) error             { return nil }
func (f *fakeMech) Continue(tok []byte) ([]byte, error) {
	f.established = true
	return f.continueTok, f.continueErr
}
func (f *fakeMech) IsEstablished() bool              { return f.established }
func (f *fakeMech) ContextFlags() gssapi.ContextFlag { return f.flags }
func (f *fakeMech) PeerName() string                 { return f.peer }
func (f *fakeMech) MakeSignature(p []byte) ([]byte, error) { return p, nil }
func (f *fakeMech) VerifySignature(p, tok []byte) error    { return nil }

func authRequestPayload(more bool, token []byte) []byte {
	b := wire.NewBuffer()
	var flags uint32
	if more {
		flags = FlagMore
	}
	b.AppendUint32(flags)
	b.AppendBytes(token)
	return b.Bytes()
}

func TestHandleAuthSuccessClassifiesPrincipal(t *testing.T) {
	s, pt := newTestSession(t)
	s.acceptor = gssaccept.NewWithMech(&fakeMech{
		flags: gssapi.ContextFlagMutual | gssapi.ContextFlagInteg,
		peer:  "host/db1.example.com@REALM",
	})

	payload := wire.WrapBuffer(authRequestPayload(false, []byte("tok")))
	err := s.HandleAuth(payload)
	require.NoError(t, err)

	require.Equal(t, AuthGSSComplete, s.AuthState)
	require.True(t, s.IsHost)
	require.Equal(t, "db1.example.com", s.Hostname)

	op, _ := readResponse(t, pt)
	require.Equal(t, wire.RespOK, op)
}

func TestHandleAuthRejectsMissingMutualFlag(t *testing.T) {
	s, pt := newTestSession(t)
	s.acceptor = gssaccept.NewWithMech(&fakeMech{
		flags: gssapi.ContextFlagInteg,
		peer:  "alice/admin@REALM",
	})

	payload := wire.WrapBuffer(authRequestPayload(false, []byte("tok")))
	err := s.HandleAuth(payload)
	require.NoError(t, err)
	require.True(t, s.Finalized())

	op, buf := readResponse(t, pt)
	require.Equal(t, wire.RespError, op)
	code, _ := buf.ReadUint32()
	require.Equal(t, uint32(wire.ErrAuthN), code)
}

func TestHandleAuthErrFinalizesSession(t *testing.T) {
	s, pt := newTestSession(t)
	s.acceptor = gssaccept.NewWithMech(&fakeMech{})

	b := wire.NewBuffer()
	b.AppendBytes([]byte("error-token"))
	err := s.HandleAuthErr(wire.WrapBuffer(b.Bytes()))
	require.NoError(t, err)
	require.True(t, s.Finalized())

	op, _ := readResponse(t, pt)
	require.Equal(t, wire.RespOK, op)
}

func TestHandleAuthRejectsAlreadyAuthenticated(t *testing.T) {
	s, pt := newTestSession(t)
	s.AuthState = AuthGSSComplete

	payload := wire.WrapBuffer(authRequestPayload(false, []byte("tok")))
	err := s.HandleAuth(payload)
	require.NoError(t, err)

	op, buf := readResponse(t, pt)
	require.Equal(t, wire.RespError, op)
	code, _ := buf.ReadUint32()
	require.Equal(t, uint32(wire.ErrBadOp), code)
}

func TestHandleAuthChanRejectsUnauthenticated(t *testing.T) {
	s, pt := newTestSession(t)

	b := wire.NewBuffer()
	b.AppendBytes([]byte("mic"))
	err := s.HandleAuthChan(wire.WrapBuffer(b.Bytes()))
	require.NoError(t, err)

	op, buf := readResponse(t, pt)
	require.Equal(t, wire.RespError, op)
	code, _ := buf.ReadUint32()
	require.Equal(t, uint32(wire.ErrAuthZ), code)
}

func TestHandleAuthChanRejectsAlreadyChannelBound(t *testing.T) {
	s, pt := newTestSession(t)
	s.AuthState = AuthChannelBound

	b := wire.NewBuffer()
	b.AppendBytes([]byte("mic"))
	err := s.HandleAuthChan(wire.WrapBuffer(b.Bytes()))
	require.NoError(t, err)

	op, buf := readResponse(t, pt)
	require.Equal(t, wire.RespError, op)
	code, _ := buf.ReadUint32()
	require.Equal(t, uint32(wire.ErrBadOp), code)
}

func TestHandleAuthChanSucceedsAndSignsOutbound(t *testing.T) {
	s, pt := newTestSession(t)
	s.AuthState = AuthGSSComplete
	mech := &recordingAuthMech{fakeMech: fakeMech{}}
	s.acceptor = gssaccept.NewWithMech(mech)
	s.cb = gssaccept.ChannelBindings{
		Outbound: []byte("local-then-peer"),
		Inbound:  []byte("peer-then-local"),
	}
	s.hasCB = true

	b := wire.NewBuffer()
	b.AppendBytes([]byte("client-mic"))
	err := s.HandleAuthChan(wire.WrapBuffer(b.Bytes()))
	require.NoError(t, err)
	require.Equal(t, AuthChannelBound, s.AuthState)
	require.Equal(t, []byte("peer-then-local"), mech.verifiedPayload)
	require.Equal(t, []byte("local-then-peer"), mech.signedPayload)

	op, _ := readResponse(t, pt)
	require.Equal(t, wire.RespAuthChan, op)
}

// recordingAuthMech wraps fakeMech to capture the payloads passed to
// MakeSignature/VerifySignature for channel-binding order assertions.
type recordingAuthMech struct {
	fakeMech
	signedPayload   []byte
	verifiedPayload []byte
}

func (m *recordingAuthMech) MakeSignature(p []byte) ([]byte, error) {
	m.signedPayload = p
	return p, nil
}

func (m *recordingAuthMech) VerifySignature(p, tok []byte) error {
	m.verifiedPayload = p
	return nil
}
