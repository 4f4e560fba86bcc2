package session

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/golang-auth/krb5-rekeyd/internal/wire"
)

func newTestSession(t *testing.T) (*Session, *pipeTransport) {
	t.Helper()
	pt := newPipeTransport()
	s := New(pt, Config{DefaultRealm: "REALM", Logger: discardLogger()})
	return s, pt
}

func pushFrame(t *testing.T, pt *pipeTransport, op wire.Opcode, payload []byte) {
	t.Helper()
	require.NoError(t, wire.WriteFrame(pt.in, op, payload))
}

func readResponse(t *testing.T, pt *pipeTransport) (wire.Opcode, *wire.Buffer) {
	t.Helper()
	op, buf, err := wire.ReadFrame(bytes.NewReader(pt.out.Bytes()))
	require.NoError(t, err)
	return op, buf
}

func TestDispatchRejectsOpcodeBeforeChannelBound(t *testing.T) {
	s, pt := newTestSession(t)
	RegisterHandler(wire.OpStatus, func(s *Session, b *wire.Buffer) error { return wire.WriteOK(s.Writer()) })

	pushFrame(t, pt, wire.OpStatus, nil)
	s.Run()

	op, buf := readResponse(t, pt)
	require.Equal(t, wire.RespError, op)
	code, err := buf.ReadUint32()
	require.NoError(t, err)
	require.Equal(t, uint32(wire.ErrAuthZ), code)
}

func TestDispatchRejectsOutOfRangeOpcode(t *testing.T) {
	s, pt := newTestSession(t)
	s.AuthState = AuthChannelBound

	pushFrame(t, pt, wire.Opcode(999), nil)
	s.Run()

	op, buf := readResponse(t, pt)
	require.Equal(t, wire.RespError, op)
	code, err := buf.ReadUint32()
	require.NoError(t, err)
	require.Equal(t, uint32(wire.ErrBadOp), code)
}

func TestDispatchInvokesRegisteredHandlerOnceChannelBound(t *testing.T) {
	s, pt := newTestSession(t)
	s.AuthState = AuthChannelBound
	called := false
	RegisterHandler(wire.OpGetKeys, func(s *Session, b *wire.Buffer) error {
		called = true
		s.Finalize()
		return wire.WriteOK(s.Writer())
	})

	pushFrame(t, pt, wire.OpGetKeys, nil)
	s.Run()

	require.True(t, called)
	op, _ := readResponse(t, pt)
	require.Equal(t, wire.RespOK, op)
}
