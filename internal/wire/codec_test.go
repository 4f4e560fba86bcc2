package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, OpNewReq, []byte("payload")))

	op, b, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, OpNewReq, op)
	require.Equal(t, []byte("payload"), b.Bytes())
}

func TestWriteErrorFrameContainsCodeAndMessage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteError(&buf, ErrAuthZ, "not authorized"))

	op, b, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, RespError, op)

	code, err := b.ReadUint32()
	require.NoError(t, err)
	require.Equal(t, uint32(ErrAuthZ), code)

	msg, err := b.ReadBytes()
	require.NoError(t, err)
	require.Equal(t, "not authorized", string(msg))
}

func TestWriteOKFrameIsBareOpcode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOK(&buf))

	op, b, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, RespOK, op)
	require.Equal(t, 0, b.Len())
}
