package gssaccept

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCombineChannelBindingsOrder(t *testing.T) {
	local := []byte("local-finished")
	peer := []byte("peer-finished")

	cb := combineChannelBindings(local, peer)

	require.Equal(t, append(append([]byte{}, local...), peer...), cb.Outbound)
	require.Equal(t, append(append([]byte{}, peer...), local...), cb.Inbound)
}

// recordingMech records the payload passed to MakeSignature and
// VerifySignature so tests can assert on argument order rather than
// just return values.
type recordingMech struct {
	fakeMech
	signedPayload   []byte
	verifiedPayload []byte
}

func (m *recordingMech) MakeSignature(p []byte) ([]byte, error) {
	m.signedPayload = p
	return m.fakeMech.MakeSignature(p)
}

func (m *recordingMech) VerifySignature(p, tok []byte) error {
	m.verifiedPayload = p
	return m.fakeMech.VerifySignature(p, tok)
}

func TestSignOutboundSignsLocalThenPeer(t *testing.T) {
	mech := &recordingMech{}
	a := &Acceptor{mech: mech}
	cb := combineChannelBindings([]byte("local"), []byte("peer"))

	_, err := a.SignOutbound(cb)
	require.NoError(t, err)
	require.Equal(t, []byte("localpeer"), mech.signedPayload)
}

func TestVerifyInboundVerifiesPeerThenLocal(t *testing.T) {
	mech := &recordingMech{}
	a := &Acceptor{mech: mech}
	cb := combineChannelBindings([]byte("local"), []byte("peer"))

	err := a.VerifyInbound(cb, []byte("mic"))
	require.NoError(t, err)
	require.Equal(t, []byte("peerlocal"), mech.verifiedPayload)
}
