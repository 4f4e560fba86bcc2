package gssaccept

import (
	"crypto/tls"
	"fmt"

	channelbinding "github.com/golang-auth/go-channelbinding"
)

// ChannelBindings carries the two MIC payloads AUTHCHAN (spec §4.2)
// exchanges: the string the acceptor must sign and send, and the
// string it expects the peer's MIC to cover.
type ChannelBindings struct {
	// Outbound is local_finished||peer_finished, what this acceptor
	// signs and sends to the client.
	Outbound []byte

	// Inbound is peer_finished||local_finished, what the client is
	// expected to have signed; the acceptor verifies the client's MIC
	// against this payload.
	Inbound []byte
}

// FromConnectionState derives the channel-binding payloads from the
// underlying TLS connection's Finished messages, per RFC 5929's
// tls-unique binding and spec §4.2's AUTHCHAN description.
func FromConnectionState(state tls.ConnectionState) (ChannelBindings, error) {
	local, peer, err := channelbinding.FinishedMessages(state)
	if err != nil {
		return ChannelBindings{}, fmt.Errorf("gssaccept: deriving channel bindings: %w", err)
	}
	if len(local) == 0 || len(peer) == 0 {
		return ChannelBindings{}, fmt.Errorf("gssaccept: empty TLS Finished message")
	}

	return combineChannelBindings(local, peer), nil
}

// combineChannelBindings builds the outbound (local||peer, signed by
// this acceptor) and inbound (peer||local, expected from the client)
// payloads from the two TLS Finished messages. Split out from
// FromConnectionState so the concatenation order can be unit tested
// without a live TLS handshake.
func combineChannelBindings(local, peer []byte) ChannelBindings {
	outbound := make([]byte, 0, len(local)+len(peer))
	outbound = append(outbound, local...)
	outbound = append(outbound, peer...)

	inbound := make([]byte, 0, len(peer)+len(local))
	inbound = append(inbound, peer...)
	inbound = append(inbound, local...)

	return ChannelBindings{Outbound: outbound, Inbound: inbound}
}

// SignOutbound produces the MIC this acceptor sends back on AUTHCHAN.
func (a *Acceptor) SignOutbound(cb ChannelBindings) ([]byte, error) {
	return a.MakeSignature(cb.Outbound)
}

// VerifyInbound checks the client's AUTHCHAN MIC against the expected
// inbound channel-binding payload.
func (a *Acceptor) VerifyInbound(cb ChannelBindings, mic []byte) error {
	return a.VerifySignature(cb.Inbound, mic)
}
