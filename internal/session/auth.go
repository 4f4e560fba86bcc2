package session

import (
	"errors"
	"fmt"

	"github.com/golang-auth/krb5-rekeyd/internal/gssaccept"
	"github.com/golang-auth/krb5-rekeyd/internal/wire"
)

// FlagMore is the client-set bit in the AUTH request flag word
// indicating it expects another token in reply (spec §4.2).
const FlagMore uint32 = 1

// errInconsistentMore is the fatal "server emitted a token the client
// did not ask for" condition spec §4.2's contract describes.
var errInconsistentMore = errors.New("session: acceptor produced a token the client did not request")

// HandleAuth processes the AUTH opcode (spec §4.2, state 0 -> 0 or 1).
func (s *Session) HandleAuth(payload *wire.Buffer) error {
	if s.AuthState != AuthUnauthenticated {
		return wire.WriteError(s.conn, wire.ErrBadOp, "Authentication already complete")
	}

	flags, err := payload.ReadUint32()
	if err != nil {
		return wire.WriteError(s.conn, wire.ErrBadReq, "truncated AUTH request")
	}
	more := flags&FlagMore != 0

	tokenIn, err := payload.ReadBytes()
	if err != nil {
		return wire.WriteError(s.conn, wire.ErrBadReq, "truncated AUTH token")
	}

	if s.acceptor == nil {
		a, err := gssaccept.New()
		if err != nil {
			return wire.WriteError(s.conn, wire.ErrOther, err.Error())
		}
		if err := a.Accept(""); err != nil {
			return wire.WriteError(s.conn, wire.ErrOther, err.Error())
		}
		s.acceptor = a
	}

	tokenOut, acceptErr := s.acceptor.Continue(tokenIn)
	if acceptErr != nil {
		if len(tokenOut) > 0 {
			return s.writeTokenResponse(wire.RespAuthErr, tokenOut)
		}
		return wire.WriteError(s.conn, wire.ErrAuthN, acceptErr.Error())
	}

	if !s.acceptor.IsEstablished() {
		if len(tokenOut) == 0 {
			return wire.WriteError(s.conn, wire.ErrAuthN, "acceptor requires continuation but produced no token")
		}
		if !more {
			s.Finalize()
			return errInconsistentMore
		}
		return s.writeTokenResponse(wire.RespAuth, tokenOut)
	}

	if !s.acceptor.HasRequiredFlags() {
		s.Finalize()
		return wire.WriteError(s.conn, wire.ErrAuthN, "context established without mutual authentication and integrity")
	}

	principal, err := s.acceptor.ExportedPrincipal()
	if err != nil {
		s.Finalize()
		return wire.WriteError(s.conn, wire.ErrAuthN, err.Error())
	}
	s.PrincipalText = principal
	s.AuthState = AuthGSSComplete
	s.Classify()

	if len(tokenOut) > 0 {
		if !more {
			s.Finalize()
			return errInconsistentMore
		}
		return s.writeTokenResponse(wire.RespAuth, tokenOut)
	}
	return wire.WriteOK(s.conn)
}

// HandleAuthErr processes the AUTHERR opcode: the client reports a
// GSS token it could not process itself. Feed it to the acceptor
// purely to surface the mechanism-level error in the logs, then
// finalize the session (spec §4.2).
func (s *Session) HandleAuthErr(payload *wire.Buffer) error {
	tokenIn, err := payload.ReadBytes()
	if err == nil && s.acceptor != nil {
		if _, acceptErr := s.acceptor.Continue(tokenIn); acceptErr != nil {
			s.log.WithError(acceptErr).Warn("client reported AUTHERR")
		}
	}
	s.Finalize()
	return wire.WriteOK(s.conn)
}

// HandleAuthChan processes the AUTHCHAN opcode (spec §4.2, state 1 ->
// 2): verify the client's channel-binding MIC and reply with our own.
func (s *Session) HandleAuthChan(payload *wire.Buffer) error {
	switch s.AuthState {
	case AuthUnauthenticated:
		return wire.WriteError(s.conn, wire.ErrAuthZ, "Operation not allowed on unauthenticated connection")
	case AuthChannelBound:
		return wire.WriteError(s.conn, wire.ErrBadOp, "Authentication already complete")
	}

	mic, err := payload.ReadBytes()
	if err != nil {
		return wire.WriteError(s.conn, wire.ErrBadReq, "truncated AUTHCHAN MIC")
	}

	if !s.hasCB {
		cb, err := gssaccept.FromConnectionState(s.conn.ConnectionState())
		if err != nil {
			s.Finalize()
			return wire.WriteError(s.conn, wire.ErrAuthN, fmt.Sprintf("channel binding unavailable: %v", err))
		}
		s.cb = cb
		s.hasCB = true
	}

	if err := s.acceptor.VerifyInbound(s.cb, mic); err != nil {
		s.Finalize()
		return wire.WriteError(s.conn, wire.ErrAuthN, "channel binding verification failed")
	}

	outMIC, err := s.acceptor.SignOutbound(s.cb)
	if err != nil {
		return wire.WriteError(s.conn, wire.ErrOther, err.Error())
	}

	s.AuthState = AuthChannelBound
	return s.writeTokenResponse(wire.RespAuthChan, outMIC)
}

func (s *Session) writeTokenResponse(op wire.Opcode, token []byte) error {
	b := wire.NewBuffer()
	b.AppendBytes(token)
	return wire.WriteFrame(s.conn, op, b.Bytes())
}
