package session

import (
	"errors"
	"io"

	"github.com/golang-auth/krb5-rekeyd/internal/wire"
)

// Handler processes one opcode's payload against the session,
// writing its response(s) directly to the transport. A non-nil
// return is always fatal: the caller logs it and ends the session
// without attempting another reply (matching the network-failure and
// "inconsistent MORE" cases of spec §4.2/§4.9, which share the same
// "stop, don't reply again" contract).
type Handler func(s *Session, payload *wire.Buffer) error

// Handlers is the opcode -> handler table (spec §9 DESIGN NOTES:
// "best expressed as ... exhaustive matching, avoiding the off-by-one
// risks of a bare index table" — built once, keyed by the Opcode
// constants rather than a raw slice index).
var Handlers = map[wire.Opcode]Handler{
	wire.OpAuth:     func(s *Session, b *wire.Buffer) error { return s.HandleAuth(b) },
	wire.OpAuthErr:  func(s *Session, b *wire.Buffer) error { return s.HandleAuthErr(b) },
	wire.OpAuthChan: func(s *Session, b *wire.Buffer) error { return s.HandleAuthChan(b) },
}

// RegisterHandler installs (or overrides) the handler for op. The
// handlers package calls this at package-init time for NEWREQ,
// STATUS, GETKEYS, COMMITKEY, SIMPLEKEY and ABORTREQ, so this package
// never imports internal/handlers (which itself imports session).
func RegisterHandler(op wire.Opcode, h Handler) {
	Handlers[op] = h
}

// isAuthOpcode reports whether op is one of the three opcodes valid
// before authstate reaches AuthChannelBound (spec §4.2).
func isAuthOpcode(op wire.Opcode) bool {
	return op == wire.OpAuth || op == wire.OpAuthErr || op == wire.OpAuthChan
}

// Run executes the session loop of spec §4.9: read a frame, reject
// premature or out-of-range opcodes, dispatch, repeat until a handler
// finalizes the session or a frame read fails.
func (s *Session) Run() {
	defer func() {
		if s.acceptor != nil {
			s.acceptor = nil
		}
	}()

	for !s.Finalized() {
		op, payload, err := wire.ReadFrame(s.conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.WithError(err).Debug("session: frame read failed, terminating")
			}
			return
		}

		if s.AuthState != AuthChannelBound && !isAuthOpcode(op) {
			if err := wire.WriteError(s.conn, wire.ErrAuthZ, "authentication required"); err != nil {
				return
			}
			continue
		}

		if op < 1 || op > wire.MaxOpcode {
			if err := wire.WriteError(s.conn, wire.ErrBadOp, "opcode out of range"); err != nil {
				return
			}
			continue
		}

		h, ok := Handlers[op]
		if !ok {
			if err := wire.WriteError(s.conn, wire.ErrBadOp, "opcode not implemented"); err != nil {
				return
			}
			continue
		}

		s.log.WithField("opcode", op).Debug("session: dispatching opcode")
		if err := h(s, payload); err != nil {
			s.log.WithError(err).Debug("session: handler terminated the session")
			return
		}
	}
}
