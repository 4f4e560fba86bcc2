package handlers

import (
	"github.com/golang-auth/krb5-rekeyd/internal/session"
	"github.com/golang-auth/krb5-rekeyd/internal/wire"
)

func init() {
	session.RegisterHandler(wire.OpSimpleKey, handleReserved)
	session.RegisterHandler(wire.OpAbortReq, handleReserved)
}

// handleReserved implements the SIMPLEKEY and ABORTREQ opcodes (spec
// §4.8): accept the request, require is_admin, then reply with
// BADOP — reserved for a future protocol revision, never implemented
// by this server.
func handleReserved(s *session.Session, payload *wire.Buffer) error {
	if !s.IsAdmin {
		return wire.WriteError(s.Writer(), wire.ErrAuthZ, "reserved opcode requires an administrator principal")
	}
	return wire.WriteError(s.Writer(), wire.ErrBadOp, "Not implemented yet")
}
