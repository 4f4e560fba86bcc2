package handlers

import (
	"context"
	"errors"

	"github.com/golang-auth/krb5-rekeyd/internal/session"
	"github.com/golang-auth/krb5-rekeyd/internal/store"
	"github.com/golang-auth/krb5-rekeyd/internal/wire"
)

// STATUS per-host flag bits (spec §4.5 and §9 DESIGN NOTES: the
// original overwrites attempted with complete; this reimplementation
// ORs them instead so both conditions are observable).
const (
	StatusFlagAttempted uint32 = 1
	StatusFlagComplete  uint32 = 2
)

func init() {
	session.RegisterHandler(wire.OpStatus, handleStatus)
}

func handleStatus(s *session.Session, payload *wire.Buffer) error {
	if !s.IsAdmin {
		return wire.WriteError(s.Writer(), wire.ErrAuthZ, "STATUS requires an administrator principal")
	}

	name, err := payload.ReadBytes()
	if err != nil {
		return wire.WriteError(s.Writer(), wire.ErrBadReq, "truncated STATUS principal")
	}

	rows, err := s.Store().StatusRows(context.Background(), string(name))
	if err != nil {
		if errors.Is(err, store.ErrNoSuchRotation) {
			return wire.WriteError(s.Writer(), wire.ErrNotFound, "no rotation in progress for this principal")
		}
		return wire.WriteError(s.Writer(), wire.ErrOther, err.Error())
	}

	out := wire.NewBuffer()
	out.AppendUint32(0) // status = 0
	out.AppendUint32(uint32(len(rows)))
	for _, row := range rows {
		var flag uint32
		if row.Attempted {
			flag |= StatusFlagAttempted
		}
		if row.Complete {
			flag |= StatusFlagComplete
		}
		out.AppendUint32(flag)
		out.AppendBytes([]byte(row.Hostname))
	}

	return wire.WriteFrame(s.Writer(), wire.RespStatus, out.Bytes())
}
