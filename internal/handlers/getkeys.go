package handlers

import (
	"context"

	"github.com/golang-auth/krb5-rekeyd/internal/session"
	"github.com/golang-auth/krb5-rekeyd/internal/wire"
)

func init() {
	session.RegisterHandler(wire.OpGetKeys, handleGetKeys)
}

func handleGetKeys(s *session.Session, payload *wire.Buffer) error {
	if !s.IsHost {
		return wire.WriteError(s.Writer(), wire.ErrNoKeys, "GETKEYS requires a host principal")
	}

	rotations, err := s.Store().GetKeysForHost(context.Background(), s.Hostname)
	if err != nil {
		return wire.WriteError(s.Writer(), wire.ErrOther, err.Error())
	}
	if len(rotations) == 0 {
		return wire.WriteError(s.Writer(), wire.ErrNoKeys, "no keys available for this host")
	}

	out := wire.NewBuffer()
	out.AppendUint32(uint32(len(rotations)))
	for _, r := range rotations {
		out.AppendBytes([]byte(r.Name))
		out.AppendUint32(uint32(r.Kvno))
		out.AppendUint32(uint32(len(r.Keys)))
		for _, k := range r.Keys {
			out.AppendUint32(uint32(k.Enctype))
			out.AppendBytes(k.Key)
		}
	}

	return wire.WriteFrame(s.Writer(), wire.RespKeys, out.Bytes())
}
