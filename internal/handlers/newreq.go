// Package handlers implements the five request handlers of spec
// §4.4-§4.8: NEWREQ, STATUS, GETKEYS, COMMITKEY, and the reserved
// SIMPLEKEY/ABORTREQ pair. Each registers itself with the session
// dispatch table at package-init time.
package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/golang-auth/krb5-rekeyd/internal/kdb"
	"github.com/golang-auth/krb5-rekeyd/internal/session"
	"github.com/golang-auth/krb5-rekeyd/internal/store"
	"github.com/golang-auth/krb5-rekeyd/internal/wire"
)

// realmOf returns the realm component of a "name@REALM" principal
// string, or "" if there is no "@".
func realmOf(principal string) string {
	at := strings.LastIndex(principal, "@")
	if at < 0 {
		return ""
	}
	return principal[at+1:]
}

// FlagDESOnly is the NEWREQ request flag word bit selecting the
// legacy single-entry DES-CBC-CRC enctype set (spec §4.4).
const FlagDESOnly uint32 = 1

func init() {
	session.RegisterHandler(wire.OpNewReq, handleNewReq)
}

func handleNewReq(s *session.Session, payload *wire.Buffer) error {
	if !s.IsAdmin {
		return wire.WriteError(s.Writer(), wire.ErrAuthZ, "NEWREQ requires an administrator principal")
	}

	name, err := payload.ReadBytes()
	if err != nil {
		return wire.WriteError(s.Writer(), wire.ErrBadReq, "truncated NEWREQ principal")
	}
	flags, err := payload.ReadUint32()
	if err != nil {
		return wire.WriteError(s.Writer(), wire.ErrBadReq, "truncated NEWREQ flags")
	}
	if flags != 0 && flags != FlagDESOnly {
		return wire.WriteError(s.Writer(), wire.ErrBadReq, "unrecognized NEWREQ flag word")
	}
	hostCount, err := payload.ReadUint32()
	if err != nil {
		return wire.WriteError(s.Writer(), wire.ErrBadReq, "truncated NEWREQ host count")
	}

	hostnames := make([]string, 0, hostCount)
	for i := uint32(0); i < hostCount; i++ {
		h, err := payload.ReadBytes()
		if err != nil {
			return wire.WriteError(s.Writer(), wire.ErrBadReq, "truncated NEWREQ hostname")
		}
		hostnames = append(hostnames, string(h))
	}

	principal := string(name)
	if principal == "" || !strings.Contains(principal, "@") {
		return wire.WriteError(s.Writer(), wire.ErrBadReq, "malformed principal name")
	}
	if realmOf(principal) != s.DefaultRealm() {
		return wire.WriteError(s.Writer(), wire.ErrAuthZ, "target principal is not in the server's default realm")
	}

	if s.ACLSet() != nil && !s.ACLSet().Permits(principal) {
		return wire.WriteError(s.Writer(), wire.ErrAuthZ, "principal is not an authorized rekey target")
	}

	ctx := context.Background()

	kvno, err := s.KDB().Lookup(ctx, principal)
	if err != nil {
		if errors.Is(err, kdb.ErrPrincipalNotFound) {
			return wire.WriteError(s.Writer(), wire.ErrNotFound, "principal not found in KDB")
		}
		return wire.WriteError(s.Writer(), wire.ErrOther, err.Error())
	}
	newKvno := kvno + 1

	desOnly := s.ForceDESOnly() || flags&FlagDESOnly != 0
	enctypes := s.EnctypePolicy().Resolve(desOnly)
	generated, err := kdb.GenerateKeys(enctypes)
	if err != nil {
		return wire.WriteError(s.Writer(), wire.ErrOther, err.Error())
	}

	storeKeys := make([]store.KeyEntry, 0, len(generated))
	for _, k := range generated {
		storeKeys = append(storeKeys, store.KeyEntry{Enctype: k.Enctype, Key: k.Key})
	}

	err = s.Store().CreateRotation(ctx, principal, newKvno, hostnames, storeKeys)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyInProgress) {
			return wire.WriteError(s.Writer(), wire.ErrOther, "rekey for this principal already in progress")
		}
		return wire.WriteError(s.Writer(), wire.ErrOther, err.Error())
	}

	return wire.WriteOK(s.Writer())
}
