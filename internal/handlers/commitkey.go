package handlers

import (
	"context"
	"errors"

	"github.com/golang-auth/krb5-rekeyd/internal/kdb"
	"github.com/golang-auth/krb5-rekeyd/internal/session"
	"github.com/golang-auth/krb5-rekeyd/internal/store"
	"github.com/golang-auth/krb5-rekeyd/internal/wire"
)

func init() {
	session.RegisterHandler(wire.OpCommitKey, handleCommitKey)
}

func handleCommitKey(s *session.Session, payload *wire.Buffer) error {
	if !s.IsHost {
		return wire.WriteError(s.Writer(), wire.ErrAuthZ, "COMMITKEY requires a host principal")
	}

	name, err := payload.ReadBytes()
	if err != nil {
		return wire.WriteError(s.Writer(), wire.ErrBadReq, "truncated COMMITKEY principal")
	}
	kvno, err := payload.ReadUint32()
	if err != nil {
		return wire.WriteError(s.Writer(), wire.ErrBadReq, "truncated COMMITKEY kvno")
	}

	ctx := context.Background()
	principal := string(name)

	principalID, allComplete, err := s.Store().CommitForHost(ctx, principal, int(kvno), s.Hostname)
	if err != nil {
		if errors.Is(err, store.ErrNoSuchRotation) {
			return wire.WriteError(s.Writer(), wire.ErrAuthZ, "no rekey in progress")
		}
		return wire.WriteError(s.Writer(), wire.ErrOther, err.Error())
	}

	// Respond OK now; per spec §4.7 step 4 and §7's no_send guard, no
	// further wire response is sent regardless of what happens below.
	if err := wire.WriteOK(s.Writer()); err != nil {
		return err
	}

	if !allComplete {
		return nil
	}

	finishRotation(ctx, s, principal, int(kvno), principalID)
	return nil
}

// finishRotation is the last-acknowledger garbage-collection path of
// spec §4.7 steps 6-9: push the committed key set to KDB and delete
// the rotation record. It never sends a wire response — the host
// already received its OK.
func finishRotation(ctx context.Context, s *session.Session, principal string, kvno, principalID int) {
	log := s.Log()

	currentKvno, err := s.KDB().Lookup(ctx, principal)
	if err != nil {
		if errors.Is(err, kdb.ErrPrincipalNotFound) {
			_ = s.Store().SetTerminalMessage(ctx, uint(principalID), "Principal disappeared from kdc")
			log.Warn("commitkey: principal disappeared from kdc during final push")
			return
		}
		log.WithError(err).Warn("commitkey: kdb lookup failed during final push")
		return
	}
	if currentKvno != kvno-1 {
		_ = s.Store().SetTerminalMessage(ctx, uint(principalID), "kvno changed on kdc")
		log.Warn("commitkey: kvno changed on kdc during final push")
		return
	}

	keys, err := s.Store().KeysForPrincipal(ctx, uint(principalID))
	if err != nil {
		log.WithError(err).Warn("commitkey: failed to load candidate keys")
		return
	}

	kdbKeys := make([]kdb.KeyEntry, 0, len(keys))
	for _, k := range keys {
		kdbKeys = append(kdbKeys, kdb.KeyEntry{Enctype: k.Enctype, Key: k.Key})
	}
	kdbKeys = kdb.ReplicateDESVariants(kdbKeys)

	if err := s.KDB().PushKeys(ctx, principal, kvno, kdbKeys); err != nil {
		_ = s.Store().SetTerminalMessage(ctx, uint(principalID), "updating kdc failed")
		log.WithError(err).Warn("commitkey: kdb push failed")
		return
	}

	// Idempotent under a racing deletion: a concurrent last
	// acknowledger may already have removed this rotation (spec §4.7
	// concurrency note).
	if err := s.Store().DeleteRotation(ctx, uint(principalID)); err != nil {
		log.WithError(err).Warn("commitkey: failed to delete completed rotation")
	}
}
