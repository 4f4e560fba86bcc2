// Package kdb defines the boundary with the Kerberos administrative
// database. The KDB admin client itself is out of scope for this
// server (spec.md §1, §6) — Bridge is the narrow interface the core
// depends on, and the production implementation is an external
// collaborator documented, not vendored, here.
package kdb

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/jcmturner/gokrb5/v8/crypto"
)

// ErrPrincipalNotFound is returned by Lookup when the principal does
// not exist in KDB (spec §4.4 step 5 → NOTFOUND).
var ErrPrincipalNotFound = errors.New("kdb: principal not found")

// Bridge is the server's view of the KDB administrative interface:
// look up a principal's current key version, and push a new key set
// atomically at commit time.
type Bridge interface {
	// Lookup returns the current kvno for principal, or
	// ErrPrincipalNotFound if it does not exist.
	Lookup(ctx context.Context, principal string) (kvno int, err error)

	// PushKeys atomically replaces principal's key set in KDB with
	// keys, installed at newKvno. It is the caller's responsibility
	// to have already confirmed principal's current kvno is
	// newKvno-1 (spec §4.7 step 6).
	PushKeys(ctx context.Context, principal string, newKvno int, keys []KeyEntry) error
}

// KeyEntry mirrors store.KeyEntry at the KDB boundary so this package
// does not need to import the store package.
type KeyEntry struct {
	Enctype int
	Key     []byte
}

// Enctype identifiers, using the standard Kerberos encryption type
// numbers (RFC 3961/3962 and the Microsoft RC4-HMAC assignment).
const (
	EnctypeDESCBCCRC        = 1
	EnctypeDES3CBCSHA1      = 16
	EnctypeAES128CTSHMACSHA1 = 17
	EnctypeAES256CTSHMACSHA1 = 18
	EnctypeRC4HMAC           = 23

	// DES key variants that are mechanism-invariant with
	// EnctypeDESCBCCRC (spec §4.7 step 7): the same raw key bytes are
	// valid under all three single-DES checksum flavors.
	EnctypeDESCBCMD4 = 2
	EnctypeDESCBCMD5 = 3
)

// legacyKeyByteSize is the canonical key length for the single-DES
// enctypes, which gokrb5's crypto.GetEtype registry does not carry
// (gokrb5 dropped single-DES support entirely — see DESIGN.md).
// DES-CBC-CRC, DES-CBC-MD4 and DES-CBC-MD5 all use an 8-byte DES key.
var legacyKeyByteSize = map[int]int{
	EnctypeDESCBCCRC: 8,
	EnctypeDESCBCMD4: 8,
	EnctypeDESCBCMD5: 8,
}

// keyByteSize returns the canonical key length for et. The single-DES
// etypes gokrb5 no longer registers are answered from
// legacyKeyByteSize first; every other etype is looked up in gokrb5's
// own crypto.GetEtype registry (the same lookup the teacher's
// v2/krb5/keyinfo.go performs via GetKeyByteSize).
func keyByteSize(et int) (int, bool) {
	if size, ok := legacyKeyByteSize[et]; ok {
		return size, true
	}
	e, err := crypto.GetEtype(int32(et))
	if err != nil {
		return 0, false
	}
	return e.GetKeyByteSize(), true
}

// EnctypePolicy selects the requested enctype set for a NEWREQ (spec
// §4.4, "Enctype sets"). Resolve's desOnly argument forces the
// single-entry DES-CBC-CRC set (NEWREQ's DESONLY flag or the server-wide -c compatibility
// switch); aes and rc4 gate the optional modern enctypes so a
// deployment without them configured in krb5.conf can exclude them.
type EnctypePolicy struct {
	AES bool
	RC4 bool
}

// Resolve returns the deterministic, ordered enctype list for a
// rotation request.
func (p EnctypePolicy) Resolve(desOnly bool) []int {
	if desOnly {
		return []int{EnctypeDESCBCCRC}
	}

	set := []int{EnctypeDESCBCCRC, EnctypeDES3CBCSHA1}
	if p.AES {
		set = append(set, EnctypeAES128CTSHMACSHA1, EnctypeAES256CTSHMACSHA1)
	}
	if p.RC4 {
		set = append(set, EnctypeRC4HMAC)
	}
	return set
}

// GenerateKeys produces one random keyblock per enctype in enctypes.
// The byte length of each keyblock comes from keyByteSize, which
// defers to gokrb5's crypto.GetEtype registry (crypto/rand supplies
// the random bytes directly; gokrb5's own key-derivation helpers are
// password-based string-to-key routines, not a fit for generating a
// fresh random keyblock — see DESIGN.md).
func GenerateKeys(enctypes []int) ([]KeyEntry, error) {
	out := make([]KeyEntry, 0, len(enctypes))
	for _, et := range enctypes {
		size, ok := keyByteSize(et)
		if !ok {
			return nil, fmt.Errorf("kdb: unsupported enctype %d", et)
		}
		key := make([]byte, size)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("kdb: generate key for enctype %d: %w", et, err)
		}
		out = append(out, KeyEntry{Enctype: et, Key: key})
	}
	return out, nil
}

// ReplicateDESVariants returns keys with DES-CBC-MD4 and DES-CBC-MD5
// entries added alongside any DES-CBC-CRC entry, reusing the same raw
// key bytes, per spec §4.7 step 7.
func ReplicateDESVariants(keys []KeyEntry) []KeyEntry {
	out := make([]KeyEntry, 0, len(keys)+2)
	for _, k := range keys {
		out = append(out, k)
		if k.Enctype == EnctypeDESCBCCRC {
			out = append(out, KeyEntry{Enctype: EnctypeDESCBCMD4, Key: k.Key})
			out = append(out, KeyEntry{Enctype: EnctypeDESCBCMD5, Key: k.Key})
		}
	}
	return out
}
