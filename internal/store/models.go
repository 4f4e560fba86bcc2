// Package store implements the relational persistence of §3/§4.12:
// principals under rotation, their per-host ACL rows, and their
// per-enctype candidate keys.
package store

import "errors"

// Principal is a rotation record: a principal currently being
// re-keyed, the new key-version being installed, and rollup counters
// incremented by GETKEYS (DownloadCount) and COMMITKEY (CommitCount).
type Principal struct {
	ID             uint   `gorm:"primaryKey"`
	Name           string `gorm:"uniqueIndex;not null"`
	Kvno           int    `gorm:"not null"`
	DownloadCount  int    `gorm:"not null;default:0"`
	CommitCount    int    `gorm:"not null;default:0"`
	Message        string

	ACLs []ACL `gorm:"foreignKey:PrincipalID;constraint:OnDelete:CASCADE"`
	Keys []Key `gorm:"foreignKey:PrincipalID;constraint:OnDelete:CASCADE"`
}

// ACL is a per-host row recording whether a target host has
// downloaded (Attempted) and installed (Complete) the new keys for a
// rotation.
type ACL struct {
	ID          uint   `gorm:"primaryKey"`
	PrincipalID uint   `gorm:"uniqueIndex:idx_acl_principal_host;not null"`
	Hostname    string `gorm:"uniqueIndex:idx_acl_principal_host;not null"`
	Attempted   bool   `gorm:"not null;default:false"`
	Complete    bool   `gorm:"not null;default:false"`
}

// Key is one candidate keyblock for a rotation, under one enctype.
type Key struct {
	ID          uint   `gorm:"primaryKey"`
	PrincipalID uint   `gorm:"uniqueIndex:idx_key_principal_enctype;not null"`
	Enctype     int    `gorm:"uniqueIndex:idx_key_principal_enctype;not null"`
	Key         []byte `gorm:"not null"`
}

// AllModels lists every model migrated by Open, following the
// AllModels() convention used for GORM AutoMigrate call sites
// elsewhere in the pack.
func AllModels() []any {
	return []any{&Principal{}, &ACL{}, &Key{}}
}

// Sentinel domain errors, mapped from gorm.ErrRecordNotFound and from
// application-level invariant checks at the call sites that need a
// specific wire taxonomy code.
var (
	ErrAlreadyInProgress = errors.New("store: rekey for this principal already in progress")
	ErrNoSuchRotation    = errors.New("store: no rotation in progress for this principal")
)
