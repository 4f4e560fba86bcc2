package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// KeyEntry is one candidate keyblock, independent of the storage
// model, used at the boundary with the KDB bridge and the handlers.
type KeyEntry struct {
	Enctype int
	Key     []byte
}

// ACLStatus is one host's progress row, as returned to STATUS.
type ACLStatus struct {
	Hostname  string
	Attempted bool
	Complete  bool
}

// RotationKeys is one principal's full candidate key set, as returned
// to GETKEYS.
type RotationKeys struct {
	PrincipalID uint
	Name        string
	Kvno        int
	Keys        []KeyEntry
}

// CreateRotation inserts a new rotation record: the principal row at
// kvno, one ACL row per hostname, and one key row per entry. It fails
// with ErrAlreadyInProgress if a rotation for name already exists;
// the whole insert sequence is one transaction (spec §4.4 steps 6-7).
func (s *Store) CreateRotation(ctx context.Context, name string, kvno int, hostnames []string, keys []KeyEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Principal
		err := tx.Where("name = ?", name).First(&existing).Error
		switch {
		case err == nil:
			return ErrAlreadyInProgress
		case errors.Is(err, gorm.ErrRecordNotFound):
			// expected path: no existing rotation
		default:
			return err
		}

		principal := Principal{Name: name, Kvno: kvno}
		if err := tx.Create(&principal).Error; err != nil {
			return err
		}

		acls := make([]ACL, 0, len(hostnames))
		for _, h := range hostnames {
			acls = append(acls, ACL{PrincipalID: principal.ID, Hostname: h})
		}
		if len(acls) > 0 {
			if err := tx.Create(&acls).Error; err != nil {
				return err
			}
		}

		rows := make([]Key, 0, len(keys))
		for _, k := range keys {
			if k.Enctype == 0 || len(k.Key) == 0 {
				return fmt.Errorf("store: invalid key entry for enctype %d", k.Enctype)
			}
			rows = append(rows, Key{PrincipalID: principal.ID, Enctype: k.Enctype, Key: k.Key})
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

// StatusRows returns the ACL progress rows for name, or
// ErrNoSuchRotation if no rotation for that principal exists.
func (s *Store) StatusRows(ctx context.Context, name string) ([]ACLStatus, error) {
	var principal Principal
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&principal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoSuchRotation
		}
		return nil, err
	}

	var acls []ACL
	if err := s.db.WithContext(ctx).Where("principal_id = ?", principal.ID).Find(&acls).Error; err != nil {
		return nil, err
	}

	out := make([]ACLStatus, 0, len(acls))
	for _, a := range acls {
		out = append(out, ACLStatus{Hostname: a.Hostname, Attempted: a.Attempted, Complete: a.Complete})
	}
	return out, nil
}

// GetKeysForHost reads and marks every rotation whose ACL contains
// hostname: for each, the candidate keys are read, its ACL row is
// marked attempted, and the principal's download count is
// incremented by one, all in a single transaction so two concurrent
// calls from the same host observe a monotonic download count (spec
// §4.6).
func (s *Store) GetKeysForHost(ctx context.Context, hostname string) ([]RotationKeys, error) {
	var out []RotationKeys

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var acls []ACL
		if err := tx.Where("hostname = ?", hostname).Find(&acls).Error; err != nil {
			return err
		}

		for _, acl := range acls {
			var principal Principal
			if err := tx.Where("id = ?", acl.PrincipalID).First(&principal).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					continue
				}
				return err
			}

			var keyRows []Key
			if err := tx.Where("principal_id = ?", principal.ID).Find(&keyRows).Error; err != nil {
				return err
			}

			keys := make([]KeyEntry, 0, len(keyRows))
			for _, k := range keyRows {
				keys = append(keys, KeyEntry{Enctype: k.Enctype, Key: k.Key})
			}

			out = append(out, RotationKeys{
				PrincipalID: principal.ID,
				Name:        principal.Name,
				Kvno:        principal.Kvno,
				Keys:        keys,
			})

			if err := tx.Model(&ACL{}).Where("id = ?", acl.ID).Update("attempted", true).Error; err != nil {
				return err
			}
			if err := tx.Model(&Principal{}).Where("id = ?", principal.ID).
				Update("download_count", gorm.Expr("download_count + 1")).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// CommitForHost marks the (principal, hostname) ACL row complete and
// increments the principal's commit count, in one transaction. It
// returns allComplete = true when every ACL row for the rotation is
// now complete, signalling the caller to run the KDB push / garbage
// collection path (spec §4.7 steps 3-5).
func (s *Store) CommitForHost(ctx context.Context, name string, kvno int, hostname string) (principalID uint, allComplete bool, err error) {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var principal Principal
		if e := tx.Where("name = ? AND kvno = ?", name, kvno).First(&principal).Error; e != nil {
			if errors.Is(e, gorm.ErrRecordNotFound) {
				return ErrNoSuchRotation
			}
			return e
		}
		principalID = principal.ID

		res := tx.Model(&ACL{}).
			Where("principal_id = ? AND hostname = ?", principal.ID, hostname).
			Update("complete", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNoSuchRotation
		}

		if e := tx.Model(&Principal{}).Where("id = ?", principal.ID).
			Update("commit_count", gorm.Expr("commit_count + 1")).Error; e != nil {
			return e
		}

		var incomplete int64
		if e := tx.Model(&ACL{}).Where("principal_id = ? AND complete = ?", principal.ID, false).
			Count(&incomplete).Error; e != nil {
			return e
		}
		allComplete = incomplete == 0
		return nil
	})
	if txErr != nil {
		return 0, false, txErr
	}
	return principalID, allComplete, nil
}

// KeysForPrincipal returns the candidate keys of an in-progress
// rotation, used by the final-acknowledger KDB push path.
func (s *Store) KeysForPrincipal(ctx context.Context, principalID uint) ([]KeyEntry, error) {
	var rows []Key
	if err := s.db.WithContext(ctx).Where("principal_id = ?", principalID).Find(&rows).Error; err != nil {
		return nil, err
	}
	keys := make([]KeyEntry, 0, len(rows))
	for _, k := range rows {
		keys = append(keys, KeyEntry{Enctype: k.Enctype, Key: k.Key})
	}
	return keys, nil
}

// SetTerminalMessage records a terminal (failure) message in a
// rotation's principal row for administrator inspection (spec §4.7
// steps 6/8, §7, §9). The STATUS response does not include it.
func (s *Store) SetTerminalMessage(ctx context.Context, principalID uint, message string) error {
	return s.db.WithContext(ctx).Model(&Principal{}).Where("id = ?", principalID).
		Update("message", message).Error
}

// DeleteRotation removes every key row, ACL row, and the principal
// row for a completed rotation. It is idempotent: if the principal
// row is already gone (a racing caller deleted it first), this is a
// harmless no-op rather than an error (spec §4.7 concurrency note).
func (s *Store) DeleteRotation(ctx context.Context, principalID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("principal_id = ?", principalID).Delete(&Key{}).Error; err != nil {
			return err
		}
		if err := tx.Where("principal_id = ?", principalID).Delete(&ACL{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", principalID).Delete(&Principal{}).Error; err != nil {
			return err
		}
		return nil
	})
}
