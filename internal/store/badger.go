package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/abhisek/querywise/internal/profile"
)

const badgerProfilePrefix = "profile:"

// BadgerProfiles stores profiles in an embedded Badger key-value store.
type BadgerProfiles struct {
	db *badger.DB
}

var (
	_ profile.Backend = (*BadgerProfiles)(nil)
	_ profile.Lister  = (*BadgerProfiles)(nil)
)

// OpenBadgerProfiles opens a Badger database at dir. An empty dir keeps
// everything in memory.
func OpenBadgerProfiles(dir string) (*BadgerProfiles, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.WARNING)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerProfiles{db: db}, nil
}

// Close closes the underlying database.
func (b *BadgerProfiles) Close() error {
	return b.db.Close()
}

func (b *BadgerProfiles) Get(_ context.Context, userID string) (*profile.Profile, error) {
	var p *profile.Profile
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerProfilePrefix + userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, err := decodeProfile(val)
			if err != nil {
				return err
			}
			p = decoded
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, profile.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (b *BadgerProfiles) Put(_ context.Context, p *profile.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerProfilePrefix+p.UserID), data)
	})
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// List returns every stored profile in key order.
func (b *BadgerProfiles) List(_ context.Context) ([]*profile.Profile, error) {
	var out []*profile.Profile
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerProfilePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				p, err := decodeProfile(val)
				if err != nil {
					return err
				}
				out = append(out, p)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return out, nil
}
