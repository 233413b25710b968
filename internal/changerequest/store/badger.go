package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"crboard/pkg/platform/sentinel"
)

// DefaultBadgerKey is the key that holds the document.
var DefaultBadgerKey = []byte("crboard/registry")

// BadgerBackend stores the document under one key of an embedded Badger
// database. Values are an 8-byte big-endian version followed by the JSON
// document. Badger's optimistic transactions reject a Put that raced
// another writer with badger.ErrConflict.
type BadgerBackend struct {
	db  *badger.DB
	key []byte
}

// NewBadger constructs a Badger-backed document backend.
func NewBadger(db *badger.DB) *BadgerBackend {
	return &BadgerBackend{db: db, key: DefaultBadgerKey}
}

func (b *BadgerBackend) Get(ctx context.Context) ([]byte, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	var (
		doc     []byte
		version int64
	)
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.key)
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		version, doc, err = decodeBadgerValue(raw)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, 0, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("badger get document: %w", err)
	}
	return doc, version, nil
}

func (b *BadgerBackend) Put(ctx context.Context, doc []byte, expected int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var next int64
	err := b.db.Update(func(txn *badger.Txn) error {
		var current int64
		item, err := txn.Get(b.key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if current, _, err = decodeBadgerValue(raw); err != nil {
				return err
			}
		}
		if current != expected {
			return sentinel.ErrConflict
		}
		next = current + 1
		return txn.Set(b.key, encodeBadgerValue(next, doc))
	})
	switch {
	case err == nil:
		return next, nil
	case errors.Is(err, sentinel.ErrConflict), errors.Is(err, badger.ErrConflict):
		return 0, sentinel.ErrConflict
	default:
		return 0, fmt.Errorf("badger put document: %w", err)
	}
}

func encodeBadgerValue(version int64, doc []byte) []byte {
	out := make([]byte, 8+len(doc))
	binary.BigEndian.PutUint64(out, uint64(version))
	copy(out[8:], doc)
	return out
}

func decodeBadgerValue(raw []byte) (int64, []byte, error) {
	if len(raw) < 8 {
		return 0, nil, fmt.Errorf("badger value too short: %d bytes", len(raw))
	}
	return int64(binary.BigEndian.Uint64(raw[:8])), raw[8:], nil
}
