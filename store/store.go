// Package store persists clipboard history in a bbolt file.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	bolt "go.etcd.io/bbolt"

	"github.com/moyoez/syncclipboard-go/tool"
	"github.com/moyoez/syncclipboard-go/types"
)

var historyBucket = []byte("history")

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("record not found")

const DefaultMaxCount = 100

// Store is the clipboard history. Record ids come from the bucket
// sequence so they survive restarts and are never reused.
type Store struct {
	db       *bolt.DB
	maxCount int
	now      func() time.Time
}

// Open opens or creates the database at path. maxCount <= 0 disables retention.
func Open(path string, maxCount int) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(historyBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history bucket: %w", err)
	}
	tool.DefaultLogger.Infof("[Store] opened %s (max_count=%d)", path, maxCount)
	return &Store{db: db, maxCount: maxCount, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func itob(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func btoi(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}

func decodeRecord(v []byte) (types.HistoryRecord, error) {
	var rec types.HistoryRecord
	if err := sonic.Unmarshal(v, &rec); err != nil {
		return rec, fmt.Errorf("failed to decode history record: %w", err)
	}
	return rec, nil
}

func putRecord(b *bolt.Bucket, rec types.HistoryRecord) error {
	data, err := sonic.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode history record: %w", err)
	}
	return b.Put(itob(rec.ID), data)
}

// Save appends entry and applies retention in the same transaction.
func (s *Store) Save(entry types.ClipboardEntry) (int64, error) {
	if err := types.ValidateEntry(entry); err != nil {
		return 0, err
	}
	rec := types.RecordFromEntry(entry)
	rec.Timestamp = s.now().UTC()

	var removed int
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(historyBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		rec.ID = int64(seq)
		if err := putRecord(b, rec); err != nil {
			return err
		}
		removed, err = s.applyRetention(b)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to save clipboard entry: %w", err)
	}
	if removed > 0 {
		tool.DefaultLogger.Debugf("[Store] retention removed %d records", removed)
	}
	return rec.ID, nil
}

// applyRetention keeps the newest maxCount unpinned rows. Pinned rows are
// neither counted nor deleted.
func (s *Store) applyRetention(b *bolt.Bucket) (int, error) {
	if s.maxCount <= 0 {
		return 0, nil
	}
	var stale [][]byte
	unpinned := 0
	c := b.Cursor()
	for k, v := c.Last(); k != nil; k, v = c.Prev() {
		rec, err := decodeRecord(v)
		if err != nil {
			return 0, err
		}
		if rec.Pinned {
			continue
		}
		unpinned++
		if unpinned > s.maxCount {
			stale = append(stale, append([]byte(nil), k...))
		}
	}
	for _, k := range stale {
		if err := b.Delete(k); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

// Latest returns the record with the highest id.
func (s *Store) Latest() (types.HistoryRecord, error) {
	var rec types.HistoryRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		_, v := tx.Bucket(historyBucket).Cursor().Last()
		if v == nil {
			return ErrNotFound
		}
		var err error
		rec, err = decodeRecord(v)
		return err
	})
	return rec, err
}

// LatestID returns the highest id, ok is false when the store is empty.
func (s *Store) LatestID() (int64, bool, error) {
	var id int64
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		k, _ := tx.Bucket(historyBucket).Cursor().Last()
		if k != nil {
			id, ok = btoi(k), true
		}
		return nil
	})
	return id, ok, err
}

func (s *Store) Get(id int64) (types.HistoryRecord, error) {
	var rec types.HistoryRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(historyBucket).Get(itob(id))
		if v == nil {
			return ErrNotFound
		}
		var err error
		rec, err = decodeRecord(v)
		return err
	})
	return rec, err
}

// History returns a page of records, pinned first, then id descending.
func (s *Store) History(limit, offset int) ([]types.HistoryRecord, error) {
	if offset < 0 {
		offset = 0
	}
	var pinned, rest []types.HistoryRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(historyBucket).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			rec, err := decodeRecord(v)
			if err != nil {
				return err
			}
			if rec.Pinned {
				pinned = append(pinned, rec)
			} else {
				rest = append(rest, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	all := append(pinned, rest...)
	if offset >= len(all) {
		return []types.HistoryRecord{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(historyBucket).Stats().KeyN
		return nil
	})
	return n, err
}

func (s *Store) Delete(id int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(historyBucket)
		key := itob(id)
		if b.Get(key) == nil {
			return ErrNotFound
		}
		return b.Delete(key)
	})
}

func (s *Store) SetPinned(id int64, pinned bool) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(historyBucket)
		v := b.Get(itob(id))
		if v == nil {
			return ErrNotFound
		}
		rec, err := decodeRecord(v)
		if err != nil {
			return err
		}
		rec.Pinned = pinned
		return putRecord(b, rec)
	})
}
