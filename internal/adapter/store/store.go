package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/couchcryptid/snow-removal-info-service/internal/domain"
)

var (
	bucketReports = []byte("reports")
	bucketOutbox  = []byte("outbox")
)

// Store persists snow reports in a BoltDB file. Every created report is
// also queued in the outbox bucket until the relay acknowledges it.
type Store struct {
	db *bolt.DB
}

// Open creates or opens a BoltDB database at the given path and ensures
// all required buckets exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketReports, bucketOutbox} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying BoltDB.
func (s *Store) Close() error {
	return s.db.Close()
}

// CheckReadiness reports whether the database answers a read transaction.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketReports) == nil {
			return errors.New("reports bucket missing")
		}
		return nil
	})
}

// Create assigns the next ID to r, stores it and queues it for publishing.
func (s *Store) Create(ctx context.Context, r domain.SnowReport) (domain.SnowReport, error) {
	if err := ctx.Err(); err != nil {
		return domain.SnowReport{}, err
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReports)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		r.ID = int64(seq)

		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		key := itob(seq)
		if err := b.Put(key, data); err != nil {
			return err
		}
		return tx.Bucket(bucketOutbox).Put(key, []byte{})
	})
	if err != nil {
		return domain.SnowReport{}, fmt.Errorf("create report: %w", err)
	}
	return r, nil
}

// Get returns the report with the given ID, or domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (domain.SnowReport, error) {
	if err := ctx.Err(); err != nil {
		return domain.SnowReport{}, err
	}
	if id <= 0 {
		return domain.SnowReport{}, domain.ErrNotFound
	}

	var r domain.SnowReport
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketReports).Get(itob(uint64(id)))
		if data == nil {
			return domain.ErrNotFound
		}
		return json.Unmarshal(data, &r)
	})
	if err != nil {
		return domain.SnowReport{}, err
	}
	return r, nil
}

// List returns reports matching f in ascending ID order.
func (s *Store) List(ctx context.Context, f domain.ReportFilter) ([]domain.SnowReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	limit := f.EffectiveLimit()
	out := make([]domain.SnowReport, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketReports).Cursor()
		for k, v := c.First(); k != nil && len(out) < limit; k, v = c.Next() {
			var r domain.SnowReport
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decode report %d: %w", btoi(k), err)
			}
			if f.Matches(r) {
				out = append(out, r)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PendingBatch returns up to n reports still waiting in the outbox, oldest first.
func (s *Store) PendingBatch(ctx context.Context, n int) ([]domain.SnowReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}

	var out []domain.SnowReport
	err := s.db.View(func(tx *bolt.Tx) error {
		reports := tx.Bucket(bucketReports)
		c := tx.Bucket(bucketOutbox).Cursor()
		for k, _ := c.First(); k != nil && len(out) < n; k, _ = c.Next() {
			data := reports.Get(k)
			if data == nil {
				continue
			}
			var r domain.SnowReport
			if err := json.Unmarshal(data, &r); err != nil {
				return fmt.Errorf("decode report %d: %w", btoi(k), err)
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkPublished removes the given report IDs from the outbox.
func (s *Store) MarkPublished(ctx context.Context, ids []int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOutbox)
		for _, id := range ids {
			if err := b.Delete(itob(uint64(id))); err != nil {
				return err
			}
		}
		return nil
	})
}

// PendingCount returns the number of reports waiting in the outbox.
func (s *Store) PendingCount() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketOutbox).Stats().KeyN
		return nil
	})
	return n, err
}

// itob encodes an ID big-endian so cursor order is ID order.
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
