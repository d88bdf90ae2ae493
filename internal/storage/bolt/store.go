// Package bolt persists the order log and the sales aggregate in a single
// bbolt file. Each record is one JSON document written wholesale on every
// mutation, mirroring the flat-file layout the service replaces.
package bolt

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	bbolt "go.etcd.io/bbolt"

	"github.com/coquipos/backend/internal/domain/order"
	"github.com/coquipos/backend/internal/domain/sales"
)

var (
	ordersBucket = []byte("orders")
	salesBucket  = []byte("sales")

	logKey       = []byte("log")
	aggregateKey = []byte("aggregate")
)

// Store wraps the bbolt database holding both records.
type Store struct {
	db *bbolt.DB
}

// Open creates or opens the database file and ensures both buckets exist.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create data dir")
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(ordersBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(salesBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create buckets")
	}

	return &Store{db: db}, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is readable; used by the readiness probe.
func (s *Store) Ping(context.Context) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(ordersBucket) == nil {
			return errors.New("orders bucket missing")
		}
		return nil
	})
}

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository over the shared Store.
type OrderRepository struct {
	store *Store
}

// NewOrderRepository returns the order log backed by the store.
func NewOrderRepository(s *Store) *OrderRepository {
	return &OrderRepository{store: s}
}

func loadLog(tx *bbolt.Tx) ([]order.Order, error) {
	raw := tx.Bucket(ordersBucket).Get(logKey)
	if raw == nil {
		return nil, nil
	}
	var log []order.Order
	if err := json.Unmarshal(raw, &log); err != nil {
		return nil, errors.Wrap(err, "decode order log")
	}
	return log, nil
}

func saveLog(tx *bbolt.Tx, log []order.Order) error {
	raw, err := json.Marshal(log)
	if err != nil {
		return errors.Wrap(err, "encode order log")
	}
	return tx.Bucket(ordersBucket).Put(logKey, raw)
}

// Append adds the order to the end of the log and rewrites it.
func (r *OrderRepository) Append(_ context.Context, o *order.Order) error {
	return r.store.db.Update(func(tx *bbolt.Tx) error {
		log, err := loadLog(tx)
		if err != nil {
			return err
		}
		return saveLog(tx, append(log, *o))
	})
}

// List returns the full log in insertion order.
func (r *OrderRepository) List(_ context.Context) ([]order.Order, error) {
	var log []order.Order
	err := r.store.db.View(func(tx *bbolt.Tx) error {
		var err error
		log, err = loadLog(tx)
		return err
	})
	return log, err
}

// Find returns the first order with the given id in insertion order.
func (r *OrderRepository) Find(_ context.Context, id string) (*order.Order, error) {
	var found *order.Order
	err := r.store.db.View(func(tx *bbolt.Tx) error {
		log, err := loadLog(tx)
		if err != nil {
			return err
		}
		for i := range log {
			if log[i].ID == id {
				o := log[i]
				found = &o
				return nil
			}
		}
		return order.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// MarkRefunded flags the first order matching id and rewrites the log.
func (r *OrderRepository) MarkRefunded(_ context.Context, id, refundedBy, refundedAt string) (*order.Order, error) {
	var updated *order.Order
	err := r.store.db.Update(func(tx *bbolt.Tx) error {
		log, err := loadLog(tx)
		if err != nil {
			return err
		}
		for i := range log {
			if log[i].ID != id {
				continue
			}
			log[i].Refunded = true
			log[i].RefundedAt = refundedAt
			log[i].RefundedBy = refundedBy
			o := log[i]
			updated = &o
			return saveLog(tx, log)
		}
		return order.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

var _ sales.Repository = (*SalesRepository)(nil)

// SalesRepository implements sales.Repository over the shared Store.
type SalesRepository struct {
	store *Store
}

// NewSalesRepository returns the aggregate row backed by the store.
func NewSalesRepository(s *Store) *SalesRepository {
	return &SalesRepository{store: s}
}

// Load reads the aggregate row, returning a zero-valued aggregate when none
// has been written yet.
func (r *SalesRepository) Load(_ context.Context) (*sales.Aggregate, error) {
	agg := sales.NewAggregate()
	err := r.store.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(salesBucket).Get(aggregateKey)
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, agg); err != nil {
			return errors.Wrap(err, "decode aggregate")
		}
		if agg.ByDate == nil {
			agg.ByDate = make(map[string]sales.Bucket)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// Save rewrites the aggregate row wholesale.
func (r *SalesRepository) Save(_ context.Context, a *sales.Aggregate) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return errors.Wrap(err, "encode aggregate")
	}
	return r.store.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(salesBucket).Put(aggregateKey, raw)
	})
}
