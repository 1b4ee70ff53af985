package persistence

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/rmacdonaldsmith/pubsubnode-go/pkg/pubsub"
)

// Key layout. NUL separators are safe because service and node identifiers
// never contain NUL bytes.
//
//	i\0<service>\0<node>\0<created:8 big-endian><itemID>  -> storedItem JSON
//	x\0<service>\0<node>\0<itemID>                        -> primary key
//
// The primary keyspace is creation-time ordered per node, which makes
// recent-first retrieval a reverse prefix scan and retention trimming a
// forward prefix scan.

// StoreConfig configures the badger-backed provider.
type StoreConfig struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path string

	// InMemory runs badger without touching disk. Intended for tests.
	InMemory bool

	// Logger is an optional structured logger. If nil, a default is used.
	Logger *logrus.Logger
}

// BadgerStore implements pubsub.PersistenceProvider on badger.
type BadgerStore struct {
	db  *badger.DB
	log *logrus.Logger
}

// storedItem is the JSON encoding of an item in the primary keyspace.
type storedItem struct {
	ID        string     `json:"id"`
	Publisher pubsub.JID `json:"publisher"`
	Created   int64      `json:"created"` // unix nanoseconds, cluster time
	Payload   []byte     `json:"payload,omitempty"`
}

// NewBadgerStore opens (or creates) the item store at config.Path.
func NewBadgerStore(config StoreConfig) (*BadgerStore, error) {
	log := config.Logger
	if log == nil {
		log = logrus.New()
	}

	opts := badger.DefaultOptions(config.Path)
	opts.Logger = nil
	opts.SyncWrites = false
	if config.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open item store: %w", err)
	}

	return &BadgerStore{db: db, log: log}, nil
}

func nodePrefix(node pubsub.NodeID) []byte {
	return []byte("i\x00" + node.Service + "\x00" + node.Node + "\x00")
}

func primaryKey(node pubsub.NodeID, createdNanos int64, itemID string) []byte {
	key := nodePrefix(node)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(createdNanos))
	key = append(key, ts[:]...)
	return append(key, itemID...)
}

func indexKey(node pubsub.NodeID, itemID string) []byte {
	return []byte("x\x00" + node.Service + "\x00" + node.Node + "\x00" + itemID)
}

// itemIDFromPrimary recovers the item identifier from a primary key.
func itemIDFromPrimary(prefix, key []byte) string {
	return string(key[len(prefix)+8:])
}

func decodeItem(node pubsub.NodeID, value []byte) (*pubsub.Item, error) {
	var stored storedItem
	if err := json.Unmarshal(value, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode stored item: %w", err)
	}
	created := nanosToTime(stored.Created)
	return pubsub.NewItem(node, stored.ID, stored.Publisher, created, stored.Payload), nil
}

// SaveItem stores the item, replacing any previous record with the same
// identifier, then trims the oldest records beyond maxItems.
func (s *BadgerStore) SaveItem(ctx context.Context, item *pubsub.Item, maxItems int) error {
	if item == nil {
		return ErrNilItem
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	node := item.NodeID()
	stored := storedItem{
		ID:        item.ID(),
		Publisher: item.Publisher(),
		Created:   item.CreatedAt().UnixNano(),
		Payload:   item.Payload(),
	}
	value, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode item: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		idx := indexKey(node, item.ID())

		// Republishing an existing item ID replaces the old record.
		if old, err := txn.Get(idx); err == nil {
			oldPrimary, err := old.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := txn.Delete(oldPrimary); err != nil {
				return err
			}
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		primary := primaryKey(node, stored.Created, item.ID())
		if err := txn.Set(primary, value); err != nil {
			return err
		}
		if err := txn.Set(idx, primary); err != nil {
			return err
		}

		if maxItems > 0 {
			return s.trimOldest(txn, node, maxItems)
		}
		return nil
	})
}

// trimOldest deletes the oldest records of the node until at most maxItems
// remain. Runs inside the save transaction.
func (s *BadgerStore) trimOldest(txn *badger.Txn, node pubsub.NodeID, maxItems int) error {
	prefix := nodePrefix(node)

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}

	for _, key := range keys[:max(0, len(keys)-maxItems)] {
		if err := txn.Delete(key); err != nil {
			return err
		}
		if err := txn.Delete(indexKey(node, itemIDFromPrimary(prefix, key))); err != nil {
			return err
		}
	}
	return nil
}

// RemoveItem deletes the stored record with the item's identifier. Removing
// an item that does not exist is not an error.
func (s *BadgerStore) RemoveItem(ctx context.Context, item *pubsub.Item) error {
	if item == nil {
		return ErrNilItem
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	node := item.NodeID()
	return s.db.Update(func(txn *badger.Txn) error {
		idx := indexKey(node, item.ID())
		entry, err := txn.Get(idx)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		primary, err := entry.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := txn.Delete(primary); err != nil {
			return err
		}
		return txn.Delete(idx)
	})
}

// PurgeNode deletes every record of the node except the most recent one.
func (s *BadgerStore) PurgeNode(ctx context.Context, node pubsub.NodeID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	prefix := nodePrefix(node)
	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		var keys [][]byte
		first := true
		for it.Seek(seekLast(prefix)); it.ValidForPrefix(prefix); it.Next() {
			if first {
				// Keep the most recent record.
				first = false
				continue
			}
			keys = append(keys, it.Item().KeyCopy(nil))
		}

		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
			if err := txn.Delete(indexKey(node, itemIDFromPrimary(prefix, key))); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetItems returns up to limit items for the node, most recent first.
func (s *BadgerStore) GetItems(ctx context.Context, node pubsub.NodeID, limit int) ([]*pubsub.Item, error) {
	if limit < 0 {
		return nil, ErrNegativeLimit
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := nodePrefix(node)
	results := make([]*pubsub.Item, 0, limit)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seekLast(prefix)); it.ValidForPrefix(prefix) && len(results) < limit; it.Next() {
			err := it.Item().Value(func(value []byte) error {
				item, err := decodeItem(node, value)
				if err != nil {
					return err
				}
				results = append(results, item)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetItem returns the stored item with the given identifier, or (nil, nil).
func (s *BadgerStore) GetItem(ctx context.Context, node pubsub.NodeID, itemID string) (*pubsub.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result *pubsub.Item
	err := s.db.View(func(txn *badger.Txn) error {
		entry, err := txn.Get(indexKey(node, itemID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		primary, err := entry.ValueCopy(nil)
		if err != nil {
			return err
		}
		record, err := txn.Get(primary)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return record.Value(func(value []byte) error {
			result, err = decodeItem(node, value)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetLastItem returns the most recently created item, or (nil, nil).
func (s *BadgerStore) GetLastItem(ctx context.Context, node pubsub.NodeID) (*pubsub.Item, error) {
	items, err := s.GetItems(ctx, node, 1)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

// Close closes the underlying badger database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func nanosToTime(nanos int64) time.Time {
	return time.Unix(0, nanos).UTC()
}

// seekLast returns a key that sorts after every key with the given prefix,
// used as the starting point for reverse iteration.
func seekLast(prefix []byte) []byte {
	end := make([]byte, len(prefix), len(prefix)+8)
	copy(end, prefix)
	for i := 0; i < 8; i++ {
		end = append(end, 0xff)
	}
	return end
}

// Verify that BadgerStore implements the interface at compile time
var _ pubsub.PersistenceProvider = (*BadgerStore)(nil)
