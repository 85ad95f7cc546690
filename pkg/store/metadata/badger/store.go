package badger

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/dittofuse/pkg/store/metadata"
)

// BadgerMetadataStore implements metadata.Store using BadgerDB for persistence.
//
// Key Features:
//   - Persistent storage with crash recovery (WAL-based)
//   - ACID transactions for every operation, including CreateChild and Move
//   - Directory listings as one prefix scan (see keys.go)
//
// Thread Safety:
// BadgerDB handles concurrency internally with MVCC; the store adds no
// locking of its own.
type BadgerMetadataStore struct {
	// db is the BadgerDB database handle (thread-safe, uses internal MVCC)
	db *badger.DB

	// inMemory disables value log syncing; there is no log on disk.
	inMemory bool
}

// BadgerMetadataStoreConfig contains configuration for creating a BadgerDB metadata store.
type BadgerMetadataStoreConfig struct {
	// DBPath is the directory where BadgerDB will store its files
	DBPath string `mapstructure:"db_path"`

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default: 64)
	BlockCacheSizeMB int64 `mapstructure:"block_cache_mb"`

	// IndexCacheSizeMB is BadgerDB's index cache size in MB (default: 32)
	IndexCacheSizeMB int64 `mapstructure:"index_cache_mb"`

	// InMemory runs BadgerDB without touching disk. Used by tests.
	InMemory bool `mapstructure:"-"`
}

// NewBadgerMetadataStore opens (or creates) a BadgerDB database at
// config.DBPath.
func NewBadgerMetadataStore(ctx context.Context, config BadgerMetadataStoreConfig) (*BadgerMetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(config.DBPath)
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}

	// Metadata records are small and hot: no compression, quiet logs.
	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithCompression(options.None)

	blockCacheMB := config.BlockCacheSizeMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}
	indexCacheMB := config.IndexCacheSizeMB
	if indexCacheMB == 0 {
		indexCacheMB = 32
	}
	opts = opts.WithBlockCacheSize(blockCacheMB << 20)
	opts = opts.WithIndexCacheSize(indexCacheMB << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	return &BadgerMetadataStore{db: db, inMemory: config.InMemory}, nil
}

func (s *BadgerMetadataStore) GetSuperBlock(ctx context.Context) (*metadata.SuperBlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sb *metadata.SuperBlock
	err := s.db.View(func(txn *badger.Txn) error {
		val, err := getValue(txn, keySuperBlock())
		if err != nil {
			return err
		}
		sb, err = metadata.DecodeSuperBlock(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sb, nil
}

func (s *BadgerMetadataStore) PutSuperBlock(ctx context.Context, sb *metadata.SuperBlock) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	val, err := metadata.EncodeSuperBlock(sb)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(keySuperBlock(), val); err != nil {
			return fmt.Errorf("failed to store superblock: %w", err)
		}
		return nil
	})
}

func (s *BadgerMetadataStore) GetInode(ctx context.Context, id uint64) (*metadata.Inode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var inode *metadata.Inode
	err := s.db.View(func(txn *badger.Txn) error {
		val, err := getValue(txn, keyInode(id))
		if err != nil {
			return err
		}
		inode, err = metadata.DecodeInode(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inode, nil
}

func (s *BadgerMetadataStore) PutInode(ctx context.Context, inode *metadata.Inode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	val, err := metadata.EncodeInode(inode)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(keyInode(inode.ID), val); err != nil {
			return fmt.Errorf("failed to store inode %d: %w", inode.ID, err)
		}
		return nil
	})
}

func (s *BadgerMetadataStore) DeleteInode(ctx context.Context, id uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(keyInode(id)); err != nil {
			return fmt.Errorf("failed to delete inode %d: %w", id, err)
		}
		return nil
	})
}

func (s *BadgerMetadataStore) GetChild(ctx context.Context, parentID uint64, name string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var id uint64
	err := s.db.View(func(txn *badger.Txn) error {
		val, err := getValue(txn, keyChild(parentID, name))
		if err != nil {
			return err
		}
		id = decodeID(val)
		return nil
	})
	return id, err
}

func (s *BadgerMetadataStore) SetChild(ctx context.Context, parentID uint64, name string, childID uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(keyChild(parentID, name), encodeID(childID)); err != nil {
			return fmt.Errorf("failed to store entry %q in %d: %w", name, parentID, err)
		}
		return nil
	})
}

func (s *BadgerMetadataStore) RemoveChild(ctx context.Context, parentID uint64, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := keyChild(parentID, name)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return metadata.ErrNotFound
			}
			return fmt.Errorf("failed to get entry %q in %d: %w", name, parentID, err)
		}
		if err := txn.Delete(key); err != nil {
			return fmt.Errorf("failed to delete entry %q in %d: %w", name, parentID, err)
		}
		return nil
	})
}

// CreateChild writes the inode, its entry and the superblock in one
// transaction.
func (s *BadgerMetadataStore) CreateChild(ctx context.Context, inode *metadata.Inode, sb *metadata.SuperBlock) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	inodeVal, err := metadata.EncodeInode(inode)
	if err != nil {
		return err
	}
	sbVal, err := metadata.EncodeSuperBlock(sb)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := keyChild(inode.ParentID, inode.Name)
		if _, err := txn.Get(entry); err == nil {
			return metadata.ErrExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to get entry %q in %d: %w", inode.Name, inode.ParentID, err)
		}

		if err := txn.Set(keyInode(inode.ID), inodeVal); err != nil {
			return fmt.Errorf("failed to store inode %d: %w", inode.ID, err)
		}
		if err := txn.Set(entry, encodeID(inode.ID)); err != nil {
			return fmt.Errorf("failed to store entry %q in %d: %w", inode.Name, inode.ParentID, err)
		}
		if err := txn.Set(keySuperBlock(), sbVal); err != nil {
			return fmt.Errorf("failed to store superblock: %w", err)
		}
		return nil
	})
}

// Move swaps the entry and rewrites the inode in one transaction.
func (s *BadgerMetadataStore) Move(ctx context.Context, oldParentID uint64, oldName string, inode *metadata.Inode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	val, err := metadata.EncodeInode(inode)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		oldKey := keyChild(oldParentID, oldName)
		if _, err := txn.Get(oldKey); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return metadata.ErrNotFound
			}
			return fmt.Errorf("failed to get entry %q in %d: %w", oldName, oldParentID, err)
		}

		if err := txn.Delete(oldKey); err != nil {
			return fmt.Errorf("failed to delete entry %q in %d: %w", oldName, oldParentID, err)
		}
		if err := txn.Set(keyChild(inode.ParentID, inode.Name), encodeID(inode.ID)); err != nil {
			return fmt.Errorf("failed to store entry %q in %d: %w", inode.Name, inode.ParentID, err)
		}
		if err := txn.Set(keyInode(inode.ID), val); err != nil {
			return fmt.Errorf("failed to store inode %d: %w", inode.ID, err)
		}
		return nil
	})
}

func (s *BadgerMetadataStore) ListChildren(ctx context.Context, parentID uint64) ([]metadata.DirEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entries []metadata.DirEntry
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := keyChildPrefix(parentID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			name := string(item.Key()[len(prefix):])
			err := item.Value(func(val []byte) error {
				entries = append(entries, metadata.DirEntry{Name: name, ID: decodeID(val)})
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to read entry %q in %d: %w", name, parentID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Sync flushes BadgerDB's value log to disk.
func (s *BadgerMetadataStore) Sync(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.inMemory {
		return nil
	}
	if err := s.db.Sync(); err != nil {
		return fmt.Errorf("failed to sync BadgerDB: %w", err)
	}
	return nil
}

// Close closes the BadgerDB database and releases all resources.
func (s *BadgerMetadataStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}

// getValue returns a copy of the value under key, translating a miss into
// metadata.ErrNotFound.
func getValue(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, metadata.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %q: %w", key, err)
	}
	return item.ValueCopy(nil)
}
