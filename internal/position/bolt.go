package position

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	bolt "go.etcd.io/bbolt"

	"YieldFlow/internal/model"
)

var bucketPositions = []byte("positions")

// BoltStore keeps one JSON document per owner in a bbolt bucket.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (and migrates) the database at path.
func NewBoltStore(path string, options *bolt.Options) (*BoltStore, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, fmt.Errorf("open bolt store: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPositions)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate bolt store: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *BoltStore) Get(owner solana.PublicKey) (model.StakePosition, error) {
	var pos model.StakePosition
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketPositions).Get(owner.Bytes())
		if raw == nil {
			return notFound(owner)
		}
		return json.Unmarshal(raw, &pos)
	})
	if err != nil {
		return model.StakePosition{}, err
	}
	return pos, nil
}

// Update runs fn inside a bolt write transaction. bbolt allows one writer at
// a time, so concurrent updates of any owner are serialised.
func (s *BoltStore) Update(owner solana.PublicKey, createIfMissing bool, fn MutateFunc) (model.StakePosition, error) {
	var result model.StakePosition
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketPositions)
		raw := bucket.Get(owner.Bytes())

		var pos model.StakePosition
		isNew := raw == nil
		if isNew {
			if !createIfMissing {
				return notFound(owner)
			}
			pos = model.StakePosition{Owner: owner}
		} else if err := json.Unmarshal(raw, &pos); err != nil {
			return fmt.Errorf("decode position %s: %w", owner, err)
		}

		if err := fn(&pos, isNew); err != nil {
			return err
		}
		encoded, err := json.Marshal(pos)
		if err != nil {
			return err
		}
		if err := bucket.Put(owner.Bytes(), encoded); err != nil {
			return err
		}
		result = pos
		return nil
	})
	if err != nil {
		return model.StakePosition{}, err
	}
	return result, nil
}

func (s *BoltStore) List() ([]model.StakePosition, error) {
	var out []model.StakePosition
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPositions).ForEach(func(k, v []byte) error {
			var pos model.StakePosition
			if err := json.Unmarshal(v, &pos); err != nil {
				return fmt.Errorf("decode position %x: %w", k, err)
			}
			out = append(out, pos)
			return nil
		})
	})
	return out, err
}
