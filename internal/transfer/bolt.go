package transfer

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	bolt "go.etcd.io/bbolt"
)

var bucketBalances = []byte("balances")

type boltBook struct {
	db *bolt.DB
}

// OpenLedger opens a ledger persisted at path. Escrow is seeded with initial
// units only the first time the database is created; later opens keep the
// stored balances.
func OpenLedger(log *slog.Logger, path string, escrow solana.PublicKey, initial uint64) (*Ledger, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	balances := make(map[solana.PublicKey]uint64)
	err = db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketBalances)
		if err != nil {
			return err
		}
		if bucket.Get(escrow.Bytes()) == nil {
			if err := bucket.Put(escrow.Bytes(), encodeBalance(initial)); err != nil {
				return err
			}
		}
		return bucket.ForEach(func(k, v []byte) error {
			if len(k) != solana.PublicKeyLength || len(v) != 8 {
				return fmt.Errorf("corrupt ledger entry %x", k)
			}
			balances[solana.PublicKeyFromBytes(k)] = binary.BigEndian.Uint64(v)
			return nil
		})
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	log.Info("ledger opened", "path", path, "accounts", len(balances), "escrow", balances[escrow])
	return &Ledger{log: log, balances: balances, book: &boltBook{db: db}}, nil
}

// put writes every balance in one transaction.
func (b *boltBook) put(next map[solana.PublicKey]uint64) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketBalances)
		for account, balance := range next {
			if err := bucket.Put(account.Bytes(), encodeBalance(balance)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *boltBook) close() error { return b.db.Close() }

func encodeBalance(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}
