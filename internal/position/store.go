// Package position persists stake positions and serialises every mutation
// of a single position.
package position

import (
	"github.com/gagliardetto/solana-go"

	"YieldFlow/internal/errs"
	"YieldFlow/internal/model"
)

var ErrPositionExists = errs.Register(50, errs.KindValidation, "position already exists")

// MutateFunc edits a position in place. isNew is true when the record did not
// exist before this call. Returning an error aborts the write.
type MutateFunc func(pos *model.StakePosition, isNew bool) error

// Store is an owner-keyed position store. Update is one atomic
// read-modify-write: either fn's result is persisted or nothing is.
type Store interface {
	Get(owner solana.PublicKey) (model.StakePosition, error)
	Update(owner solana.PublicKey, createIfMissing bool, fn MutateFunc) (model.StakePosition, error)
	List() ([]model.StakePosition, error)
	Close() error
}

func notFound(owner solana.PublicKey) error {
	return errs.ErrNotFound.Newf("position %s", owner)
}
