package rate

import (
	"context"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/holiman/uint256"

	"YieldFlow/internal/model"
	"YieldFlow/internal/retry"
)

// Marinade stores msol_price as a fixed-point u64 over 2^32.
const priceDenominatorBits = 32

// AccountRPC is the subset of the Solana RPC client the on-chain source needs.
type AccountRPC interface {
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *solanarpc.GetAccountInfoOpts) (*solanarpc.GetAccountInfoResult, error)
}

// SolanaSource reads msol_price straight from the Marinade state account.
// Each call fetches the account at confirmed commitment, so the rate is
// never older than the last confirmed slot.
type SolanaSource struct {
	RPC         AccountRPC
	State       solana.PublicKey
	PriceOffset int
	Retry       retry.Config
}

func NewSolanaSource(rpcURL string, state solana.PublicKey, priceOffset int) *SolanaSource {
	return &SolanaSource{
		RPC:         solanarpc.New(rpcURL),
		State:       state,
		PriceOffset: priceOffset,
		Retry:       retry.DefaultConfig(),
	}
}

func (s *SolanaSource) Name() string { return "solana" }

func (s *SolanaSource) CurrentRate(ctx context.Context) (uint64, error) {
	var data []byte
	err := retry.Do(ctx, s.Retry, func() error {
		out, err := s.RPC.GetAccountInfoWithOpts(ctx, s.State, &solanarpc.GetAccountInfoOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: solanarpc.CommitmentConfirmed,
		})
		if err != nil {
			return err
		}
		if out == nil || out.Value == nil || out.Value.Data == nil {
			return ErrInvalidRate.Newf("state account %s is empty", s.State)
		}
		data = out.Value.Data.GetBinary()
		return nil
	})
	if err != nil {
		return 0, ErrSourceUnavailable.Wrap(err)
	}
	return decodePrice(data, s.PriceOffset)
}

// decodePrice reads the little-endian u64 at offset and rescales it from
// 2^32 fixed point to Precision.
func decodePrice(data []byte, offset int) (uint64, error) {
	if offset < 0 || offset+8 > len(data) {
		return 0, ErrInvalidRate.Newf("price offset %d outside %d-byte account", offset, len(data))
	}
	raw := binary.LittleEndian.Uint64(data[offset : offset+8])
	if raw == 0 {
		return 0, ErrInvalidRate.New("zero price")
	}

	scaled := new(uint256.Int).Mul(uint256.NewInt(raw), uint256.NewInt(model.Precision))
	scaled.Rsh(scaled, priceDenominatorBits)
	if !scaled.IsUint64() {
		return 0, ErrInvalidRate.Newf("price %d out of range", raw)
	}
	return scaled.Uint64(), nil
}
