// Package chain submits issuance transactions to an EVM ledger and decodes
// their receipts.
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/certmint/certmint-api/internal/core"
)

// Backend is the subset of the RPC client the submitter needs. Satisfied by
// *ethclient.Client; stubbed in tests.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// NonceSource adapts the backend's pending-nonce query to the allocator's
// fetch contract. Called once per process, on the first allocation.
func NonceSource(backend Backend, account common.Address) core.NonceFunc {
	return func(ctx context.Context) (uint64, error) {
		return backend.PendingNonceAt(ctx, account)
	}
}
