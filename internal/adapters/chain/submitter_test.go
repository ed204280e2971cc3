package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certmint/certmint-api/internal/core"
	"github.com/certmint/certmint-api/internal/domain/issuance"
	"github.com/certmint/certmint-api/internal/domain/model"
)

// Well-known development key; its address is
// 0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266.
const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var testContract = common.HexToAddress("0x000000000000000000000000000000000000c0de")

type stubBackend struct {
	mu sync.Mutex

	gasEstimate  uint64
	estimateErr  error
	gasPrice     *big.Int
	priceErr     error
	sendErr      error
	sent         []*types.Transaction
	receipt      *types.Receipt
	receiptErr   error
	owner        common.Address
	pendingNonce uint64
}

func (b *stubBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return b.pendingNonce, nil
}

func (b *stubBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if b.priceErr != nil {
		return nil, b.priceErr
	}
	if b.gasPrice == nil {
		return big.NewInt(1_000_000_000), nil
	}
	return b.gasPrice, nil
}

func (b *stubBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	if b.estimateErr != nil {
		return 0, b.estimateErr
	}
	if b.gasEstimate == 0 {
		return 100_000, nil
	}
	return b.gasEstimate, nil
}

func (b *stubBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, tx)
	return nil
}

func (b *stubBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if b.receiptErr != nil {
		return nil, b.receiptErr
	}
	if b.receipt == nil {
		return nil, ethereum.NotFound
	}
	return b.receipt, nil
}

func (b *stubBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return common.LeftPadBytes(b.owner.Bytes(), common.HashLength), nil
}

func confirmedReceipt(logs ...*types.Log) *types.Receipt {
	return &types.Receipt{
		Status:  types.ReceiptStatusSuccessful,
		GasUsed: 90_000,
		Logs:    logs,
	}
}

func transferLog(tokenID int64) *types.Log {
	return &types.Log{
		Topics: []common.Hash{
			transferTopic,
			common.Hash{}, // from: zero address on mint
			common.BytesToHash(common.HexToAddress("0x1111111111111111111111111111111111111111").Bytes()),
			common.BigToHash(big.NewInt(tokenID)),
		},
	}
}

func issuedLog(tokenID, attendanceID int64) *types.Log {
	data := append(
		common.BigToHash(big.NewInt(tokenID)).Bytes(),
		common.BigToHash(big.NewInt(attendanceID)).Bytes()...,
	)
	return &types.Log{
		Topics: []common.Hash{issuedTopic, common.Hash{}},
		Data:   data,
	}
}

func newTestSubmitter(t *testing.T, backend *stubBackend) *Submitter {
	t.Helper()
	s, err := NewSubmitter(SubmitterOptions{
		Backend:        backend,
		PrivateKeyHex:  testKeyHex,
		Contract:       testContract,
		ChainID:        big.NewInt(1337),
		ConfirmTimeout: 50 * time.Millisecond,
		ReceiptPoll:    time.Millisecond,
	})
	require.NoError(t, err)
	return s
}

func submitParams(nonce uint64, counter *int) core.SubmitParams {
	return core.SubmitParams{
		Recipient: &model.Recipient{
			ID:            "rec-1",
			WalletAddress: "0x1111111111111111111111111111111111111111",
		},
		EventID:    "evt-1",
		ContentRef: "ipfs://bafyrec1",
		NextNonce: func(ctx context.Context) (uint64, error) {
			if counter != nil {
				*counter++
			}
			return nonce, nil
		},
	}
}

func TestSubmitterSuccessTransferTopic(t *testing.T) {
	backend := &stubBackend{receipt: confirmedReceipt(transferLog(77))}
	s := newTestSubmitter(t, backend)

	nonceCalls := 0
	result, err := s.Submit(context.Background(), submitParams(500, &nonceCalls))

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.TokenIDKnown)
	require.NotNil(t, result.TokenID)
	assert.Equal(t, uint64(77), *result.TokenID)
	assert.Equal(t, uint64(90_000), result.GasUsed)
	assert.Empty(t, result.Note)
	assert.Equal(t, 1, nonceCalls)

	require.Len(t, backend.sent, 1)
	tx := backend.sent[0]
	assert.Equal(t, uint64(500), tx.Nonce())
	assert.Equal(t, uint64(110_000), tx.Gas(), "gas limit carries 110% headroom")
	assert.Equal(t, big.NewInt(1_100_000_000), tx.GasPrice(), "fee bid carries 110% headroom")
	assert.Equal(t, testContract, *tx.To())
	assert.Equal(t, result.TxHash, tx.Hash().Hex())

	// Confirm the signature resolves back to the configured identity.
	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1337)), tx)
	require.NoError(t, err)
	assert.Equal(t, s.From(), from)
}

func TestSubmitterEstimateFailureSkipsNonce(t *testing.T) {
	backend := &stubBackend{
		estimateErr: errors.New("execution reverted: not authorized"),
		owner:       common.HexToAddress("0x2222222222222222222222222222222222222222"),
	}
	s := newTestSubmitter(t, backend)

	nonceCalls := 0
	result, err := s.Submit(context.Background(), submitParams(500, &nonceCalls))

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, 0, nonceCalls, "no sequence number consumed before a successful estimate")
	assert.Contains(t, err.Error(), "lacks contract authority")
	assert.Contains(t, err.Error(), backend.owner.Hex())
	assert.Empty(t, backend.sent)
}

func TestSubmitterEstimateFailureWithAuthorityHeld(t *testing.T) {
	backend := &stubBackend{estimateErr: errors.New("intrinsic gas too low")}
	s := newTestSubmitter(t, backend)
	backend.owner = s.From()

	_, err := s.Submit(context.Background(), submitParams(500, nil))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "holds contract authority")
}

func TestSubmitterConfirmationTimeoutIsTransient(t *testing.T) {
	backend := &stubBackend{} // receipt never appears
	s := newTestSubmitter(t, backend)

	_, err := s.Submit(context.Background(), submitParams(500, nil))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.True(t, issuance.Transient(err), "confirmation timeout must be retryable")
	assert.Equal(t, issuance.CategoryNetwork, issuance.Category(err))
}

func TestSubmitterRevertedReceipt(t *testing.T) {
	backend := &stubBackend{receipt: &types.Receipt{Status: types.ReceiptStatusFailed}}
	s := newTestSubmitter(t, backend)

	_, err := s.Submit(context.Background(), submitParams(500, nil))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "execution reverted")
}

func TestSubmitterIssuedEventFallback(t *testing.T) {
	backend := &stubBackend{receipt: confirmedReceipt(issuedLog(42, 11))}
	s := newTestSubmitter(t, backend)

	result, err := s.Submit(context.Background(), submitParams(500, nil))

	require.NoError(t, err)
	require.NotNil(t, result.TokenID)
	assert.Equal(t, uint64(42), *result.TokenID)
	assert.Contains(t, result.Note, "certificate issued event")
}

func TestSubmitterHeuristicFallback(t *testing.T) {
	// Unrecognized event whose data contains one plausible small word.
	raw := &types.Log{
		Topics: []common.Hash{common.HexToHash("0xdeadbeef")},
		Data:   common.BigToHash(big.NewInt(9)).Bytes(),
	}
	backend := &stubBackend{receipt: confirmedReceipt(raw)}
	s := newTestSubmitter(t, backend)

	result, err := s.Submit(context.Background(), submitParams(500, nil))

	require.NoError(t, err)
	require.NotNil(t, result.TokenID)
	assert.Equal(t, uint64(9), *result.TokenID)
	assert.Contains(t, result.Note, "heuristic")
}

func TestSubmitterUnknownTokenIDStillSucceeds(t *testing.T) {
	backend := &stubBackend{receipt: confirmedReceipt()}
	s := newTestSubmitter(t, backend)

	result, err := s.Submit(context.Background(), submitParams(500, nil))

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.TokenIDKnown)
	assert.Nil(t, result.TokenID)
	assert.Contains(t, result.Note, "could not be extracted")
}

func TestNewSubmitterValidation(t *testing.T) {
	backend := &stubBackend{}

	_, err := NewSubmitter(SubmitterOptions{
		PrivateKeyHex: testKeyHex, Contract: testContract, ChainID: big.NewInt(1),
	})
	assert.ErrorContains(t, err, "backend")

	_, err = NewSubmitter(SubmitterOptions{
		Backend: backend, PrivateKeyHex: testKeyHex, Contract: testContract,
	})
	assert.ErrorContains(t, err, "chain id")

	_, err = NewSubmitter(SubmitterOptions{
		Backend: backend, PrivateKeyHex: "zz", Contract: testContract, ChainID: big.NewInt(1),
	})
	assert.ErrorContains(t, err, "parse signing key")

	_, err = NewSubmitter(SubmitterOptions{
		Backend: backend, PrivateKeyHex: testKeyHex, ChainID: big.NewInt(1),
	})
	assert.ErrorContains(t, err, "contract address")
}

func TestNonceSource(t *testing.T) {
	backend := &stubBackend{pendingNonce: 314}
	fetch := NonceSource(backend, common.HexToAddress("0x1111111111111111111111111111111111111111"))

	n, err := fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(314), n)
}
