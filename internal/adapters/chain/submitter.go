package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/certmint/certmint-api/internal/core"
	"github.com/certmint/certmint-api/internal/domain/model"
)

// certificateABI is the slice of the registry contract the submitter talks
// to: the authority-gated issue operation, the owner diagnostic, and the
// issuance event used for token-id extraction.
const certificateABI = `[
	{"type":"function","name":"issue","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"eventId","type":"string"},{"name":"contentRef","type":"string"}],
	 "outputs":[{"name":"tokenId","type":"uint256"}]},
	{"type":"function","name":"owner","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"event","name":"CertificateIssued","anonymous":false,
	 "inputs":[{"name":"recipient","type":"address","indexed":true},
	           {"name":"tokenId","type":"uint256","indexed":false},
	           {"name":"attendanceTokenId","type":"uint256","indexed":false}]}
]`

const (
	defaultConfirmTimeout = 120 * time.Second
	defaultReceiptPoll    = 2 * time.Second

	// headroomPct pads both the gas limit and the fee bid over the
	// observed values.
	headroomPct = 110

	// maxPlausibleTokenID bounds the heuristic raw-log scan; registries
	// this system issues against number tokens sequentially from zero.
	maxPlausibleTokenID = 1 << 32
)

var (
	transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	issuedTopic   = crypto.Keccak256Hash([]byte("CertificateIssued(address,uint256,uint256)"))
)

// SubmitterOptions configures a Submitter.
type SubmitterOptions struct {
	Backend Backend
	// PrivateKeyHex is the signing identity's key, hex encoded without the
	// 0x prefix.
	PrivateKeyHex string
	// Contract is the certificate registry address.
	Contract common.Address
	// ChainID selects the replay-protection domain for signatures.
	ChainID *big.Int

	ConfirmTimeout time.Duration
	ReceiptPoll    time.Duration
	Logger         *slog.Logger
}

// Submitter implements core.LedgerSubmitter against an EVM backend: dry-run
// estimate, legacy transaction with headroom, sign, send, and a bounded
// confirmation wait followed by token-id extraction from the receipt.
type Submitter struct {
	backend  Backend
	key      *ecdsa.PrivateKey
	from     common.Address
	contract common.Address
	chainID  *big.Int
	abi      abi.ABI

	confirmTimeout time.Duration
	receiptPoll    time.Duration
	logger         *slog.Logger
}

// NewSubmitter resolves the signing identity from the configured key and
// constructs a Submitter.
func NewSubmitter(opts SubmitterOptions) (*Submitter, error) {
	if opts.Backend == nil {
		return nil, errors.New("chain backend is required")
	}
	if opts.ChainID == nil || opts.ChainID.Sign() <= 0 {
		return nil, errors.New("chain id is required")
	}
	if (opts.Contract == common.Address{}) {
		return nil, errors.New("contract address is required")
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(opts.PrivateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(certificateABI))
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}

	confirmTimeout := opts.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = defaultConfirmTimeout
	}
	receiptPoll := opts.ReceiptPoll
	if receiptPoll <= 0 {
		receiptPoll = defaultReceiptPoll
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Submitter{
		backend:        opts.Backend,
		key:            key,
		from:           crypto.PubkeyToAddress(key.PublicKey),
		contract:       opts.Contract,
		chainID:        opts.ChainID,
		abi:            parsed,
		confirmTimeout: confirmTimeout,
		receiptPoll:    receiptPoll,
		logger:         logger,
	}, nil
}

// From returns the signing identity's address.
func (s *Submitter) From() common.Address { return s.from }

// Submit performs one issuance attempt. The nonce is requested through
// params.NextNonce only after the dry-run estimate has succeeded, so a
// recipient that can never pass the estimate consumes no sequence number.
func (s *Submitter) Submit(ctx context.Context, params core.SubmitParams) (*model.SubmissionResult, error) {
	to := common.HexToAddress(params.Recipient.WalletAddress)

	data, err := s.abi.Pack("issue", to, params.EventID, params.ContentRef)
	if err != nil {
		return nil, fmt.Errorf("encode issue call: %w", err)
	}

	call := ethereum.CallMsg{From: s.from, To: &s.contract, Data: data}
	gasEstimate, err := s.backend.EstimateGas(ctx, call)
	if err != nil {
		return nil, s.diagnoseEstimateFailure(ctx, err)
	}

	gasPrice, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	nonce, err := params.NextNonce(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate nonce: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &s.contract,
		Gas:      withHeadroom(gasEstimate),
		GasPrice: withHeadroomBig(gasPrice),
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send transaction: %w", err)
	}
	txHash := signed.Hash()

	s.logger.InfoContext(ctx, "issuance transaction submitted",
		"recipient_id", params.Recipient.ID,
		"tx_hash", txHash.Hex(),
		"nonce", nonce,
		"gas_limit", withHeadroom(gasEstimate))

	receipt, err := s.waitConfirmed(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("execution reverted on chain: tx %s", txHash.Hex())
	}

	result := &model.SubmissionResult{
		Success: true,
		TxHash:  txHash.Hex(),
		GasUsed: receipt.GasUsed,
	}
	if tokenID, how, ok := s.extractTokenID(receipt.Logs); ok {
		result.TokenID = &tokenID
		result.TokenIDKnown = true
		if how != extractedFromTransfer {
			result.Note = fmt.Sprintf("token id recovered via %s", how)
		}
	} else {
		result.Note = "confirmed but token id could not be extracted from receipt logs"
		s.logger.WarnContext(ctx, "token id extraction failed on confirmed receipt",
			"recipient_id", params.Recipient.ID, "tx_hash", txHash.Hex(), "logs", len(receipt.Logs))
	}
	return result, nil
}

// diagnoseEstimateFailure attaches a best-effort contract-authority check to
// a failed dry-run, since a missing issuer role is its most common cause.
func (s *Submitter) diagnoseEstimateFailure(ctx context.Context, estimateErr error) error {
	ownerCall, err := s.abi.Pack("owner")
	if err != nil {
		return fmt.Errorf("estimate gas: %w", estimateErr)
	}
	raw, err := s.backend.CallContract(ctx, ethereum.CallMsg{To: &s.contract, Data: ownerCall}, nil)
	if err != nil || len(raw) < common.HashLength {
		return fmt.Errorf("estimate gas: %w", estimateErr)
	}
	owner := common.BytesToAddress(raw[common.HashLength-common.AddressLength : common.HashLength])
	if owner == s.from {
		return fmt.Errorf("estimate gas (signing identity %s holds contract authority): %w",
			s.from.Hex(), estimateErr)
	}
	return fmt.Errorf("estimate gas (signing identity %s lacks contract authority, owner is %s): %w",
		s.from.Hex(), owner.Hex(), estimateErr)
}

// waitConfirmed polls for the receipt until the confirmation timeout. The
// timeout error is worded so the retry policy classifies it as transient.
func (s *Submitter) waitConfirmed(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	deadline := time.Now().Add(s.confirmTimeout)
	ticker := time.NewTicker(s.receiptPoll)
	defer ticker.Stop()

	for {
		receipt, err := s.backend.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("fetch receipt: %w", err)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("confirmation timed out after %s for tx %s", s.confirmTimeout, txHash.Hex())
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

const (
	extractedFromTransfer = "erc721 transfer topic"
	extractedFromIssued   = "certificate issued event"
	extractedHeuristic    = "heuristic log scan"
)

// extractTokenID recovers the minted token identifier from receipt logs,
// trying the standard ERC-721 Transfer topic first, then the registry's own
// CertificateIssued event, then a heuristic scan of raw log data words.
func (s *Submitter) extractTokenID(logs []*types.Log) (uint64, string, bool) {
	for _, entry := range logs {
		if len(entry.Topics) == 4 && entry.Topics[0] == transferTopic {
			id := entry.Topics[3].Big()
			if id.IsUint64() {
				return id.Uint64(), extractedFromTransfer, true
			}
		}
	}

	for _, entry := range logs {
		if len(entry.Topics) == 0 || entry.Topics[0] != issuedTopic {
			continue
		}
		values, err := s.abi.Unpack("CertificateIssued", entry.Data)
		if err != nil || len(values) == 0 {
			continue
		}
		if id, ok := values[0].(*big.Int); ok && id.IsUint64() {
			return id.Uint64(), extractedFromIssued, true
		}
	}

	for _, entry := range logs {
		for off := 0; off+common.HashLength <= len(entry.Data); off += common.HashLength {
			word := new(big.Int).SetBytes(entry.Data[off : off+common.HashLength])
			if word.Sign() > 0 && word.IsUint64() && word.Uint64() < maxPlausibleTokenID {
				return word.Uint64(), extractedHeuristic, true
			}
		}
	}

	return 0, "", false
}

func withHeadroom(v uint64) uint64 {
	return v * headroomPct / 100
}

func withHeadroomBig(v *big.Int) *big.Int {
	padded := new(big.Int).Mul(v, big.NewInt(headroomPct))
	return padded.Div(padded, big.NewInt(100))
}
