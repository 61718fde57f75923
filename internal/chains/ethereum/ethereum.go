// internal/chains/ethereum/ethereum.go
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"remittance-service/internal/chains"
	"remittance-service/internal/domain"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	LedgerName  = "ETHEREUM"
	NativeAsset = "ETH"
	weiPlaces   = 18
)

// rpcClient is the subset of ethclient.Client the ledger uses
type rpcClient interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

type Config struct {
	RPCURL        string
	ChainID       *big.Int
	GasLimit      uint64
	MaxGasPrice   *big.Int // wei
	Confirmations uint64
	Precision     int32
	Read          chains.ReadPolicy
}

// EthereumLedger settles in native ETH. It has no account reserve; the
// guard's base fee is the worst-case fee at the gas price cap.
type EthereumLedger struct {
	client rpcClient
	cfg    Config
	logger *zap.Logger
}

func NewEthereumLedger(ctx context.Context, cfg Config, logger *zap.Logger) (*EthereumLedger, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum: %w", err)
	}
	if cfg.ChainID == nil {
		chainID, err := client.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get chain ID: %w", err)
		}
		cfg.ChainID = chainID
	}

	logger.Info("Ethereum ledger initialized",
		zap.String("rpc", cfg.RPCURL),
		zap.String("chain_id", cfg.ChainID.String()))

	return newEthereumLedger(client, cfg, logger), nil
}

func newEthereumLedger(client rpcClient, cfg Config, logger *zap.Logger) *EthereumLedger {
	if cfg.GasLimit == 0 {
		cfg.GasLimit = 21000
	}
	if cfg.MaxGasPrice == nil {
		cfg.MaxGasPrice = big.NewInt(100e9) // 100 Gwei
	}
	if cfg.Confirmations == 0 {
		cfg.Confirmations = 12
	}
	if cfg.Precision == 0 {
		cfg.Precision = 7
	}
	return &EthereumLedger{client: client, cfg: cfg, logger: logger}
}

func (e *EthereumLedger) Name() string { return LedgerName }

func (e *EthereumLedger) NativeAsset() string { return NativeAsset }

// Precision is the number of places amounts are kept at before conversion to wei
func (e *EthereumLedger) Precision() int32 { return e.cfg.Precision }

func (e *EthereumLedger) Reserve() decimal.Decimal { return decimal.Zero }

func (e *EthereumLedger) BaseFee() decimal.Decimal {
	fee := new(big.Int).Mul(e.cfg.MaxGasPrice, new(big.Int).SetUint64(e.cfg.GasLimit))
	return fromWei(fee)
}

func (e *EthereumLedger) ValidateAddress(address string) error {
	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid Ethereum address format")
	}
	return nil
}

func (e *EthereumLedger) GenerateAccount(ctx context.Context) (*domain.GeneratedAccount, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	return &domain.GeneratedAccount{
		Address: crypto.PubkeyToAddress(privateKey.PublicKey).Hex(),
		Secret:  hexutil.Encode(crypto.FromECDSA(privateKey))[2:],
	}, nil
}

func (e *EthereumLedger) GetNativeBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	var wei *big.Int
	err := chains.Read(ctx, e.cfg.Read, e.logger, "balance_at", nil, func() error {
		var err error
		wei, err = e.client.BalanceAt(ctx, common.HexToAddress(address), nil)
		return err
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get ETH balance: %w", err)
	}
	return fromWei(wei), nil
}

// SubmitPayment sends a legacy value transfer. The nonce is read from the
// pending state; "nonce too low" surfaces as a retryable conflict.
func (e *EthereumLedger) SubmitPayment(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(req.Secret, "0x"))
	if err != nil {
		return nil, &domain.LedgerError{Code: "bad_key", Message: "wallet key could not be parsed"}
	}
	from := crypto.PubkeyToAddress(privateKey.PublicKey)
	if !strings.EqualFold(from.Hex(), req.From) {
		return nil, &domain.LedgerError{Code: "bad_key", Message: "wallet key does not match source address"}
	}
	if err := e.ValidateAddress(req.To); err != nil {
		return nil, &domain.LedgerError{Code: "invalid_destination", Message: describeCode("invalid_destination"), Detail: err.Error()}
	}

	var nonce uint64
	if err := chains.Read(ctx, e.cfg.Read, e.logger, "pending_nonce", nil, func() error {
		var err error
		nonce, err = e.client.PendingNonceAt(ctx, from)
		return err
	}); err != nil {
		return nil, &domain.LedgerError{Code: "account_unavailable", Message: describeCode("account_unavailable"), Detail: err.Error()}
	}

	var gasPrice *big.Int
	if err := chains.Read(ctx, e.cfg.Read, e.logger, "gas_price", nil, func() error {
		var err error
		gasPrice, err = e.client.SuggestGasPrice(ctx)
		return err
	}); err != nil {
		return nil, &domain.LedgerError{Code: "gas_price_unavailable", Message: describeCode("gas_price_unavailable"), Detail: err.Error()}
	}
	if gasPrice.Cmp(e.cfg.MaxGasPrice) > 0 {
		gasPrice = e.cfg.MaxGasPrice
	}

	to := common.HexToAddress(req.To)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    toWei(req.Amount.Round(e.cfg.Precision)),
		Gas:      e.cfg.GasLimit,
		GasPrice: gasPrice,
	})
	signed, err := types.SignTx(tx, types.NewEIP155Signer(e.cfg.ChainID), privateKey)
	if err != nil {
		return nil, &domain.LedgerError{Code: "sign_failed", Message: describeCode("sign_failed"), Detail: err.Error()}
	}
	hash := signed.Hash().Hex()

	e.logger.Info("sending ETH",
		zap.String("from", from.Hex()),
		zap.String("to", req.To),
		zap.String("amount", req.Amount.String()),
		zap.Uint64("nonce", nonce),
		zap.String("tx_hash", hash))

	if err := e.client.SendTransaction(ctx, signed); err != nil {
		lerr := classifySendError(err, hash)
		e.logger.Warn("ETH submission rejected",
			zap.String("tx_hash", hash),
			zap.String("code", lerr.Code),
			zap.Error(err))
		return &domain.PaymentResult{Hash: hash, ResultCode: lerr.Code}, lerr
	}

	// accepted into the pool only: a later revert must still be able to fail
	// the transfer, so finality is left to reconciliation
	return &domain.PaymentResult{Hash: hash, ResultCode: "accepted"}, nil
}

// GetTransactionStatus requires the configured number of confirmations
// before reporting completed.
func (e *EthereumLedger) GetTransactionStatus(ctx context.Context, hash string) (domain.LedgerTxStatus, error) {
	var receipt *types.Receipt
	err := chains.Read(ctx, e.cfg.Read, e.logger, "receipt", isNotFound, func() error {
		var err error
		receipt, err = e.client.TransactionReceipt(ctx, common.HexToHash(hash))
		return err
	})
	if isNotFound(err) {
		return domain.LedgerTxUnknown, nil
	}
	if err != nil {
		return domain.LedgerTxUnknown, fmt.Errorf("failed to get receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return domain.LedgerTxFailed, nil
	}

	head, err := e.client.BlockNumber(ctx)
	if err != nil {
		return domain.LedgerTxUnknown, fmt.Errorf("failed to get block number: %w", err)
	}
	if receipt.BlockNumber == nil || head < receipt.BlockNumber.Uint64()+e.cfg.Confirmations {
		return domain.LedgerTxUnknown, nil
	}
	return domain.LedgerTxCompleted, nil
}

var codeMessages = map[string]string{
	"invalid_destination":   "destination is not a valid account",
	"account_unavailable":   "source account could not be loaded",
	"gas_price_unavailable": "network fee could not be estimated",
	"sign_failed":           "payment could not be signed",
	"transport":             "ledger could not be reached",
}

func describeCode(code string) string {
	if msg, ok := codeMessages[code]; ok {
		return msg
	}
	return "ledger rejected the transaction"
}

func isNotFound(err error) bool {
	return errors.Is(err, geth.NotFound)
}

func classifySendError(err error, hash string) *domain.LedgerError {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "nonce too low"):
		return &domain.LedgerError{Code: "nonce_too_low", Message: "sequence number conflict", Hash: hash, Retryable: true}
	case strings.Contains(msg, "insufficient funds"):
		return &domain.LedgerError{Code: "insufficient_funds", Message: "insufficient funds", Hash: hash}
	case strings.Contains(msg, "intrinsic gas too low"), strings.Contains(msg, "exceeds block gas limit"):
		return &domain.LedgerError{Code: "gas", Message: "gas limit rejected", Hash: hash}
	case strings.Contains(msg, "already known"):
		return &domain.LedgerError{Code: "already_known", Message: "transaction already broadcast", Hash: hash, Ambiguous: true}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &domain.LedgerError{Code: "timeout", Message: "no definitive result before local deadline", Hash: hash, Ambiguous: true}
	default:
		return &domain.LedgerError{Code: "transport", Message: describeCode("transport"), Detail: err.Error(), Hash: hash, Ambiguous: true}
	}
}

func toWei(amount decimal.Decimal) *big.Int {
	return amount.Shift(weiPlaces).BigInt()
}

func fromWei(wei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(wei, -weiPlaces)
}
