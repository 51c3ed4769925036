package escrow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"peerlend/loan"
)

// Backend is the subset of the Ethereum RPC the client depends on.
// *ethclient.Client satisfies it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
}

// Dial initialises an Ethereum RPC client for the provided endpoint.
func Dial(endpoint string) (*ethclient.Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("escrow: rpc endpoint required")
	}
	return ethclient.Dial(trimmed)
}

// LoanState is the authoritative on-chain record returned by the loans(id)
// accessor.
type LoanState struct {
	ID           uint64
	Lender       common.Address
	Borrower     common.Address
	Principal    *big.Int
	InterestRate uint64
	Collateral   *big.Int
	DueDate      int64
	Status       loan.Status
}

// Client drives the loan escrow contract: view reads, the lifecycle
// calls, and receipt confirmation.
type Client struct {
	backend       Backend
	address       common.Address
	abi           abi.ABI
	confirmations uint64
	pollInterval  time.Duration
	log           *slog.Logger
}

// ClientOption customises the client instance.
type ClientOption func(*Client)

// WithConfirmations sets the number of blocks a receipt must be buried under
// before WaitMined reports it.
func WithConfirmations(n uint64) ClientOption {
	return func(c *Client) { c.confirmations = n }
}

// WithPollInterval configures the receipt polling cadence.
func WithPollInterval(interval time.Duration) ClientOption {
	return func(c *Client) { c.pollInterval = interval }
}

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// NewClient constructs a contract client bound to the given address.
func NewClient(backend Backend, contract common.Address, opts ...ClientOption) (*Client, error) {
	if backend == nil {
		return nil, fmt.Errorf("escrow: backend required")
	}
	if (contract == common.Address{}) {
		return nil, fmt.Errorf("escrow: contract address required")
	}
	parsed, err := abi.JSON(strings.NewReader(loanEscrowABI))
	if err != nil {
		return nil, fmt.Errorf("escrow: parse abi: %w", err)
	}
	client := &Client{
		backend:      backend,
		address:      contract,
		abi:          parsed,
		pollInterval: 2 * time.Second,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.pollInterval <= 0 {
		client.pollInterval = 2 * time.Second
	}
	return client, nil
}

// Loan fetches the authoritative state of a single loan. An all-zero lender
// address means the slot has never been written.
func (c *Client) Loan(ctx context.Context, id uint64) (*LoanState, error) {
	data, err := c.abi.Pack("loans", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, fmt.Errorf("escrow: pack loans call: %w", err)
	}
	raw, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("escrow: call loans(%d): %w", id, err)
	}
	out, err := c.abi.Unpack("loans", raw)
	if err != nil {
		return nil, fmt.Errorf("escrow: unpack loans(%d): %w", id, err)
	}
	if len(out) != 7 {
		return nil, fmt.Errorf("escrow: loans(%d) returned %d fields", id, len(out))
	}
	lender := out[0].(common.Address)
	if (lender == common.Address{}) {
		return nil, fmt.Errorf("%w: id %d", ErrLoanNotFound, id)
	}
	interest := out[3].(*big.Int)
	status := loan.Status(out[6].(uint8))
	if !status.Valid() {
		return nil, fmt.Errorf("escrow: loans(%d) carries invalid status %d", id, out[6].(uint8))
	}
	return &LoanState{
		ID:           id,
		Lender:       lender,
		Borrower:     out[1].(common.Address),
		Principal:    out[2].(*big.Int),
		InterestRate: interest.Uint64(),
		Collateral:   out[4].(*big.Int),
		DueDate:      out[5].(*big.Int).Int64(),
		Status:       status,
	}, nil
}

// CreateLoan publishes an offer, escrowing the principal as transmitted
// value.
func (c *Client) CreateLoan(ctx context.Context, signer Signer, terms loan.Terms) (common.Hash, error) {
	if err := terms.Validate(); err != nil {
		return common.Hash{}, err
	}
	return c.transact(ctx, signer, terms.Principal, "createLoan",
		terms.Principal,
		new(big.Int).SetUint64(terms.InterestRate),
		terms.Collateral,
		big.NewInt(terms.Duration),
	)
}

// AcceptLoan commits the caller as borrower, escrowing the collateral.
func (c *Client) AcceptLoan(ctx context.Context, signer Signer, id uint64, collateral *big.Int) (common.Hash, error) {
	if collateral == nil || collateral.Sign() <= 0 {
		return common.Hash{}, fmt.Errorf("escrow: collateral value required")
	}
	return c.transact(ctx, signer, collateral, "acceptLoan", new(big.Int).SetUint64(id))
}

// RepayLoan settles the debt, transmitting principal plus interest.
func (c *Client) RepayLoan(ctx context.Context, signer Signer, id uint64, payment *big.Int) (common.Hash, error) {
	if payment == nil || payment.Sign() <= 0 {
		return common.Hash{}, fmt.Errorf("escrow: repayment value required")
	}
	return c.transact(ctx, signer, payment, "repayLoan", new(big.Int).SetUint64(id))
}

// ClaimCollateral forfeits the borrower's collateral to the lender on a
// defaulted loan. No value is transmitted.
func (c *Client) ClaimCollateral(ctx context.Context, signer Signer, id uint64) (common.Hash, error) {
	return c.transact(ctx, signer, nil, "claimCollateral", new(big.Int).SetUint64(id))
}

// CancelLoan retires an offer nobody has accepted, returning the escrowed
// principal to the lender.
func (c *Client) CancelLoan(ctx context.Context, signer Signer, id uint64) (common.Hash, error) {
	return c.transact(ctx, signer, nil, "cancelLoan", new(big.Int).SetUint64(id))
}

// BatchCheckOverdue asks the contract to mark every past-due loan in the
// batch as overdue.
func (c *Client) BatchCheckOverdue(ctx context.Context, signer Signer, ids []uint64) (common.Hash, error) {
	if len(ids) == 0 {
		return common.Hash{}, fmt.Errorf("escrow: empty overdue batch")
	}
	arg := make([]*big.Int, len(ids))
	for i, id := range ids {
		arg[i] = new(big.Int).SetUint64(id)
	}
	return c.transact(ctx, signer, nil, "batchCheckOverdue", arg)
}

func (c *Client) transact(ctx context.Context, signer Signer, value *big.Int, method string, args ...interface{}) (common.Hash, error) {
	if signer == nil {
		return common.Hash{}, ErrNoSigner
	}
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("escrow: pack %s: %w", method, err)
	}
	if value == nil {
		value = big.NewInt(0)
	}
	from := signer.Address()
	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("escrow: fetch nonce: %w", err)
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("escrow: fetch gas price: %w", err)
	}
	msg := ethereum.CallMsg{From: from, To: &c.address, Value: value, Data: data}
	gas, err := c.backend.EstimateGas(ctx, msg)
	if err != nil {
		// Estimation executes the call against pending state, so a failure
		// here is the contract rejecting the transition before any gas is
		// spent.
		return common.Hash{}, fmt.Errorf("%w: %s: %v", ErrReverted, method, err)
	}
	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("escrow: fetch chain id: %w", err)
	}
	tx := gethtypes.NewTransaction(nonce, c.address, value, gas, gasPrice, data)
	signed, err := signer.SignTx(tx, chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("escrow: sign %s: %w", method, err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("escrow: send %s: %w", method, err)
	}
	hash := signed.Hash()
	c.log.Info("escrow transaction submitted", "method", method, "tx", hash.Hex(), "value", value.String())
	return hash, nil
}

// WaitMined polls until the transaction is included with the configured
// confirmation depth. It returns the receipt on success, ErrReverted when the
// receipt carries a failed status, and the context error when the caller's
// deadline expires first. A deadline expiry says nothing about the eventual
// outcome.
func (c *Client) WaitMined(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		receipt, err := c.backend.TransactionReceipt(ctx, txHash)
		switch {
		case err == nil && receipt != nil:
			confirmed, cErr := c.confirmed(ctx, receipt)
			if cErr != nil {
				return nil, cErr
			}
			if confirmed {
				if receipt.Status != gethtypes.ReceiptStatusSuccessful {
					return receipt, fmt.Errorf("%w: tx %s", ErrReverted, txHash.Hex())
				}
				return receipt, nil
			}
		case errors.Is(err, ethereum.NotFound):
			// Not yet included, keep polling.
		case err != nil:
			return nil, fmt.Errorf("escrow: fetch receipt: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) confirmed(ctx context.Context, receipt *gethtypes.Receipt) (bool, error) {
	if c.confirmations == 0 {
		return true, nil
	}
	header, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("escrow: fetch head: %w", err)
	}
	if header == nil || header.Number == nil || receipt.BlockNumber == nil {
		return false, fmt.Errorf("escrow: block metadata unavailable")
	}
	if header.Number.Cmp(receipt.BlockNumber) < 0 {
		return false, nil
	}
	depth := new(big.Int).Sub(header.Number, receipt.BlockNumber)
	depth.Add(depth, big.NewInt(1))
	return depth.Cmp(new(big.Int).SetUint64(c.confirmations)) >= 0, nil
}
