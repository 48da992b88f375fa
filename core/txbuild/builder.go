// Package txbuild assembles unsigned transaction envelopes from an account
// snapshot and a list of wallet operations, and signs them.
//
// The network passphrase is a Builder field rather than process-wide state,
// so concurrently built transactions can never be signed for the wrong network.
package txbuild

import (
	"context"
	"encoding/hex"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/stellar/go/amount"
	"github.com/stellar/go/price"
	"github.com/stellar/go/txnbuild"

	stellarwallet "github.com/marwen-abid/stellar-wallet-go"
	"github.com/marwen-abid/stellar-wallet-go/core/identity"
	"github.com/marwen-abid/stellar-wallet-go/errors"
)

const (
	// MaxMemoTextBytes is the ledger's limit for text memos.
	MaxMemoTextBytes = 28
	maxOperations    = 100
)

// MaxTrustLimit is the largest representable trustline limit.
var MaxTrustLimit = amount.StringFromInt64(math.MaxInt64)

// Builder builds and signs transactions for one network.
type Builder struct {
	NetworkPassphrase string
	BaseFee           int64
	// Timeout bounds the transaction's validity window. Zero means no upper
	// bound, which keeps Build deterministic.
	Timeout time.Duration
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithBaseFee sets the per-operation fee in stroops (default: txnbuild.MinBaseFee).
func WithBaseFee(fee int64) BuilderOption {
	return func(b *Builder) {
		b.BaseFee = fee
	}
}

// WithTimeout sets the validity window of built transactions.
func WithTimeout(d time.Duration) BuilderOption {
	return func(b *Builder) {
		b.Timeout = d
	}
}

// NewBuilder creates a Builder bound to the given network passphrase.
func NewBuilder(networkPassphrase string, opts ...BuilderOption) (*Builder, error) {
	if networkPassphrase == "" {
		return nil, errors.NewBuilderError(errors.CONFIG_INVALID, "network passphrase is required", nil)
	}
	b := &Builder{
		NetworkPassphrase: networkPassphrase,
		BaseFee:           txnbuild.MinBaseFee,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Envelope is a built transaction, signed or not. Envelopes are immutable:
// Sign returns a new one.
type Envelope struct {
	tx         *txnbuild.Transaction
	kinds      []stellarwallet.OperationKind
	passphrase string
}

// Transaction returns the underlying SDK transaction.
func (e *Envelope) Transaction() *txnbuild.Transaction {
	return e.tx
}

// Kinds returns the operation kinds in envelope order.
func (e *Envelope) Kinds() []stellarwallet.OperationKind {
	return append([]stellarwallet.OperationKind(nil), e.kinds...)
}

// SequenceNumber returns the sequence number the transaction consumes.
func (e *Envelope) SequenceNumber() int64 {
	return e.tx.SequenceNumber()
}

// SignatureCount returns how many signatures are attached.
func (e *Envelope) SignatureCount() int {
	return len(e.tx.Signatures())
}

// Base64 returns the envelope XDR. Resubmitting the same envelope reuses these bytes.
func (e *Envelope) Base64() (string, error) {
	xdr, err := e.tx.Base64()
	if err != nil {
		return "", errors.NewBuilderError(errors.BUILD_FAILED, "failed to encode transaction envelope", err)
	}
	return xdr, nil
}

// Hash returns the hex transaction hash for the envelope's network.
func (e *Envelope) Hash() (string, error) {
	h, err := e.tx.Hash(e.passphrase)
	if err != nil {
		return "", errors.NewBuilderError(errors.BUILD_FAILED, "failed to hash transaction", err)
	}
	return hex.EncodeToString(h[:]), nil
}

// Build assembles an unsigned envelope consuming snapshot.Sequence+1.
// The snapshot is not modified.
func (b *Builder) Build(snapshot *stellarwallet.AccountSnapshot, ops []stellarwallet.Operation, memo string) (*Envelope, error) {
	if snapshot == nil {
		return nil, errors.NewBuilderError(errors.BUILD_FAILED, "account snapshot is required", nil)
	}
	if len(ops) == 0 || len(ops) > maxOperations {
		return nil, errors.NewBuilderError(errors.BUILD_FAILED, fmt.Sprintf("transaction needs 1-%d operations, got %d", maxOperations, len(ops)), nil)
	}

	txMemo, err := buildMemo(memo)
	if err != nil {
		return nil, err
	}

	txOps := make([]txnbuild.Operation, 0, len(ops))
	kinds := make([]stellarwallet.OperationKind, 0, len(ops))
	for _, op := range ops {
		txOp, err := convertOperation(op)
		if err != nil {
			return nil, err
		}
		txOps = append(txOps, txOp)
		kinds = append(kinds, op.Kind())
	}

	timebounds := txnbuild.NewInfiniteTimeout()
	if b.Timeout > 0 {
		timebounds = txnbuild.NewTimeout(int64(b.Timeout / time.Second))
	}

	source := &txnbuild.SimpleAccount{AccountID: snapshot.AccountID, Sequence: snapshot.Sequence}
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        source,
		IncrementSequenceNum: true,
		Operations:           txOps,
		BaseFee:              b.BaseFee,
		Memo:                 txMemo,
		Preconditions: txnbuild.Preconditions{
			TimeBounds: timebounds,
		},
	})
	if err != nil {
		return nil, errors.NewBuilderError(errors.BUILD_FAILED, "failed to build transaction", err).
			With(errors.ContextAccount, snapshot.AccountID)
	}

	return &Envelope{tx: tx, kinds: kinds, passphrase: b.NetworkPassphrase}, nil
}

// Sign appends one signature from signer. Signing twice with the same key
// appends a duplicate signature; nothing is deduplicated.
func (b *Builder) Sign(ctx context.Context, env *Envelope, signer stellarwallet.Signer) (*Envelope, error) {
	if env == nil || signer == nil {
		return nil, errors.NewBuilderError(errors.SIGNER_ERROR, "envelope and signer are required", nil)
	}
	signed, err := signer.SignTransaction(ctx, env.tx, b.NetworkPassphrase)
	if err != nil {
		return nil, errors.NewBuilderError(errors.SIGNER_ERROR, "failed to sign transaction", err)
	}
	return &Envelope{tx: signed, kinds: env.kinds, passphrase: b.NetworkPassphrase}, nil
}

// ValidateMemo checks that memo is UTF-8 text within the ledger's size limit.
func ValidateMemo(memo string) error {
	if !utf8.ValidString(memo) {
		return errors.NewBuilderError(errors.INVALID_FORMAT, "memo must be valid UTF-8", nil)
	}
	if len(memo) > MaxMemoTextBytes {
		return errors.NewBuilderError(
			errors.MEMO_TOO_LONG,
			fmt.Sprintf("memo is %d bytes, limit is %d", len(memo), MaxMemoTextBytes),
			nil,
		)
	}
	return nil
}

// ValidateOperation checks op's amounts, price and assets as Build would,
// without needing an account snapshot.
func ValidateOperation(op stellarwallet.Operation) error {
	_, err := convertOperation(op)
	return err
}

func buildMemo(memo string) (txnbuild.Memo, error) {
	if memo == "" {
		return nil, nil
	}
	if err := ValidateMemo(memo); err != nil {
		return nil, err
	}
	return txnbuild.MemoText(memo), nil
}

func convertOperation(op stellarwallet.Operation) (txnbuild.Operation, error) {
	switch o := op.(type) {
	case stellarwallet.CreateAccount:
		bal, err := CanonicalAmount(o.StartingBalance, false)
		if err != nil {
			return nil, err
		}
		return &txnbuild.CreateAccount{Destination: o.Destination, Amount: bal}, nil

	case stellarwallet.Payment:
		amt, err := CanonicalAmount(o.Amount, false)
		if err != nil {
			return nil, err
		}
		return &txnbuild.Payment{Destination: o.Destination, Amount: amt, Asset: identity.ToTxnAsset(o.Asset)}, nil

	case stellarwallet.ChangeTrust:
		if o.Asset.IsNative() {
			return nil, errors.NewBuilderError(errors.BUILD_FAILED, "cannot change trust in the native asset", nil)
		}
		limit := MaxTrustLimit
		if o.Limit != "" {
			var err error
			if limit, err = CanonicalAmount(o.Limit, true); err != nil {
				return nil, err
			}
		}
		line, err := txnbuild.CreditAsset{Code: o.Asset.Code, Issuer: o.Asset.Issuer}.ToChangeTrustAsset()
		if err != nil {
			return nil, errors.NewBuilderError(errors.BUILD_FAILED, "invalid trustline asset", err)
		}
		return &txnbuild.ChangeTrust{Line: line, Limit: limit}, nil

	case stellarwallet.SetInflationDestination:
		dest := o.Destination
		return &txnbuild.SetOptions{InflationDestination: &dest}, nil

	case stellarwallet.ManageOffer:
		amt, err := CanonicalAmount(o.Amount, true)
		if err != nil {
			return nil, err
		}
		p, err := price.Parse(o.Price)
		if err != nil || p.N <= 0 || p.D <= 0 {
			return nil, errors.NewBuilderError(errors.INVALID_AMOUNT, fmt.Sprintf("invalid price %q", o.Price), err)
		}
		return &txnbuild.ManageSellOffer{
			Selling: identity.ToTxnAsset(o.Selling),
			Buying:  identity.ToTxnAsset(o.Buying),
			Amount:  amt,
			Price:   p,
			OfferID: o.OfferID,
		}, nil
	}

	return nil, errors.NewBuilderError(errors.BUILD_FAILED, fmt.Sprintf("unsupported operation %T", op), nil)
}

// CanonicalAmount parses a decimal amount with at most 7 fractional digits
// and returns it with exactly 7. Zero is accepted only when allowZero is set.
func CanonicalAmount(s string, allowZero bool) (string, error) {
	v, err := amount.ParseInt64(s)
	if err != nil {
		return "", errors.NewBuilderError(errors.INVALID_AMOUNT, fmt.Sprintf("invalid amount %q", s), err)
	}
	if v < 0 || (v == 0 && !allowZero) {
		return "", errors.NewBuilderError(errors.INVALID_AMOUNT, fmt.Sprintf("amount %q out of range", s), nil)
	}
	return amount.StringFromInt64(v), nil
}
