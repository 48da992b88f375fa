// Package stellarwallet provides a Go client core for Stellar wallets.
// It turns wallet intents (payments, trustlines, inflation destination,
// market offers) into signed transactions submitted to Horizon, runs account,
// history and order-book queries, and delivers every outcome exactly once to
// a designated foreground context. Key storage, PIN gating and presentation
// are left to the caller.
package stellarwallet

import (
	"context"
	"fmt"
	"strings"

	"github.com/stellar/go/txnbuild"
)

// Signer is the minimal contract for authorizing transactions.
// The wallet core never stores keys; the caller provides a Signer per operation.
type Signer interface {
	// PublicKey returns the Stellar address (G...) identifying this signer.
	PublicKey() string

	// SignTransaction appends this signer's signature to tx.
	// The networkPassphrase is required for computing the correct transaction hash.
	SignTransaction(ctx context.Context, tx *txnbuild.Transaction, networkPassphrase string) (*txnbuild.Transaction, error)
}

// Session is the narrow view of the caller's session the core consumes.
// It is read once on the caller's goroutine when an operation is dispatched;
// background workers only see the captured values.
type Session interface {
	// Identity returns the current account and its signing secret.
	Identity() Identity

	// CurrentAsset returns the asset currently selected in the wallet.
	CurrentAsset() Asset
}

// Identity is an account id plus an optional secret seed.
// The seed is held in memory only and is never logged by this module.
type Identity struct {
	AccountID string
	Seed      []byte
}

// String never prints the seed.
func (i Identity) String() string {
	if len(i.Seed) == 0 {
		return fmt.Sprintf("Identity{%s}", i.AccountID)
	}
	return fmt.Sprintf("Identity{%s, seed:<redacted>}", i.AccountID)
}

// GoString keeps %#v from leaking the seed.
func (i Identity) GoString() string {
	return i.String()
}

// Wipe zeroes the seed in place.
func (i Identity) Wipe() {
	for j := range i.Seed {
		i.Seed[j] = 0
	}
}

// NativeAssetCode is the code used for lumens.
const NativeAssetCode = "native"

// Asset identifies either the native currency or an issued asset.
// Two assets are equal iff both fields match, so == is the equality test.
type Asset struct {
	Code   string
	Issuer string
}

// NativeAsset is the single native-currency descriptor.
var NativeAsset = Asset{Code: NativeAssetCode}

// IsNative reports whether the asset is the native currency.
func (a Asset) IsNative() bool {
	return a == NativeAsset
}

// String formats an asset for display.
// Native XLM returns "native", issued assets return "CODE:ISSUER".
func (a Asset) String() string {
	if a.IsNative() {
		return NativeAssetCode
	}
	return a.Code + ":" + a.Issuer
}

// ParseAssetString parses the "native" / "CODE:ISSUER" display form.
// It does not validate the issuer; use the identity resolver for that.
func ParseAssetString(s string) (Asset, bool) {
	if s == NativeAssetCode {
		return NativeAsset, true
	}
	code, issuer, ok := strings.Cut(s, ":")
	if !ok || code == "" || issuer == "" {
		return Asset{}, false
	}
	return Asset{Code: code, Issuer: issuer}, true
}

// AccountSnapshot is a point-in-time read of an account's ledger state.
// It is consumed immediately by the transaction builder.
type AccountSnapshot struct {
	AccountID            string
	Sequence             int64
	Balances             []Balance
	Thresholds           Thresholds
	InflationDestination string
	SubentryCount        int32
}

// Balance is one line of an account's balances.
type Balance struct {
	Asset   Asset
	Balance string // Decimal string, 7 fractional digits
	Limit   string // Empty for native
}

// Thresholds are the account's signing thresholds.
type Thresholds struct {
	Low    uint8
	Medium uint8
	High   uint8
}

// BalanceOf returns the balance line for the given asset.
func (s *AccountSnapshot) BalanceOf(asset Asset) (Balance, bool) {
	for _, b := range s.Balances {
		if b.Asset == asset {
			return b, true
		}
	}
	return Balance{}, false
}

// OperationKind names an operation variant.
type OperationKind string

const (
	KindCreateAccount           OperationKind = "create_account"
	KindPayment                 OperationKind = "payment"
	KindChangeTrust             OperationKind = "change_trust"
	KindSetInflationDestination OperationKind = "set_inflation_destination"
	KindManageOffer             OperationKind = "manage_offer"
)

// Operation is one of CreateAccount, Payment, ChangeTrust,
// SetInflationDestination or ManageOffer.
type Operation interface {
	Kind() OperationKind
}

// CreateAccount funds a new account with native lumens.
type CreateAccount struct {
	Destination     string
	StartingBalance string
}

// Payment sends an asset to an existing account.
type Payment struct {
	Destination string
	Asset       Asset
	Amount      string
}

// ChangeTrust creates, updates or (with a zero limit) removes a trustline.
type ChangeTrust struct {
	Asset Asset
	Limit string
}

// SetInflationDestination sets the account's inflation destination.
type SetInflationDestination struct {
	Destination string
}

// ManageOffer places, updates or (with a zero amount) cancels a sell offer.
// OfferID zero creates a new offer.
type ManageOffer struct {
	Selling Asset
	Buying  Asset
	Amount  string
	Price   string
	OfferID int64
}

func (CreateAccount) Kind() OperationKind           { return KindCreateAccount }
func (Payment) Kind() OperationKind                 { return KindPayment }
func (ChangeTrust) Kind() OperationKind             { return KindChangeTrust }
func (SetInflationDestination) Kind() OperationKind { return KindSetInflationDestination }
func (ManageOffer) Kind() OperationKind             { return KindManageOffer }

// Effect is a recorded consequence of an applied operation.
type Effect struct {
	ID          string
	PagingToken string
	Type        string
	Account     string
	Asset       Asset
	Amount      string // Set for credit/debit effects
}

// EffectPage holds effects most-recent-first.
type EffectPage struct {
	Account string
	Records []Effect
}

// Offer is an open offer owned by an account.
type Offer struct {
	ID      string
	Seller  string
	Selling Asset
	Buying  Asset
	Amount  string
	Price   string
}

// OrderBookRow is one price level of an order book.
type OrderBookRow struct {
	Price  string
	Amount string
}

// OrderBook is a snapshot of the order book for a pair.
// Asks are ordered by ascending price, bids by descending price.
type OrderBook struct {
	Base    Asset
	Counter Asset
	Asks    []OrderBookRow
	Bids    []OrderBookRow
}

// SubmissionOutcome is the result of one submission attempt.
type SubmissionOutcome struct {
	Successful      bool
	Hash            string
	Ledger          int32
	Operation       OperationKind
	TransactionCode string
	OperationCodes  []string
}

// FirstOperationCode returns the first operation result code, if any.
func (o SubmissionOutcome) FirstOperationCode() string {
	if len(o.OperationCodes) == 0 {
		return ""
	}
	return o.OperationCodes[0]
}

// Result is the terminal value of a dispatched operation: exactly one of
// Value or Err is meaningful.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the operation succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Callback receives the terminal Result of a dispatched operation.
// It is invoked exactly once, on the designated foreground context.
type Callback[T any] func(Result[T])
