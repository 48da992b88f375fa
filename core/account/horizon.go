// Package account implements read-only ledger queries against Horizon:
// account state, effects history, open offers and order books.
// None of these have side effects on the ledger, so all are safe to retry.
package account

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	log "github.com/sirupsen/logrus"
	"github.com/stellar/go-stellar-sdk/clients/horizonclient"
	hProtocol "github.com/stellar/go-stellar-sdk/protocols/horizon"
	"github.com/stellar/go-stellar-sdk/protocols/horizon/effects"

	stellarwallet "github.com/marwen-abid/stellar-wallet-go"
	"github.com/marwen-abid/stellar-wallet-go/core/identity"
	"github.com/marwen-abid/stellar-wallet-go/core/net"
	"github.com/marwen-abid/stellar-wallet-go/errors"
)

const (
	// DefaultEffectsLimit is the history page size used when none is given.
	DefaultEffectsLimit = 10
	maxPageLimit        = 200
	orderBookDepth      = 20
)

// Service runs account queries against a Horizon client.
type Service struct {
	client       horizonclient.ClientInterface
	effectsLimit uint
	logger       *log.Entry
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithEffectsLimit sets the default history page size (default: 10, max: 200).
// Zero keeps the default.
func WithEffectsLimit(n uint) ServiceOption {
	return func(s *Service) {
		s.effectsLimit = n
	}
}

// WithLogger sets the logger used for query diagnostics.
func WithLogger(l *log.Entry) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService creates a query Service backed by any Horizon client implementation.
func NewService(client horizonclient.ClientInterface, opts ...ServiceOption) *Service {
	s := &Service{
		client:       client,
		effectsLimit: DefaultEffectsLimit,
		logger:       log.NewEntry(log.StandardLogger()),
	}
	for _, opt := range opts {
		opt(s)
	}
	switch {
	case s.effectsLimit == 0:
		s.effectsLimit = DefaultEffectsLimit
	case s.effectsLimit > maxPageLimit:
		s.effectsLimit = maxPageLimit
	}
	return s
}

// NewHorizonService creates a query Service for the given Horizon URL over httpClient.
func NewHorizonService(horizonURL string, httpClient *net.Client, opts ...ServiceOption) *Service {
	return NewService(net.NewHorizon(horizonURL, httpClient), opts...)
}

// LoadAccount returns a fresh snapshot of the account.
// A missing account yields ACCOUNT_NOT_FOUND; an untyped server failure
// yields AMBIGUOUS_RESPONSE.
func (s *Service) LoadAccount(ctx context.Context, accountID string) (*stellarwallet.AccountSnapshot, error) {
	if _, err := identity.ResolveAccountID(accountID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewQueryError(errors.NETWORK_ERROR, "query cancelled", err)
	}

	acct, err := s.client.AccountDetail(horizonclient.AccountRequest{AccountID: accountID})
	if err != nil {
		s.logger.WithField("account", accountID).WithError(err).Debug("account lookup failed")
		return nil, classified(err, accountID)
	}

	seq, err := acct.GetSequenceNumber()
	if err != nil {
		return nil, errors.NewQueryError(errors.SERVER_ERROR, "invalid sequence number in account response", err).
			With(errors.ContextAccount, accountID)
	}

	snapshot := &stellarwallet.AccountSnapshot{
		AccountID: accountID,
		Sequence:  seq,
		Thresholds: stellarwallet.Thresholds{
			Low:    acct.Thresholds.LowThreshold,
			Medium: acct.Thresholds.MedThreshold,
			High:   acct.Thresholds.HighThreshold,
		},
		InflationDestination: acct.InflationDestination,
		SubentryCount:        acct.SubentryCount,
	}
	for _, b := range acct.Balances {
		if b.Type == "liquidity_pool_shares" {
			continue
		}
		snapshot.Balances = append(snapshot.Balances, stellarwallet.Balance{
			Asset:   assetFromParts(b.Type, b.Code, b.Issuer),
			Balance: b.Balance,
			Limit:   b.Limit,
		})
	}

	return snapshot, nil
}

// LoadEffects returns at most limit effects for the account, most recent first.
// A zero limit uses the configured page size.
func (s *Service) LoadEffects(ctx context.Context, accountID string, limit uint) (*stellarwallet.EffectPage, error) {
	if _, err := identity.ResolveAccountID(accountID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewQueryError(errors.NETWORK_ERROR, "query cancelled", err)
	}
	if limit == 0 {
		limit = s.effectsLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	page, err := s.client.Effects(horizonclient.EffectRequest{
		ForAccount: accountID,
		Order:      horizonclient.OrderDesc,
		Limit:      limit,
	})
	if err != nil {
		return nil, classified(err, accountID)
	}

	records := page.Embedded.Records
	if uint(len(records)) > limit {
		records = records[:limit]
	}

	result := &stellarwallet.EffectPage{
		Account: accountID,
		Records: make([]stellarwallet.Effect, 0, len(records)),
	}
	for _, e := range records {
		result.Records = append(result.Records, convertEffect(accountID, e))
	}
	return result, nil
}

// LoadOffers returns the open offers owned by the account, in no particular order.
func (s *Service) LoadOffers(ctx context.Context, accountID string) ([]stellarwallet.Offer, error) {
	if _, err := identity.ResolveAccountID(accountID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewQueryError(errors.NETWORK_ERROR, "query cancelled", err)
	}

	page, err := s.client.Offers(horizonclient.OfferRequest{ForAccount: accountID, Limit: maxPageLimit})
	if err != nil {
		return nil, classified(err, accountID)
	}

	offers := make([]stellarwallet.Offer, 0, len(page.Embedded.Records))
	for _, o := range page.Embedded.Records {
		offers = append(offers, convertOffer(o))
	}
	return offers, nil
}

// LoadOrderBook returns the order book for selling/buying. The base asset is
// the selling asset; asks are sorted by ascending price and bids by
// descending price.
func (s *Service) LoadOrderBook(ctx context.Context, buying, selling stellarwallet.Asset) (*stellarwallet.OrderBook, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewQueryError(errors.NETWORK_ERROR, "query cancelled", err)
	}

	req := horizonclient.OrderBookRequest{Limit: orderBookDepth}
	req.SellingAssetType, req.SellingAssetCode, req.SellingAssetIssuer = requestAsset(selling)
	req.BuyingAssetType, req.BuyingAssetCode, req.BuyingAssetIssuer = requestAsset(buying)

	summary, err := s.client.OrderBook(req)
	if err != nil {
		return nil, classified(err, "")
	}

	book := &stellarwallet.OrderBook{
		Base:    selling,
		Counter: buying,
		Asks:    convertLevels(summary.Asks),
		Bids:    convertLevels(summary.Bids),
	}
	sortByPrice(book.Asks, true)
	sortByPrice(book.Bids, false)
	return book, nil
}

func classified(err error, accountID string) error {
	cerr := net.Classify(err)
	var werr *errors.WalletError
	if accountID != "" && errors.As(cerr, &werr) {
		werr.With(errors.ContextAccount, accountID)
	}
	return cerr
}

func assetFromParts(assetType, code, issuer string) stellarwallet.Asset {
	if assetType == "native" {
		return stellarwallet.NativeAsset
	}
	return stellarwallet.Asset{Code: code, Issuer: issuer}
}

func requestAsset(a stellarwallet.Asset) (horizonclient.AssetType, string, string) {
	switch {
	case a.IsNative():
		return horizonclient.AssetTypeNative, "", ""
	case len(a.Code) <= 4:
		return horizonclient.AssetType4, a.Code, a.Issuer
	default:
		return horizonclient.AssetType12, a.Code, a.Issuer
	}
}

func convertEffect(accountID string, e effects.Effect) stellarwallet.Effect {
	out := stellarwallet.Effect{
		ID:          e.GetID(),
		PagingToken: e.PagingToken(),
		Type:        e.GetType(),
		Account:     accountID,
	}
	switch v := e.(type) {
	case effects.AccountCredited:
		out.Asset = assetFromParts(v.Asset.Type, v.Asset.Code, v.Asset.Issuer)
		out.Amount = v.Amount
	case effects.AccountDebited:
		out.Asset = assetFromParts(v.Asset.Type, v.Asset.Code, v.Asset.Issuer)
		out.Amount = v.Amount
	case effects.AccountCreated:
		out.Asset = stellarwallet.NativeAsset
		out.Amount = v.StartingBalance
	}
	return out
}

func convertOffer(o hProtocol.Offer) stellarwallet.Offer {
	return stellarwallet.Offer{
		ID:      fmt.Sprint(o.ID),
		Seller:  o.Seller,
		Selling: assetFromParts(o.Selling.Type, o.Selling.Code, o.Selling.Issuer),
		Buying:  assetFromParts(o.Buying.Type, o.Buying.Code, o.Buying.Issuer),
		Amount:  o.Amount,
		Price:   o.Price,
	}
}

func convertLevels(levels []hProtocol.PriceLevel) []stellarwallet.OrderBookRow {
	rows := make([]stellarwallet.OrderBookRow, 0, len(levels))
	for _, l := range levels {
		rows = append(rows, stellarwallet.OrderBookRow{Price: l.Price, Amount: l.Amount})
	}
	return rows
}

// sortByPrice orders rows by exact decimal price. Rows with unparsable
// prices keep their relative order at the end.
func sortByPrice(rows []stellarwallet.OrderBookRow, ascending bool) {
	parsed := make(map[string]*big.Rat, len(rows))
	for _, r := range rows {
		if v, ok := new(big.Rat).SetString(r.Price); ok {
			parsed[r.Price] = v
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		pi, iok := parsed[rows[i].Price]
		pj, jok := parsed[rows[j].Price]
		if !iok || !jok {
			return iok && !jok
		}
		if ascending {
			return pi.Cmp(pj) < 0
		}
		return pi.Cmp(pj) > 0
	})
}
