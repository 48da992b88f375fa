package sdk

import (
	"context"

	stellarwallet "github.com/marwen-abid/stellar-wallet-go"
	"github.com/marwen-abid/stellar-wallet-go/dispatch"
)

// LoadAccount dispatches an account lookup.
func (c *Client) LoadAccount(accountID string, cb stellarwallet.Callback[*stellarwallet.AccountSnapshot]) {
	dispatch.Go(c.dispatcher, "load_account", func() (*stellarwallet.AccountSnapshot, error) {
		return c.queries.LoadAccount(context.Background(), accountID)
	}, cb)
}

// LoadAccountSync loads an account and waits.
func (c *Client) LoadAccountSync(ctx context.Context, accountID string) (*stellarwallet.AccountSnapshot, error) {
	return dispatch.Await(ctx, c.dispatcher, "load_account", func() (*stellarwallet.AccountSnapshot, error) {
		return c.queries.LoadAccount(context.Background(), accountID)
	})
}

// LoadEffects dispatches a history query, most recent first. A zero limit
// uses the configured page size.
func (c *Client) LoadEffects(accountID string, limit uint, cb stellarwallet.Callback[*stellarwallet.EffectPage]) {
	dispatch.Go(c.dispatcher, "load_effects", func() (*stellarwallet.EffectPage, error) {
		return c.queries.LoadEffects(context.Background(), accountID, limit)
	}, cb)
}

// LoadEffectsSync loads history and waits.
func (c *Client) LoadEffectsSync(ctx context.Context, accountID string, limit uint) (*stellarwallet.EffectPage, error) {
	return dispatch.Await(ctx, c.dispatcher, "load_effects", func() (*stellarwallet.EffectPage, error) {
		return c.queries.LoadEffects(context.Background(), accountID, limit)
	})
}

// LoadOffers dispatches an open-offers query.
func (c *Client) LoadOffers(accountID string, cb stellarwallet.Callback[[]stellarwallet.Offer]) {
	dispatch.Go(c.dispatcher, "load_offers", func() ([]stellarwallet.Offer, error) {
		return c.queries.LoadOffers(context.Background(), accountID)
	}, cb)
}

// LoadOffersSync loads open offers and waits.
func (c *Client) LoadOffersSync(ctx context.Context, accountID string) ([]stellarwallet.Offer, error) {
	return dispatch.Await(ctx, c.dispatcher, "load_offers", func() ([]stellarwallet.Offer, error) {
		return c.queries.LoadOffers(context.Background(), accountID)
	})
}

// LoadOrderBook dispatches an order-book query for selling/buying.
func (c *Client) LoadOrderBook(buying, selling stellarwallet.Asset, cb stellarwallet.Callback[*stellarwallet.OrderBook]) {
	dispatch.Go(c.dispatcher, "load_order_book", func() (*stellarwallet.OrderBook, error) {
		return c.queries.LoadOrderBook(context.Background(), buying, selling)
	}, cb)
}

// LoadOrderBookSync loads an order book and waits.
func (c *Client) LoadOrderBookSync(ctx context.Context, buying, selling stellarwallet.Asset) (*stellarwallet.OrderBook, error) {
	return dispatch.Await(ctx, c.dispatcher, "load_order_book", func() (*stellarwallet.OrderBook, error) {
		return c.queries.LoadOrderBook(context.Background(), buying, selling)
	})
}
