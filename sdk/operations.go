package sdk

import (
	"context"

	stellarwallet "github.com/marwen-abid/stellar-wallet-go"
	"github.com/marwen-abid/stellar-wallet-go/core/identity"
	"github.com/marwen-abid/stellar-wallet-go/core/txbuild"
	"github.com/marwen-abid/stellar-wallet-go/dispatch"
	"github.com/marwen-abid/stellar-wallet-go/errors"
	"github.com/marwen-abid/stellar-wallet-go/signers"
	"github.com/marwen-abid/stellar-wallet-go/submission"
)

// PaymentRequest sends Amount to Destination. A nil Asset pays in the
// session's current asset. If the destination does not exist and the asset
// is native, the payment becomes a CreateAccount with Amount as the
// starting balance.
type PaymentRequest struct {
	Destination string
	Asset       *stellarwallet.Asset
	Amount      string
	Memo        string
}

// TrustRequest creates, updates or removes a trustline. A nil Asset uses the
// session's current asset. An empty Limit trusts up to the maximum; Remove
// sets the limit to zero.
type TrustRequest struct {
	Asset  *stellarwallet.Asset
	Limit  string
	Remove bool
}

// OfferRequest places or updates a sell offer. OfferID zero creates a new
// offer.
type OfferRequest struct {
	Selling stellarwallet.Asset
	Buying  stellarwallet.Asset
	Amount  string
	Price   string
	OfferID int64
	Memo    string
}

const zeroAmount = "0.0000000"

// OutcomeCallback receives the terminal outcome of a send-style operation.
type OutcomeCallback = stellarwallet.Callback[stellarwallet.SubmissionOutcome]

// SendPayment dispatches a payment; cb receives the outcome on the loop.
func (c *Client) SendPayment(session stellarwallet.Session, req PaymentRequest, cb OutcomeCallback) {
	cs := capture(session)
	op := paymentOp(cs, req)
	c.submitAsync(cs, op, req.Memo, cb)
}

// SendPaymentSync sends a payment and waits for its outcome.
func (c *Client) SendPaymentSync(ctx context.Context, session stellarwallet.Session, req PaymentRequest) (stellarwallet.SubmissionOutcome, error) {
	cs := capture(session)
	return c.submitSync(ctx, cs, paymentOp(cs, req), req.Memo)
}

// ChangeTrust dispatches a trustline change.
func (c *Client) ChangeTrust(session stellarwallet.Session, req TrustRequest, cb OutcomeCallback) {
	cs := capture(session)
	c.submitAsync(cs, trustOp(cs, req), "", cb)
}

// ChangeTrustSync changes a trustline and waits for the outcome.
func (c *Client) ChangeTrustSync(ctx context.Context, session stellarwallet.Session, req TrustRequest) (stellarwallet.SubmissionOutcome, error) {
	cs := capture(session)
	return c.submitSync(ctx, cs, trustOp(cs, req), "")
}

// SetInflationDestination dispatches a set-options operation pointing the
// account's inflation vote at destination.
func (c *Client) SetInflationDestination(session stellarwallet.Session, destination string, cb OutcomeCallback) {
	cs := capture(session)
	c.submitAsync(cs, stellarwallet.SetInflationDestination{Destination: destination}, "", cb)
}

// SetInflationDestinationSync sets the inflation destination and waits.
func (c *Client) SetInflationDestinationSync(ctx context.Context, session stellarwallet.Session, destination string) (stellarwallet.SubmissionOutcome, error) {
	cs := capture(session)
	return c.submitSync(ctx, cs, stellarwallet.SetInflationDestination{Destination: destination}, "")
}

// ManageOffer dispatches a sell offer.
func (c *Client) ManageOffer(session stellarwallet.Session, req OfferRequest, cb OutcomeCallback) {
	cs := capture(session)
	c.submitAsync(cs, offerOp(req), req.Memo, cb)
}

// ManageOfferSync places or updates an offer and waits.
func (c *Client) ManageOfferSync(ctx context.Context, session stellarwallet.Session, req OfferRequest) (stellarwallet.SubmissionOutcome, error) {
	cs := capture(session)
	return c.submitSync(ctx, cs, offerOp(req), req.Memo)
}

// CancelOffer deletes the offer identified by req.OfferID.
func (c *Client) CancelOffer(session stellarwallet.Session, req OfferRequest, cb OutcomeCallback) {
	cs := capture(session)
	c.submitAsync(cs, cancelOp(req), req.Memo, cb)
}

// CancelOfferSync deletes an offer and waits.
func (c *Client) CancelOfferSync(ctx context.Context, session stellarwallet.Session, req OfferRequest) (stellarwallet.SubmissionOutcome, error) {
	cs := capture(session)
	return c.submitSync(ctx, cs, cancelOp(req), req.Memo)
}

func paymentOp(cs captured, req PaymentRequest) stellarwallet.Payment {
	asset := cs.asset
	if req.Asset != nil {
		asset = *req.Asset
	}
	return stellarwallet.Payment{Destination: req.Destination, Asset: asset, Amount: req.Amount}
}

func trustOp(cs captured, req TrustRequest) stellarwallet.ChangeTrust {
	asset := cs.asset
	if req.Asset != nil {
		asset = *req.Asset
	}
	limit := req.Limit
	if req.Remove {
		limit = "0"
	}
	return stellarwallet.ChangeTrust{Asset: asset, Limit: limit}
}

func offerOp(req OfferRequest) stellarwallet.ManageOffer {
	return stellarwallet.ManageOffer{
		Selling: req.Selling,
		Buying:  req.Buying,
		Amount:  req.Amount,
		Price:   req.Price,
		OfferID: req.OfferID,
	}
}

func cancelOp(req OfferRequest) stellarwallet.ManageOffer {
	op := offerOp(req)
	op.Amount = "0"
	if op.Price == "" {
		op.Price = "1"
	}
	return op
}

func (c *Client) submitAsync(cs captured, op stellarwallet.Operation, memo string, cb OutcomeCallback) {
	dispatch.Go(c.dispatcher, string(op.Kind()), func() (stellarwallet.SubmissionOutcome, error) {
		return c.execute(context.Background(), cs, op, memo)
	}, cb)
}

func (c *Client) submitSync(ctx context.Context, cs captured, op stellarwallet.Operation, memo string) (stellarwallet.SubmissionOutcome, error) {
	return dispatch.Await(ctx, c.dispatcher, string(op.Kind()), func() (stellarwallet.SubmissionOutcome, error) {
		return c.execute(context.Background(), cs, op, memo)
	})
}

// execute runs on a worker with values captured at dispatch.
func (c *Client) execute(ctx context.Context, cs captured, op stellarwallet.Operation, memo string) (stellarwallet.SubmissionOutcome, error) {
	defer cs.identity.Wipe()

	if offer, ok := op.(stellarwallet.ManageOffer); ok && offer.OfferID <= 0 {
		if amt, err := txbuild.CanonicalAmount(offer.Amount, true); err == nil && amt == zeroAmount {
			return stellarwallet.SubmissionOutcome{}, errors.NewSubmitError(errors.BUILD_FAILED, "offer id is required to cancel an offer", nil)
		}
	}

	signer, err := c.signerFor(cs.identity)
	if err != nil {
		return stellarwallet.SubmissionOutcome{}, err
	}

	outcome, err := c.pipeline.Execute(ctx, submission.Request{
		Source:    cs.identity.AccountID,
		Signer:    signer,
		Operation: op,
		Memo:      memo,
		Ambiguous: c.ambiguous,
	})
	if outcome == nil {
		return stellarwallet.SubmissionOutcome{}, err
	}
	return *outcome, err
}

func (c *Client) signerFor(id stellarwallet.Identity) (stellarwallet.Signer, error) {
	if len(id.Seed) == 0 {
		if c.signer == nil {
			return nil, errors.NewIdentityError(errors.SIGNER_ERROR, "session has no secret seed and no signer is configured", nil).
				With(errors.ContextAccount, id.AccountID)
		}
		return c.signer, nil
	}
	kp, err := identity.ResolveIdentity(id)
	if err != nil {
		return nil, err
	}
	return signers.FromKeyPair(kp), nil
}
