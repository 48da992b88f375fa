package sdk

import (
	"context"
	"io"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stellar/go-stellar-sdk/clients/horizonclient"
	hProtocol "github.com/stellar/go-stellar-sdk/protocols/horizon"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	stellarwallet "github.com/marwen-abid/stellar-wallet-go"
	"github.com/marwen-abid/stellar-wallet-go/config"
	"github.com/marwen-abid/stellar-wallet-go/errors"
	"github.com/marwen-abid/stellar-wallet-go/signers"
)

type harness struct {
	client   *Client
	hmock    *horizonclient.MockClient
	source   *keypair.Full
	session  *StaticSession
	captured []string
}

func quietLogger() *log.Entry {
	l := log.New()
	l.SetOutput(io.Discard)
	return log.NewEntry(l)
}

func newHarness(t *testing.T, opts ...ClientOption) *harness {
	t.Helper()
	h := &harness{
		hmock:  &horizonclient.MockClient{},
		source: keypair.MustRandom(),
	}
	h.session = NewStaticSession(
		stellarwallet.Identity{AccountID: h.source.Address(), Seed: []byte(h.source.Seed())},
		stellarwallet.NativeAsset,
	)

	opts = append([]ClientOption{WithHorizonClients(h.hmock, h.hmock), WithLogger(quietLogger())}, opts...)
	client, err := NewClient(config.Default(), opts...)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	h.client = client

	h.hmock.On("AccountDetail", horizonclient.AccountRequest{AccountID: h.source.Address()}).
		Return(hProtocol.Account{AccountID: h.source.Address(), Sequence: 100}, nil)
	return h
}

func (h *harness) existing(id string) {
	h.hmock.On("AccountDetail", horizonclient.AccountRequest{AccountID: id}).
		Return(hProtocol.Account{AccountID: id, Sequence: 1}, nil)
}

func (h *harness) acceptSubmissions() {
	h.hmock.On("SubmitTransactionXDR", mock.Anything).
		Run(func(args mock.Arguments) { h.captured = append(h.captured, args.String(0)) }).
		Return(hProtocol.Transaction{Successful: true, Hash: "feed", Ledger: 9}, nil)
}

func (h *harness) submittedOp(t *testing.T, i int) txnbuild.Operation {
	t.Helper()
	require.Greater(t, len(h.captured), i)
	parsed, err := txnbuild.TransactionFromXDR(h.captured[i])
	require.NoError(t, err)
	tx, ok := parsed.Transaction()
	require.True(t, ok)
	require.Len(t, tx.Operations(), 1)
	return tx.Operations()[0]
}

// runUntil runs the client loop on the test goroutine until done reports true.
func runUntil(t *testing.T, c *Client, done func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !done() {
		require.True(t, time.Now().Before(deadline), "callback not delivered")
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		_ = c.Loop().Run(ctx)
		cancel()
	}
}

func TestSendPaymentDeliversOnce(t *testing.T) {
	h := newHarness(t)
	dest := keypair.MustRandom().Address()
	h.existing(dest)
	h.acceptSubmissions()

	calls := 0
	var got stellarwallet.Result[stellarwallet.SubmissionOutcome]
	h.client.SendPayment(h.session, PaymentRequest{Destination: dest, Amount: "10.5"}, func(res stellarwallet.Result[stellarwallet.SubmissionOutcome]) {
		calls++
		got = res
	})

	runUntil(t, h.client, func() bool { return calls > 0 })
	h.client.Close()
	_ = h.client.Loop().Run(canceled())

	assert.Equal(t, 1, calls)
	require.True(t, got.OK(), "%v", got.Err)
	assert.True(t, got.Value.Successful)
	assert.Equal(t, stellarwallet.KindPayment, got.Value.Operation)

	payment, ok := h.submittedOp(t, 0).(*txnbuild.Payment)
	require.True(t, ok)
	assert.Equal(t, "10.5000000", payment.Amount)
}

func TestSessionValuesAreCapturedAtDispatch(t *testing.T) {
	h := newHarness(t)
	dest := keypair.MustRandom().Address()
	h.existing(dest)
	h.acceptSubmissions()
	seed := []byte(h.source.Seed())

	done := false
	h.client.SendPayment(h.session, PaymentRequest{Destination: dest, Amount: "1"}, func(stellarwallet.Result[stellarwallet.SubmissionOutcome]) {
		done = true
	})
	h.session.SelectAsset(stellarwallet.Asset{Code: "USD", Issuer: keypair.MustRandom().Address()})

	runUntil(t, h.client, func() bool { return done })

	payment, ok := h.submittedOp(t, 0).(*txnbuild.Payment)
	require.True(t, ok)
	assert.Equal(t, txnbuild.NativeAsset{}, payment.Asset)
	assert.Equal(t, seed, h.session.Identity().Seed, "session seed must not be wiped")
}

func TestChangeTrustRemove(t *testing.T) {
	h := newHarness(t)
	h.acceptSubmissions()
	usd := stellarwallet.Asset{Code: "USD", Issuer: keypair.MustRandom().Address()}

	outcome, err := h.client.ChangeTrustSync(context.Background(), h.session, TrustRequest{Asset: &usd, Remove: true})
	require.NoError(t, err)
	assert.Equal(t, stellarwallet.KindChangeTrust, outcome.Operation)

	ct, ok := h.submittedOp(t, 0).(*txnbuild.ChangeTrust)
	require.True(t, ok)
	assert.Equal(t, "0.0000000", ct.Limit)
}

func TestCancelOffer(t *testing.T) {
	h := newHarness(t)
	h.acceptSubmissions()
	usd := stellarwallet.Asset{Code: "USD", Issuer: keypair.MustRandom().Address()}

	_, err := h.client.CancelOfferSync(context.Background(), h.session, OfferRequest{Selling: stellarwallet.NativeAsset, Buying: usd})
	assert.True(t, errors.HasCode(err, errors.BUILD_FAILED))

	_, err = h.client.CancelOfferSync(context.Background(), h.session,
		OfferRequest{Selling: stellarwallet.NativeAsset, Buying: usd, OfferID: 42, Price: "0.5"})
	require.NoError(t, err)

	offer, ok := h.submittedOp(t, 0).(*txnbuild.ManageSellOffer)
	require.True(t, ok)
	assert.Equal(t, "0.0000000", offer.Amount)
	assert.Equal(t, int64(42), offer.OfferID)
}

func TestSetInflationDestinationSync(t *testing.T) {
	h := newHarness(t)
	h.acceptSubmissions()
	dest := keypair.MustRandom().Address()

	outcome, err := h.client.SetInflationDestinationSync(context.Background(), h.session, dest)
	require.NoError(t, err)
	assert.Equal(t, "feed", outcome.Hash)

	setOpts, ok := h.submittedOp(t, 0).(*txnbuild.SetOptions)
	require.True(t, ok)
	assert.Equal(t, dest, *setOpts.InflationDestination)
}

func TestExternalSigner(t *testing.T) {
	kp := keypair.MustRandom()
	remote := signers.FromCallback(kp.Address(), func(ctx context.Context, hash [32]byte) (xdr.DecoratedSignature, error) {
		return kp.SignDecorated(hash[:])
	})

	h := newHarness(t, WithSigner(remote))
	h.hmock.On("AccountDetail", horizonclient.AccountRequest{AccountID: kp.Address()}).
		Return(hProtocol.Account{AccountID: kp.Address(), Sequence: 7}, nil)
	h.acceptSubmissions()

	watchOnly := NewStaticSession(stellarwallet.Identity{AccountID: kp.Address()}, stellarwallet.NativeAsset)
	_, err := h.client.SetInflationDestinationSync(context.Background(), watchOnly, kp.Address())
	require.NoError(t, err)
	require.Len(t, h.captured, 1)

	noSigner := newHarness(t)
	_, err = noSigner.client.SetInflationDestinationSync(context.Background(), watchOnly, kp.Address())
	assert.True(t, errors.HasCode(err, errors.SIGNER_ERROR))
}

func TestQueries(t *testing.T) {
	h := newHarness(t)

	snap, err := h.client.LoadAccountSync(context.Background(), h.source.Address())
	require.NoError(t, err)
	assert.Equal(t, int64(100), snap.Sequence)

	var page hProtocol.OffersPage
	page.Embedded.Records = []hProtocol.Offer{{ID: 5, Seller: h.source.Address(), Amount: "1.0000000", Price: "2.0000000"}}
	h.hmock.On("Offers", horizonclient.OfferRequest{ForAccount: h.source.Address(), Limit: 200}).Return(page, nil)

	var offers stellarwallet.Result[[]stellarwallet.Offer]
	delivered := false
	h.client.LoadOffers(h.source.Address(), func(res stellarwallet.Result[[]stellarwallet.Offer]) {
		offers = res
		delivered = true
	})
	runUntil(t, h.client, func() bool { return delivered })

	require.True(t, offers.OK())
	require.Len(t, offers.Value, 1)
	assert.Equal(t, "5", offers.Value[0].ID)
}

func TestNewClientRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Network = "nowhere"

	_, err := NewClient(cfg)
	assert.True(t, errors.HasCode(err, errors.CONFIG_INVALID))
}

func canceled() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}
