package txbuild

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/txnbuild"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stellarwallet "github.com/marwen-abid/stellar-wallet-go"
	"github.com/marwen-abid/stellar-wallet-go/errors"
	"github.com/marwen-abid/stellar-wallet-go/signers"
)

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewBuilder(network.TestNetworkPassphrase)
	require.NoError(t, err)
	return b
}

func snapshotFor(kp *keypair.Full, seq int64) *stellarwallet.AccountSnapshot {
	return &stellarwallet.AccountSnapshot{AccountID: kp.Address(), Sequence: seq}
}

func TestNewBuilderRequiresPassphrase(t *testing.T) {
	_, err := NewBuilder("")
	assert.True(t, errors.HasCode(err, errors.CONFIG_INVALID))
}

func TestBuildPaymentConsumesNextSequence(t *testing.T) {
	b := newTestBuilder(t)
	src := keypair.MustRandom()
	dst := keypair.MustRandom().Address()
	snap := snapshotFor(src, 1000)

	env, err := b.Build(snap, []stellarwallet.Operation{
		stellarwallet.Payment{Destination: dst, Asset: stellarwallet.NativeAsset, Amount: "10.5"},
	}, "rent")
	require.NoError(t, err)

	assert.Equal(t, int64(1001), env.SequenceNumber())
	assert.Equal(t, int64(1000), snap.Sequence)
	assert.Equal(t, []stellarwallet.OperationKind{stellarwallet.KindPayment}, env.Kinds())
	assert.Equal(t, 0, env.SignatureCount())

	ops := env.Transaction().Operations()
	require.Len(t, ops, 1)
	payment, ok := ops[0].(*txnbuild.Payment)
	require.True(t, ok)
	assert.Equal(t, "10.5000000", payment.Amount)
	assert.Equal(t, dst, payment.Destination)
	assert.Equal(t, txnbuild.MemoText("rent"), env.Transaction().Memo())
}

func TestBuildIsDeterministic(t *testing.T) {
	b := newTestBuilder(t)
	src := keypair.MustRandom()
	ops := []stellarwallet.Operation{
		stellarwallet.CreateAccount{Destination: keypair.MustRandom().Address(), StartingBalance: "2"},
	}

	first, err := b.Build(snapshotFor(src, 7), ops, "hi")
	require.NoError(t, err)
	second, err := b.Build(snapshotFor(src, 7), ops, "hi")
	require.NoError(t, err)

	x1, err := first.Base64()
	require.NoError(t, err)
	x2, err := second.Base64()
	require.NoError(t, err)
	assert.Equal(t, x1, x2)
}

func TestBuildRejectsLongMemo(t *testing.T) {
	b := newTestBuilder(t)
	src := keypair.MustRandom()
	ops := []stellarwallet.Operation{
		stellarwallet.Payment{Destination: keypair.MustRandom().Address(), Asset: stellarwallet.NativeAsset, Amount: "1"},
	}

	_, err := b.Build(snapshotFor(src, 1), ops, strings.Repeat("a", MaxMemoTextBytes))
	require.NoError(t, err)

	_, err = b.Build(snapshotFor(src, 1), ops, strings.Repeat("a", MaxMemoTextBytes+1))
	assert.True(t, errors.HasCode(err, errors.MEMO_TOO_LONG))

	// 10 three-byte runes: 30 bytes although only 10 characters.
	_, err = b.Build(snapshotFor(src, 1), ops, strings.Repeat("€", 10))
	assert.True(t, errors.HasCode(err, errors.MEMO_TOO_LONG))
}

func TestBuildChangeTrustLimits(t *testing.T) {
	b := newTestBuilder(t)
	src := keypair.MustRandom()
	asset := stellarwallet.Asset{Code: "USD", Issuer: keypair.MustRandom().Address()}

	tests := []struct {
		limit string
		want  string
	}{
		{"0", "0.0000000"},
		{"", MaxTrustLimit},
		{"1000", "1000.0000000"},
	}
	for _, tt := range tests {
		env, err := b.Build(snapshotFor(src, 1), []stellarwallet.Operation{
			stellarwallet.ChangeTrust{Asset: asset, Limit: tt.limit},
		}, "")
		require.NoError(t, err)

		ct, ok := env.Transaction().Operations()[0].(*txnbuild.ChangeTrust)
		require.True(t, ok)
		assert.Equal(t, tt.want, ct.Limit)
	}

	_, err := b.Build(snapshotFor(src, 1), []stellarwallet.Operation{
		stellarwallet.ChangeTrust{Asset: stellarwallet.NativeAsset, Limit: "1"},
	}, "")
	assert.True(t, errors.HasCode(err, errors.BUILD_FAILED))
}

func TestBuildManageOfferAndInflation(t *testing.T) {
	b := newTestBuilder(t)
	src := keypair.MustRandom()
	dest := keypair.MustRandom().Address()
	usd := stellarwallet.Asset{Code: "USD", Issuer: keypair.MustRandom().Address()}

	env, err := b.Build(snapshotFor(src, 1), []stellarwallet.Operation{
		stellarwallet.ManageOffer{Selling: stellarwallet.NativeAsset, Buying: usd, Amount: "5", Price: "0.25"},
		stellarwallet.SetInflationDestination{Destination: dest},
	}, "")
	require.NoError(t, err)

	ops := env.Transaction().Operations()
	require.Len(t, ops, 2)
	offer, ok := ops[0].(*txnbuild.ManageSellOffer)
	require.True(t, ok)
	assert.Equal(t, "5.0000000", offer.Amount)
	assert.EqualValues(t, 1, offer.Price.N)
	assert.EqualValues(t, 4, offer.Price.D)

	setOpts, ok := ops[1].(*txnbuild.SetOptions)
	require.True(t, ok)
	require.NotNil(t, setOpts.InflationDestination)
	assert.Equal(t, dest, *setOpts.InflationDestination)

	_, err = b.Build(snapshotFor(src, 1), []stellarwallet.Operation{
		stellarwallet.ManageOffer{Selling: stellarwallet.NativeAsset, Buying: usd, Amount: "5", Price: "0"},
	}, "")
	assert.True(t, errors.HasCode(err, errors.INVALID_AMOUNT))
}

func TestBuildRejectsBadInput(t *testing.T) {
	b := newTestBuilder(t)
	src := keypair.MustRandom()

	_, err := b.Build(nil, []stellarwallet.Operation{stellarwallet.SetInflationDestination{Destination: src.Address()}}, "")
	assert.True(t, errors.HasCode(err, errors.BUILD_FAILED))

	_, err = b.Build(snapshotFor(src, 1), nil, "")
	assert.True(t, errors.HasCode(err, errors.BUILD_FAILED))

	_, err = b.Build(snapshotFor(src, 1), []stellarwallet.Operation{
		stellarwallet.Payment{Destination: src.Address(), Asset: stellarwallet.NativeAsset, Amount: "0"},
	}, "")
	assert.True(t, errors.HasCode(err, errors.INVALID_AMOUNT))

	_, err = b.Build(snapshotFor(src, 1), []stellarwallet.Operation{
		stellarwallet.Payment{Destination: src.Address(), Asset: stellarwallet.NativeAsset, Amount: "1.123456789"},
	}, "")
	assert.True(t, errors.HasCode(err, errors.INVALID_AMOUNT))
}

func TestSignTwiceAppendsTwoSignatures(t *testing.T) {
	b := newTestBuilder(t)
	src := keypair.MustRandom()
	signer := signers.FromKeyPair(src)

	env, err := b.Build(snapshotFor(src, 1), []stellarwallet.Operation{
		stellarwallet.SetInflationDestination{Destination: src.Address()},
	}, "")
	require.NoError(t, err)

	once, err := b.Sign(context.Background(), env, signer)
	require.NoError(t, err)
	twice, err := b.Sign(context.Background(), once, signer)
	require.NoError(t, err)

	assert.Equal(t, 0, env.SignatureCount())
	assert.Equal(t, 1, once.SignatureCount())
	assert.Equal(t, 2, twice.SignatureCount())

	h1, err := once.Hash()
	require.NoError(t, err)
	h2, err := twice.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestBuildWithTimeoutSetsUpperBound(t *testing.T) {
	b, err := NewBuilder(network.TestNetworkPassphrase, WithTimeout(5*time.Minute), WithBaseFee(200))
	require.NoError(t, err)
	src := keypair.MustRandom()

	env, err := b.Build(snapshotFor(src, 1), []stellarwallet.Operation{
		stellarwallet.SetInflationDestination{Destination: src.Address()},
	}, "")
	require.NoError(t, err)

	assert.NotZero(t, env.Transaction().Timebounds().MaxTime)
	assert.Equal(t, int64(200), env.Transaction().BaseFee())
}

func TestCanonicalAmount(t *testing.T) {
	got, err := CanonicalAmount("0", true)
	require.NoError(t, err)
	assert.Equal(t, "0.0000000", got)

	_, err = CanonicalAmount("0", false)
	assert.Error(t, err)

	_, err = CanonicalAmount("-3", true)
	assert.Error(t, err)

	_, err = CanonicalAmount("abc", true)
	assert.Error(t, err)
}

func TestValidateOperation(t *testing.T) {
	usd := stellarwallet.Asset{Code: "USD", Issuer: keypair.MustRandom().Address()}
	dst := keypair.MustRandom().Address()

	assert.NoError(t, ValidateOperation(stellarwallet.Payment{Destination: dst, Asset: usd, Amount: "0.0000001"}))
	assert.NoError(t, ValidateOperation(stellarwallet.ChangeTrust{Asset: usd}))
	assert.NoError(t, ValidateOperation(stellarwallet.ManageOffer{Selling: usd, Buying: stellarwallet.NativeAsset, Amount: "0", Price: "1.5"}))

	err := ValidateOperation(stellarwallet.Payment{Destination: dst, Asset: usd, Amount: "abc"})
	assert.True(t, errors.HasCode(err, errors.INVALID_AMOUNT))

	err = ValidateOperation(stellarwallet.ManageOffer{Selling: usd, Buying: stellarwallet.NativeAsset, Amount: "1", Price: "0"})
	assert.True(t, errors.HasCode(err, errors.INVALID_AMOUNT))
}
