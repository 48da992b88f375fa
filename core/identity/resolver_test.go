package identity

import (
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stellarwallet "github.com/marwen-abid/stellar-wallet-go"
	"github.com/marwen-abid/stellar-wallet-go/errors"
)

func TestResolveAccountID(t *testing.T) {
	kp := keypair.MustRandom()

	got, err := ResolveAccountID(kp.Address())
	require.NoError(t, err)
	assert.Equal(t, kp.Address(), got.Address())

	for _, bad := range []string{"", "GABC", kp.Seed(), kp.Address() + "X"} {
		_, err := ResolveAccountID(bad)
		assert.True(t, errors.HasCode(err, errors.INVALID_FORMAT), "input %q", bad)
	}
}

func TestResolveKeyPairReproducesPublicKey(t *testing.T) {
	kp := keypair.MustRandom()

	first, err := ResolveKeyPair([]byte(kp.Seed()))
	require.NoError(t, err)
	second, err := ResolveKeyPair([]byte(kp.Seed()))
	require.NoError(t, err)

	assert.Equal(t, kp.Address(), first.Address())
	assert.Equal(t, first.Address(), second.Address())
}

func TestResolveKeyPairDoesNotLeakSeed(t *testing.T) {
	seed := "SNOTAREALSEEDATALLBUTLONGENOUGHTOLOOKLIKEONEXXXXXXXXXXX"

	_, err := ResolveKeyPair([]byte(seed))
	require.Error(t, err)

	assert.True(t, errors.HasCode(err, errors.INVALID_FORMAT))
	assert.NotContains(t, err.Error(), seed)
}

func TestResolveIdentityRejectsMismatchedSeed(t *testing.T) {
	a := keypair.MustRandom()
	b := keypair.MustRandom()

	_, err := ResolveIdentity(stellarwallet.Identity{AccountID: a.Address(), Seed: []byte(b.Seed())})
	assert.True(t, errors.HasCode(err, errors.INVALID_FORMAT))

	kp, err := ResolveIdentity(stellarwallet.Identity{AccountID: a.Address(), Seed: []byte(a.Seed())})
	require.NoError(t, err)
	assert.Equal(t, a.Address(), kp.Address())
}

func TestResolveAssetNativeIgnoresIssuer(t *testing.T) {
	issuer := keypair.MustRandom().Address()

	for _, code := range []string{"XLM", "xlm", "native", "NATIVE"} {
		for _, iss := range []string{"", issuer, "garbage"} {
			a, err := ResolveAsset(code, iss)
			require.NoError(t, err)
			assert.Equal(t, stellarwallet.NativeAsset, a)
		}
	}
}

func TestResolveAssetIssued(t *testing.T) {
	issuer := keypair.MustRandom().Address()

	a, err := ResolveAsset("USDC", issuer)
	require.NoError(t, err)
	assert.Equal(t, stellarwallet.Asset{Code: "USDC", Issuer: issuer}, a)
	assert.False(t, a.IsNative())

	b, err := ResolveAsset("USDC", issuer)
	require.NoError(t, err)
	assert.True(t, a == b)

	_, err = ResolveAsset("USDC", "")
	assert.True(t, errors.HasCode(err, errors.INVALID_FORMAT))

	_, err = ResolveAsset("WAYTOOLONGCODE", issuer)
	assert.True(t, errors.HasCode(err, errors.INVALID_FORMAT))

	_, err = ResolveAsset("US-D", issuer)
	assert.True(t, errors.HasCode(err, errors.INVALID_FORMAT))
}

func TestToTxnAsset(t *testing.T) {
	issuer := keypair.MustRandom().Address()

	assert.Equal(t, txnbuild.NativeAsset{}, ToTxnAsset(stellarwallet.NativeAsset))
	assert.Equal(t, txnbuild.CreditAsset{Code: "EURT", Issuer: issuer}, ToTxnAsset(stellarwallet.Asset{Code: "EURT", Issuer: issuer}))
}
