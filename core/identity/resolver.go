// Package identity derives key material and asset descriptors from the
// opaque strings a wallet collects from its user. Everything here is pure:
// no I/O and no shared state.
package identity

import (
	"fmt"
	"strings"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/strkey"
	"github.com/stellar/go/txnbuild"

	stellarwallet "github.com/marwen-abid/stellar-wallet-go"
	"github.com/marwen-abid/stellar-wallet-go/errors"
)

const maxAssetCodeLength = 12

// NativeCodes are the asset codes that map to lumens, compared case-insensitively.
var NativeCodes = []string{"XLM", stellarwallet.NativeAssetCode}

// ResolveAccountID parses a Stellar public key (G...).
func ResolveAccountID(accountID string) (*keypair.FromAddress, error) {
	accountID = strings.TrimSpace(accountID)
	if !strkey.IsValidEd25519PublicKey(accountID) {
		return nil, errors.NewIdentityError(errors.INVALID_FORMAT, "invalid account id", nil).
			With(errors.ContextAccount, accountID)
	}
	kp, err := keypair.ParseAddress(accountID)
	if err != nil {
		return nil, errors.NewIdentityError(errors.INVALID_FORMAT, "invalid account id", err).
			With(errors.ContextAccount, accountID)
	}
	return kp, nil
}

// ResolveKeyPair parses a secret seed (S...). The error never includes the seed.
func ResolveKeyPair(seed []byte) (*keypair.Full, error) {
	kp, err := keypair.ParseFull(strings.TrimSpace(string(seed)))
	if err != nil {
		return nil, errors.NewIdentityError(errors.INVALID_FORMAT, "invalid secret seed", nil)
	}
	return kp, nil
}

// ResolveIdentity checks that the seed reproduces the identity's account id.
func ResolveIdentity(id stellarwallet.Identity) (*keypair.Full, error) {
	kp, err := ResolveKeyPair(id.Seed)
	if err != nil {
		return nil, err
	}
	if id.AccountID != "" && kp.Address() != id.AccountID {
		return nil, errors.NewIdentityError(errors.INVALID_FORMAT, "secret seed does not match account id", nil).
			With(errors.ContextAccount, id.AccountID)
	}
	return kp, nil
}

// ResolveAsset maps a code and optional issuer to an asset descriptor.
// A native code always yields the native asset, whatever the issuer.
func ResolveAsset(code, issuer string) (stellarwallet.Asset, error) {
	code = strings.TrimSpace(code)
	if IsNativeCode(code) {
		return stellarwallet.NativeAsset, nil
	}
	if code == "" || len(code) > maxAssetCodeLength {
		return stellarwallet.Asset{}, errors.NewIdentityError(
			errors.INVALID_FORMAT,
			fmt.Sprintf("asset code must be 1-%d characters", maxAssetCodeLength),
			nil,
		)
	}
	for _, r := range code {
		if !isAlphanumeric(r) {
			return stellarwallet.Asset{}, errors.NewIdentityError(errors.INVALID_FORMAT, "asset code must be alphanumeric", nil)
		}
	}
	if _, err := ResolveAccountID(issuer); err != nil {
		return stellarwallet.Asset{}, errors.NewIdentityError(errors.INVALID_FORMAT, "invalid asset issuer", err)
	}
	return stellarwallet.Asset{Code: code, Issuer: strings.TrimSpace(issuer)}, nil
}

// IsNativeCode reports whether code names the native currency.
func IsNativeCode(code string) bool {
	for _, c := range NativeCodes {
		if strings.EqualFold(code, c) {
			return true
		}
	}
	return false
}

// ToTxnAsset converts a descriptor to the transaction builder's asset type.
func ToTxnAsset(a stellarwallet.Asset) txnbuild.Asset {
	if a.IsNative() {
		return txnbuild.NativeAsset{}
	}
	return txnbuild.CreditAsset{Code: a.Code, Issuer: a.Issuer}
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
