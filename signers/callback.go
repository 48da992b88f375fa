package signers

import (
	"context"
	"fmt"

	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"

	stellarwallet "github.com/marwen-abid/stellar-wallet-go"
)

// callbackSigner wraps a custom signing function for external signing services.
type callbackSigner struct {
	publicKey string
	signFunc  func(ctx context.Context, hash [32]byte) (xdr.DecoratedSignature, error)
}

// FromCallback creates a Signer from a public key and a function that signs a
// transaction hash. Intended for hardware wallets, HSMs or custodial APIs that
// never expose the secret key.
func FromCallback(
	publicKey string,
	signFunc func(ctx context.Context, hash [32]byte) (xdr.DecoratedSignature, error),
) stellarwallet.Signer {
	return &callbackSigner{
		publicKey: publicKey,
		signFunc:  signFunc,
	}
}

// PublicKey returns the Stellar address (G...) for this signer.
func (s *callbackSigner) PublicKey() string {
	return s.publicKey
}

// SignTransaction hashes tx for networkPassphrase and appends the signature
// produced by the callback.
func (s *callbackSigner) SignTransaction(ctx context.Context, tx *txnbuild.Transaction, networkPassphrase string) (*txnbuild.Transaction, error) {
	hash, err := tx.Hash(networkPassphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to hash transaction: %w", err)
	}
	sig, err := s.signFunc(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("external signer failed: %w", err)
	}
	return tx.AddSignatureDecorated(sig)
}
