package signers

import (
	"context"
	"fmt"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"

	stellarwallet "github.com/marwen-abid/stellar-wallet-go"
	"github.com/marwen-abid/stellar-wallet-go/core/identity"
)

// keypairSigner wraps a stellar/go keypair for signing transactions.
type keypairSigner struct {
	kp *keypair.Full
}

// FromSecret creates a Signer from a Stellar secret seed (S...).
// Returns an error if the seed is invalid; the error never contains the seed.
func FromSecret(seed []byte) (stellarwallet.Signer, error) {
	kp, err := identity.ResolveKeyPair(seed)
	if err != nil {
		return nil, err
	}
	return &keypairSigner{kp: kp}, nil
}

// FromKeyPair creates a Signer from an already resolved keypair.
func FromKeyPair(kp *keypair.Full) stellarwallet.Signer {
	return &keypairSigner{kp: kp}
}

// PublicKey returns the Stellar address (G...) for this keypair.
func (s *keypairSigner) PublicKey() string {
	return s.kp.Address()
}

// SignTransaction signs the transaction hash for networkPassphrase and
// returns a copy of tx with the signature appended.
func (s *keypairSigner) SignTransaction(ctx context.Context, tx *txnbuild.Transaction, networkPassphrase string) (*txnbuild.Transaction, error) {
	if networkPassphrase == "" {
		return nil, fmt.Errorf("network passphrase is required")
	}
	signed, err := tx.Sign(networkPassphrase, s.kp)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed, nil
}
