// Package signers provides convenience constructors for creating Signer implementations.
//
// It offers two patterns:
//   - FromSecret / FromKeyPair: Wraps a Stellar secret key (S...) using stellar/go keypair for signing.
//     Intended for wallets that unlock the seed for the duration of one operation.
//   - FromCallback: Wraps a custom signing function (e.g., HSM, hardware wallet, custodial API).
//     Allows you to delegate signing to any external infrastructure.
//
// Both return implementations of the stellarwallet.Signer interface.
package signers
