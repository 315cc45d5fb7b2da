package lodging

import (
	"fmt"

	"openstay/crypto"
)

// Proof is an explicit authorization value carried by every mutating
// transition: a recoverable secp256k1 signature over a caller-chosen digest.
// The guard recovers the signing address and binds it to the identity field
// the operation requires. Verification is a pure function; it never touches
// the storage layer.
type Proof struct {
	Digest    [32]byte
	Signature []byte
}

// Verify recovers the address that produced the proof.
func (p Proof) Verify() ([20]byte, error) {
	signer, err := crypto.RecoverSigner(p.Digest, p.Signature)
	if err != nil {
		return [20]byte{}, fmt.Errorf("lodging: verify authorization proof: %w", err)
	}
	return signer, nil
}

// RequireSigner verifies the proof and checks the recovered address against
// the required identity, returning mismatch when they differ.
func RequireSigner(p Proof, want [20]byte, mismatch error) ([20]byte, error) {
	signer, err := p.Verify()
	if err != nil {
		return [20]byte{}, err
	}
	if signer != want {
		return [20]byte{}, mismatch
	}
	return signer, nil
}

// RequireAnySigner verifies the proof and checks the recovered address
// against each allowed identity, returning mismatch when none match.
func RequireAnySigner(p Proof, mismatch error, wants ...[20]byte) ([20]byte, error) {
	signer, err := p.Verify()
	if err != nil {
		return [20]byte{}, err
	}
	for _, want := range wants {
		if signer == want {
			return signer, nil
		}
	}
	return [20]byte{}, mismatch
}
