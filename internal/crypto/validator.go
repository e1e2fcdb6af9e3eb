// Package crypto provides market-authoring signature validation and the
// encrypted keystore used by the client-side signer.
package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/veilco/market-creation/internal/domain"
)

// ValidateSignature checks that sig authorizes a mutation of market. It is
// pure: no side effects, no clock reads (now is injected).
//
// The signed message must literally contain the market description and the
// ISO-8601 form of the signature timestamp; that binds the signature to
// specific content without a canonical encoding. The timestamp must be
// within domain.SignatureWindow of now, and the address recovered from
// (message, signature) must case-insensitively equal the market author.
func ValidateSignature(market *domain.Market, sig domain.Signature, now time.Time) error {
	stamp := sig.Timestamp.UTC().Format(domain.TimestampLayout)
	if !strings.Contains(sig.Message, market.Description) {
		return fmt.Errorf("crypto: message does not embed market description: %w", domain.ErrInvalidSignature)
	}
	if !strings.Contains(sig.Message, stamp) {
		return fmt.Errorf("crypto: message does not embed signature timestamp: %w", domain.ErrInvalidSignature)
	}

	drift := now.Sub(sig.Timestamp)
	if drift < 0 {
		drift = -drift
	}
	if drift > domain.SignatureWindow {
		return fmt.Errorf("crypto: signed %s ago: %w", drift.Round(time.Second), domain.ErrSignatureExpired)
	}

	signer, err := RecoverSigner(sig.Message, sig.Signature)
	if err != nil {
		return err
	}
	if !strings.EqualFold(signer, market.Author) {
		return domain.ErrSignerMismatch
	}
	return nil
}

// RecoverSigner returns the 0x-prefixed address that produced the given
// hex-encoded 65-byte signature over the EIP-191 personal-message digest of
// message.
func RecoverSigner(message, signature string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return "", fmt.Errorf("crypto: signature is not hex: %w", domain.ErrInvalidSignature)
	}
	if len(raw) != 65 {
		return "", fmt.Errorf("crypto: signature is %d bytes, want 65: %w", len(raw), domain.ErrInvalidSignature)
	}

	// Wallets emit v as 27/28; go-ethereum expects 0/1.
	sig := make([]byte, 65)
	copy(sig, raw)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return "", fmt.Errorf("crypto: invalid recovery id %d: %w", raw[64], domain.ErrInvalidSignature)
	}

	digest := accounts.TextHash([]byte(message))
	pub, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return "", fmt.Errorf("crypto: recover public key: %w", domain.ErrInvalidSignature)
	}
	return ethcrypto.PubkeyToAddress(*pub).Hex(), nil
}

// SignMarketMessage builds the canonical authoring message for a market and
// signs it with the given key. Used by the veilctl client and by tests; the
// server side only ever validates.
func SignMarketMessage(market *domain.Market, key *ecdsa.PrivateKey, at time.Time) (domain.Signature, error) {
	stamp := at.UTC().Format(domain.TimestampLayout)
	message := fmt.Sprintf("Authorize changes to the market %q at %s", market.Description, stamp)

	digest := accounts.TextHash([]byte(message))
	raw, err := ethcrypto.Sign(digest, key)
	if err != nil {
		return domain.Signature{}, fmt.Errorf("crypto: sign message: %w", err)
	}
	// Normalise v to 27/28 so the signature matches what wallets produce.
	if raw[64] < 27 {
		raw[64] += 27
	}

	return domain.Signature{
		Message:   message,
		Signature: "0x" + hex.EncodeToString(raw),
		Timestamp: at.UTC(),
	}, nil
}
