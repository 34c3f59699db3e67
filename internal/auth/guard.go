package auth

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"

	"github.com/mr-tron/base58"

	"prediction-settlement/internal/apperr"
)

// LoginMessage is the fixed text a wallet signs to obtain a token.
const LoginMessage = "Sign this message to authenticate with the settlement service"

var (
	ErrInvalidPublicKey = errors.New("invalid public key format")
	ErrInvalidSignature = errors.New("invalid signature format")
	ErrBadSignature     = errors.New("signature does not match wallet")
)

// RequireOwner fails with UNAUTHORIZED unless caller is the stored owner.
// An empty caller never matches.
func RequireOwner(caller, owner string) error {
	if caller == "" || caller != owner {
		return apperr.ErrUnauthorized
	}
	return nil
}

// VerifyWalletSignature checks an ed25519 signature of LoginMessage by the
// base58 wallet key. The signature may be base58 or hex encoded.
func VerifyWalletSignature(walletAddress, signature string) error {
	pubKey, err := base58.Decode(walletAddress)
	if err != nil || len(pubKey) != ed25519.PublicKeySize {
		return ErrInvalidPublicKey
	}

	// Wallets usually return base58; some frontends send hex.
	sig, err := base58.Decode(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		sig, err = hex.DecodeString(signature)
		if err != nil || len(sig) != ed25519.SignatureSize {
			return ErrInvalidSignature
		}
	}

	if !ed25519.Verify(pubKey, []byte(LoginMessage), sig) {
		return ErrBadSignature
	}
	return nil
}
