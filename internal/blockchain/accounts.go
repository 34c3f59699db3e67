package blockchain

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const (
	marketSeed = "market"
	betSeed    = "bet"
)

// DefaultProgramID is the settlement program the derived addresses belong to.
const DefaultProgramID = "FgzZbmGBW7y749xrgMWETpwH5DHBYhWmoed5jrvmGE5b"

// AccountDeriver derives the deterministic account addresses that make
// markets and bets unique: one market per id, one bet per (market, user).
type AccountDeriver struct {
	programID solana.PublicKey
}

// NewAccountDeriver creates a deriver for the given base58 program id.
func NewAccountDeriver(programID string) (*AccountDeriver, error) {
	pk, err := solana.PublicKeyFromBase58(programID)
	if err != nil {
		return nil, fmt.Errorf("invalid program ID: %w", err)
	}
	return &AccountDeriver{programID: pk}, nil
}

// ProgramID returns the program the addresses are derived under.
func (d *AccountDeriver) ProgramID() solana.PublicKey {
	return d.programID
}

// MarketAddress derives the PDA for seeds ("market", marketID). The same
// address holds the market's escrow.
func (d *AccountDeriver) MarketAddress(marketID string) (solana.PublicKey, error) {
	if len(marketID) == 0 || len(marketID) > solana.MaxSeedLength {
		return solana.PublicKey{}, fmt.Errorf("market id must be 1..%d bytes, got %d", solana.MaxSeedLength, len(marketID))
	}

	pda, _, err := solana.FindProgramAddress([][]byte{
		[]byte(marketSeed),
		[]byte(marketID),
	}, d.programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive market PDA: %w", err)
	}
	return pda, nil
}

// BetAddress derives the PDA for seeds ("bet", market, user).
func (d *AccountDeriver) BetAddress(market solana.PublicKey, user string) (solana.PublicKey, error) {
	userKey, err := solana.PublicKeyFromBase58(user)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid user wallet: %w", err)
	}

	pda, _, err := solana.FindProgramAddress([][]byte{
		[]byte(betSeed),
		market.Bytes(),
		userKey.Bytes(),
	}, d.programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive bet PDA: %w", err)
	}
	return pda, nil
}

// ValidateWalletAddress reports whether address is a base58 ed25519 key.
func ValidateWalletAddress(address string) bool {
	_, err := solana.PublicKeyFromBase58(address)
	return err == nil
}
