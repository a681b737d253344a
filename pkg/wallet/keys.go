package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
	"github.com/tyler-smith/go-bip39"
)

// DefaultDerivationPath is the first account of the standard Ethereum BIP44 tree
const DefaultDerivationPath = "m/44'/60'/0'/0/0"

var (
	// ErrNoKey is returned when neither a private key nor a mnemonic is configured
	ErrNoKey = errors.New("no wallet key configured: set wallet.private_key or wallet.mnemonic")
	// ErrInvalidMnemonic is returned for a mnemonic that fails the BIP39 checksum
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
)

// LoadKey returns the signing key from a hex private key, or derives it from a
// BIP39 mnemonic when no private key is given
func LoadKey(privateKeyHex, mnemonic, path string) (*ecdsa.PrivateKey, error) {
	if privateKeyHex = strings.TrimSpace(privateKeyHex); privateKeyHex != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		return key, nil
	}

	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if mnemonic == "" {
		return nil, ErrNoKey
	}
	return DeriveKey(mnemonic, path)
}

// DeriveKey derives the private key at path from a BIP39 mnemonic
func DeriveKey(mnemonic, path string) (*ecdsa.PrivateKey, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	if path == "" {
		path = DefaultDerivationPath
	}

	seed := bip39.NewSeed(mnemonic, "")
	w, err := hdwallet.NewFromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet from seed: %w", err)
	}

	derivationPath, err := hdwallet.ParseDerivationPath(path)
	if err != nil {
		return nil, fmt.Errorf("invalid derivation path %q: %w", path, err)
	}

	account, err := w.Derive(derivationPath, false)
	if err != nil {
		return nil, fmt.Errorf("failed to derive account: %w", err)
	}

	key, err := w.PrivateKey(account)
	if err != nil {
		return nil, fmt.Errorf("failed to get private key: %w", err)
	}
	return key, nil
}
