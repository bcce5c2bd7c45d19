package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	EnvEscrowPrivateKey     = "SWAPDESK_ESCROW_PRIVATE_KEY"
	EnvEscrowPrivateKeyFile = "SWAPDESK_ESCROW_PRIVATE_KEY_FILE"
)

// LocalSigner holds the escrow wallet's private key in memory for the
// synchronous payout leg. The key is read once at startup and must never
// reach logs or rendered output.
type LocalSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

func (s *LocalSigner) Address() common.Address {
	return s.address
}

func (s *LocalSigner) SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error) {
	if s == nil || s.privateKey == nil {
		return nil, errors.New("escrow signer is not initialized")
	}
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.privateKey)
}

// NewLocalSignerFromEnv loads the escrow key from the environment: an inline
// hex key takes precedence over a key file.
func NewLocalSignerFromEnv() (*LocalSigner, error) {
	if hexKey := strings.TrimSpace(os.Getenv(EnvEscrowPrivateKey)); hexKey != "" {
		return NewLocalSigner(hexKey)
	}
	if path := strings.TrimSpace(os.Getenv(EnvEscrowPrivateKeyFile)); path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read escrow key file: %w", err)
		}
		return NewLocalSigner(string(buf))
	}
	return nil, fmt.Errorf("missing escrow key: set %s or %s", EnvEscrowPrivateKey, EnvEscrowPrivateKeyFile)
}

func NewLocalSigner(hexKey string) (*LocalSigner, error) {
	clean := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if clean == "" {
		return nil, fmt.Errorf("empty escrow private key")
	}
	pk, err := crypto.HexToECDSA(clean)
	if err != nil {
		return nil, fmt.Errorf("parse escrow private key: %w", err)
	}
	pub, ok := pk.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("invalid ECDSA public key")
	}
	return &LocalSigner{privateKey: pk, address: crypto.PubkeyToAddress(*pub)}, nil
}
