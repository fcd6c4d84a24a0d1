package xrpl

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/ripemd160"
)

// rippleAlphabet is the base58 dictionary used for XRPL addresses.
var rippleAlphabet = base58.NewAlphabet("rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz")

// addressTypePrefix marks an account ID payload.
const addressTypePrefix = 0x00

// ed25519KeyPrefix distinguishes ed25519 public keys from secp256k1 on
// the ledger.
const ed25519KeyPrefix = 0xED

// Wallet is a locally generated ledger account.
type Wallet struct {
	// Address is the classic address, base58 with an r prefix.
	Address string
	// PublicKey is the 33-byte prefixed public key, hex encoded.
	PublicKey string
	// Seed is the raw 32-byte ed25519 seed, hex encoded. Stored by the
	// caller, never sent to the node.
	Seed string
}

// GenerateWallet creates a new ed25519 account keypair and derives its
// classic address.
func GenerateWallet() (*Wallet, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}

	prefixed := append([]byte{ed25519KeyPrefix}, pub...)
	return &Wallet{
		Address:   deriveAddress(prefixed),
		PublicKey: hex.EncodeToString(prefixed),
		Seed:      hex.EncodeToString(priv.Seed()),
	}, nil
}

// WalletFromSeed rebuilds a wallet from a stored hex seed.
func WalletFromSeed(seedHex string) (*Wallet, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}

	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)

	prefixed := append([]byte{ed25519KeyPrefix}, pub...)
	return &Wallet{
		Address:   deriveAddress(prefixed),
		PublicKey: hex.EncodeToString(prefixed),
		Seed:      seedHex,
	}, nil
}

// deriveAddress computes the classic address for a prefixed public key:
// RIPEMD160 over SHA256 of the key, then base58check with the ripple
// alphabet.
func deriveAddress(prefixedKey []byte) string {
	sha := sha256.Sum256(prefixedKey)

	ripe := ripemd160.New()
	ripe.Write(sha[:])
	accountID := ripe.Sum(nil)

	payload := append([]byte{addressTypePrefix}, accountID...)
	return base58.EncodeAlphabet(append(payload, checksum(payload)...), rippleAlphabet)
}

// checksum is the first four bytes of a double SHA256.
func checksum(payload []byte) []byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return second[:4]
}

// ValidateAddress reports whether s is a well-formed classic address
// with a correct checksum.
func ValidateAddress(s string) error {
	decoded, err := base58.DecodeAlphabet(s, rippleAlphabet)
	if err != nil {
		return fmt.Errorf("decode address: %w", err)
	}
	if len(decoded) != 25 {
		return fmt.Errorf("address payload must be 25 bytes, got %d", len(decoded))
	}
	if decoded[0] != addressTypePrefix {
		return fmt.Errorf("unexpected address type prefix 0x%02x", decoded[0])
	}

	payload, sum := decoded[:21], decoded[21:]
	want := checksum(payload)
	for i := range sum {
		if sum[i] != want[i] {
			return fmt.Errorf("address checksum mismatch")
		}
	}
	return nil
}

// ValidatePublicKey checks that a hex public key is a prefixed ed25519
// key whose point lies on the curve.
func ValidatePublicKey(pubHex string) error {
	key, err := hex.DecodeString(pubHex)
	if err != nil {
		return fmt.Errorf("decode public key: %w", err)
	}
	if len(key) != 33 || key[0] != ed25519KeyPrefix {
		return fmt.Errorf("expected 33-byte ed25519 public key with 0xED prefix")
	}
	if _, err := new(edwards25519.Point).SetBytes(key[1:]); err != nil {
		return fmt.Errorf("public key not on curve: %w", err)
	}
	return nil
}
