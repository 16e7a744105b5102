package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix is the human-readable bech32 prefix carried by launchpad addresses.
type AddressPrefix string

// LPDPrefix is the prefix used by every account and pool vault address.
const LPDPrefix AddressPrefix = "lpd"

// AddressLength is the raw payload size of an address in bytes.
const AddressLength = 20

// Address represents a 20-byte launchpad address rendered as bech32.
type Address struct {
	prefix AddressPrefix
	bytes  [AddressLength]byte
}

// NewAddress wraps a raw 20-byte payload into an Address.
func NewAddress(b [AddressLength]byte) Address {
	return Address{prefix: LPDPrefix, bytes: b}
}

// AddressFromBytes converts a byte slice into an Address, rejecting payloads
// that are not exactly 20 bytes.
func AddressFromBytes(b []byte) (Address, error) {
	if len(b) != AddressLength {
		return Address{}, fmt.Errorf("address must be %d bytes, got %d", AddressLength, len(b))
	}
	var raw [AddressLength]byte
	copy(raw[:], b)
	return NewAddress(raw), nil
}

// ParseAddress decodes a bech32 string into an Address, enforcing the lpd prefix.
func ParseAddress(s string) (Address, error) {
	hrp, data, err := bech32.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("decode address: %w", err)
	}
	if hrp != string(LPDPrefix) {
		return Address{}, fmt.Errorf("unexpected address prefix %q", hrp)
	}
	converted, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("convert address payload: %w", err)
	}
	return AddressFromBytes(converted)
}

// String renders the address as bech32.
func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(LPDPrefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Bytes returns a copy of the raw 20-byte payload.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a.bytes[:])
	return out
}

// Raw returns the payload as a fixed-size array, the form the native engines
// key their state by.
func (a Address) Raw() [AddressLength]byte { return a.bytes }

// IsZero reports whether the address is the all-zero payload.
func (a Address) IsZero() bool { return a.bytes == [AddressLength]byte{} }

// PrivateKey wraps a secp256k1 private key.
type PrivateKey struct {
	PrivateKey *ecdsa.PrivateKey
}

// GeneratePrivateKey creates a fresh secp256k1 private key.
func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{PrivateKey: key}, nil
}

// PubKey returns the public key half of the key pair.
func (pk *PrivateKey) PubKey() *PublicKey {
	if pk == nil || pk.PrivateKey == nil {
		return nil
	}
	return &PublicKey{PublicKey: &pk.PrivateKey.PublicKey}
}

// PublicKey wraps a secp256k1 public key.
type PublicKey struct {
	PublicKey *ecdsa.PublicKey
}

// Address derives the account address from the public key using the trailing
// 20 bytes of its keccak256 hash.
func (pub *PublicKey) Address() (Address, error) {
	if pub == nil || pub.PublicKey == nil {
		return Address{}, errors.New("nil public key")
	}
	raw := crypto.FromECDSAPub(pub.PublicKey)
	hash := crypto.Keccak256(raw[1:])
	return AddressFromBytes(hash[12:])
}

// DeriveVaultAddress deterministically derives the vault address for a launched
// token from its creator and symbol. Pool custody accounts are not backed by a
// private key; they exist only as ledger entries controlled by the engine.
func DeriveVaultAddress(creator [AddressLength]byte, symbol string) [AddressLength]byte {
	hash := crypto.Keccak256([]byte("launchpad/vault"), creator[:], []byte(symbol))
	var out [AddressLength]byte
	copy(out[:], hash[12:])
	return out
}
