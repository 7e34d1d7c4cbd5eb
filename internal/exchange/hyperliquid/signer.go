// Package hyperliquid adapts a Hyperliquid-style perp DEX to
// core.VenueClient. REST actions are msgpack-hashed and signed as EIP-712
// typed data with the operator's wallet key; market data and order events
// arrive over the shared reconnecting WebSocket client.
package hyperliquid

import (
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/vmihailenco/msgpack/v5"
)

// signatureChainID is fixed by the venue's signature scheme; it is not the
// chain the exchange settles on.
const signatureChainID = 1337

const (
	sourceMainnet = "a"
	sourceTestnet = "b"
)

// Signature is the r/s/v triple the exchange endpoint expects.
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V uint8  `json:"v"`
}

// Signer holds the operator's wallet key and signs exchange actions.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	source  string
}

// NewSigner parses a hex-encoded wallet key. testnet selects the agent
// source tag the venue verifies against.
func NewSigner(hexKey string, testnet bool) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse wallet key: %w", err)
	}

	source := sourceMainnet
	if testnet {
		source = sourceTestnet
	}

	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		source:  source,
	}, nil
}

// Address returns the wallet address derived from the key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignAction reduces the action and nonce to a connection id and signs it.
func (s *Signer) SignAction(action interface{}, nonce uint64) (Signature, error) {
	connectionID, err := actionHash(action, nonce)
	if err != nil {
		return Signature{}, err
	}
	return s.signConnectionID(connectionID)
}

// actionHash is keccak(msgpack(action) || nonce_be64 || 0x00). The trailing
// byte flags the absent vault address. Struct field order in the wire types
// is load-bearing: the venue re-encodes the JSON action in the same order
// to verify the hash.
func actionHash(action interface{}, nonce uint64) (common.Hash, error) {
	packed, err := msgpack.Marshal(action)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode action: %w", err)
	}

	data := make([]byte, 0, len(packed)+9)
	data = append(data, packed...)

	var nonceBuf [8]byte
	binary.BigEndian.PutUint64(nonceBuf[:], nonce)
	data = append(data, nonceBuf[:]...)
	data = append(data, 0x00)

	return crypto.Keccak256Hash(data), nil
}

// signConnectionID signs Agent{source, connectionId} under the venue's
// fixed Exchange/1 domain.
func (s *Signer) signConnectionID(connectionID common.Hash) (Signature, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Agent": {
				{Name: "source", Type: "string"},
				{Name: "connectionId", Type: "bytes32"},
			},
		},
		PrimaryType: "Agent",
		Domain: apitypes.TypedDataDomain{
			Name:              "Exchange",
			Version:           "1",
			ChainId:           math.NewHexOrDecimal256(signatureChainID),
			VerifyingContract: "0x0000000000000000000000000000000000000000",
		},
		Message: apitypes.TypedDataMessage{
			"source":       s.source,
			"connectionId": connectionID.Bytes(),
		},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return Signature{}, fmt.Errorf("failed to hash signing domain: %w", err)
	}
	messageHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return Signature{}, fmt.Errorf("failed to hash agent message: %w", err)
	}

	raw := []byte("\x19\x01")
	raw = append(raw, domainSeparator...)
	raw = append(raw, messageHash...)
	digest := crypto.Keccak256Hash(raw)

	sig, err := crypto.Sign(digest.Bytes(), s.key)
	if err != nil {
		return Signature{}, fmt.Errorf("failed to sign action: %w", err)
	}

	return Signature{
		R: hexutil.Encode(sig[:32]),
		S: hexutil.Encode(sig[32:64]),
		V: sig[64] + 27,
	}, nil
}
