package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	exchangeDomainName = "Polymarket CTF Exchange"
	authDomainName     = "ClobAuthDomain"
	domainVersion      = "1"

	// AuthAttestation is the fixed message the CLOB expects inside ClobAuth.
	AuthAttestation = "This message attests that I control the given wallet"
)

var (
	authDomainType     = ethcrypto.Keccak256([]byte("EIP712Domain(string name,string version,uint256 chainId)"))
	exchangeDomainType = ethcrypto.Keccak256([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
	clobAuthType       = ethcrypto.Keccak256([]byte("ClobAuth(address address,string timestamp,uint256 nonce,string message)"))
	orderType          = ethcrypto.Keccak256([]byte("Order(uint256 salt,address maker,address signer,address taker,uint256 tokenId,uint256 makerAmount,uint256 takerAmount,uint256 expiration,uint256 nonce,uint256 feeRateBps,uint8 side,uint8 signatureType)"))
)

// Side values as encoded in a signed order.
const (
	SideBuy  uint8 = 0
	SideSell uint8 = 1
)

// Signature types.
const (
	SigEOA        uint8 = 0
	SigPolyProxy  uint8 = 1
	SigGnosisSafe uint8 = 2
)

// OrderPayload is the exchange Order struct in its on-chain types.
type OrderPayload struct {
	Salt          *big.Int
	Maker         common.Address
	Signer        common.Address
	Taker         common.Address
	TokenID       *big.Int
	MakerAmount   *big.Int
	TakerAmount   *big.Int
	Expiration    *big.Int
	Nonce         *big.Int
	FeeRateBps    *big.Int
	Side          uint8
	SignatureType uint8
}

// Signer holds the wallet key and signs CLOB auth messages and exchange orders.
type Signer struct {
	key        *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
	authDomain []byte
}

// NewSigner parses a hex private key (0x prefix optional) for chainID
// (137 Polygon, 80002 Amoy).
func NewSigner(privateKeyHex string, chainID int64) (*Signer, error) {
	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto: parse private key: %w", err)
	}
	cid := big.NewInt(chainID)
	return &Signer{
		key:     pk,
		address: ethcrypto.PubkeyToAddress(pk.PublicKey),
		chainID: cid,
		authDomain: ethcrypto.Keccak256(
			authDomainType,
			ethcrypto.Keccak256([]byte(authDomainName)),
			ethcrypto.Keccak256([]byte(domainVersion)),
			word(cid),
		),
	}, nil
}

func (s *Signer) Address() common.Address {
	return s.address
}

// SignAuth signs the L1 ClobAuth message used to create or derive API keys.
func (s *Signer) SignAuth(timestamp, nonce int64) (string, error) {
	return s.sign(s.authDigest(timestamp, nonce))
}

func (s *Signer) authDigest(timestamp, nonce int64) []byte {
	structHash := ethcrypto.Keccak256(
		clobAuthType,
		common.LeftPadBytes(s.address.Bytes(), 32),
		ethcrypto.Keccak256([]byte(strconv.FormatInt(timestamp, 10))),
		word(big.NewInt(nonce)),
		ethcrypto.Keccak256([]byte(AuthAttestation)),
	)
	return typedDataHash(s.authDomain, structHash)
}

// SignOrder signs o for the exchange contract at exchange. Neg-risk markets
// settle on a different contract than standard binary markets.
func (s *Signer) SignOrder(o OrderPayload, exchange common.Address) (string, error) {
	return s.sign(s.orderDigest(o, exchange))
}

func (s *Signer) orderDigest(o OrderPayload, exchange common.Address) []byte {
	domainSep := ethcrypto.Keccak256(
		exchangeDomainType,
		ethcrypto.Keccak256([]byte(exchangeDomainName)),
		ethcrypto.Keccak256([]byte(domainVersion)),
		word(s.chainID),
		common.LeftPadBytes(exchange.Bytes(), 32),
	)
	structHash := ethcrypto.Keccak256(
		orderType,
		word(o.Salt),
		common.LeftPadBytes(o.Maker.Bytes(), 32),
		common.LeftPadBytes(o.Signer.Bytes(), 32),
		common.LeftPadBytes(o.Taker.Bytes(), 32),
		word(o.TokenID),
		word(o.MakerAmount),
		word(o.TakerAmount),
		word(o.Expiration),
		word(o.Nonce),
		word(o.FeeRateBps),
		word(big.NewInt(int64(o.Side))),
		word(big.NewInt(int64(o.SignatureType))),
	)
	return typedDataHash(domainSep, structHash)
}

func (s *Signer) sign(digest []byte) (string, error) {
	sig, err := ethcrypto.Sign(digest, s.key)
	if err != nil {
		return "", fmt.Errorf("crypto: sign digest: %w", err)
	}
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

func typedDataHash(domainSep, structHash []byte) []byte {
	return ethcrypto.Keccak256([]byte{0x19, 0x01}, domainSep, structHash)
}

// word left-pads n to a 32-byte ABI word. Nil encodes as zero.
func word(n *big.Int) []byte {
	if n == nil {
		return make([]byte, 32)
	}
	return common.LeftPadBytes(n.Bytes(), 32)
}
