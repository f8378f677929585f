package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func recoverAddress(t *testing.T, digest []byte, sigHex string) common.Address {
	t.Helper()
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	require.NoError(t, err)
	require.Len(t, sig, 65)
	sig[64] -= 27
	pub, err := ethcrypto.SigToPub(digest, sig)
	require.NoError(t, err)
	return ethcrypto.PubkeyToAddress(*pub)
}

func TestSigner_Address(t *testing.T) {
	s, err := NewSigner("0x"+testKey, 137)
	require.NoError(t, err)
	assert.Equal(t, "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23", s.Address().Hex())

	_, err = NewSigner("not-hex", 137)
	assert.Error(t, err)
}

func TestSigner_SignOrderRecovers(t *testing.T) {
	s, err := NewSigner(testKey, 137)
	require.NoError(t, err)

	o := OrderPayload{
		Salt:        big.NewInt(12345),
		Maker:       s.Address(),
		Signer:      s.Address(),
		TokenID:     big.NewInt(987654321),
		MakerAmount: big.NewInt(10_000_000),
		TakerAmount: big.NewInt(25_000_000),
		Side:        SideBuy,
	}
	standard := common.HexToAddress("0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E")
	negRisk := common.HexToAddress("0xC5d563A36AE78145C45a50134d48A1215220f80a")

	sig, err := s.SignOrder(o, standard)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), recoverAddress(t, s.orderDigest(o, standard), sig))
	assert.NotEqual(t, s.orderDigest(o, standard), s.orderDigest(o, negRisk))
}

func TestSigner_SignAuthRecovers(t *testing.T) {
	s, err := NewSigner(testKey, 80002)
	require.NoError(t, err)

	sig, err := s.SignAuth(1700000000, 0)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), recoverAddress(t, s.authDigest(1700000000, 0), sig))
	assert.NotEqual(t, s.authDigest(1700000000, 0), s.authDigest(1700000001, 0))
}

func TestAPICreds_L2Headers(t *testing.T) {
	secret := base64.URLEncoding.EncodeToString([]byte("shh"))
	c := APICreds{Key: "key-1", Secret: secret, Passphrase: "pass"}
	require.True(t, c.Valid())

	h := c.L2Headers("0xabc", "POST", "/order", `{"a":1}`, 1700000000)
	mac := hmac.New(sha256.New, []byte("shh"))
	mac.Write([]byte(`1700000000POST/order{"a":1}`))

	assert.Equal(t, base64.URLEncoding.EncodeToString(mac.Sum(nil)), h["POLY_SIGNATURE"])
	assert.Equal(t, "1700000000", h["POLY_TIMESTAMP"])
	assert.Equal(t, "key-1", h["POLY_API_KEY"])
	assert.Equal(t, "0xabc", h["POLY_ADDRESS"])
	assert.NotContains(t, c.String(), secret)
}

func TestSealKey_RoundTrip(t *testing.T) {
	sealed, err := SealKey("0x"+testKey, "hunter2")
	require.NoError(t, err)

	got, err := OpenKey(sealed, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKey, got)

	_, err = OpenKey(sealed, "wrong")
	assert.Error(t, err)

	_, err = SealKey("abcd", "hunter2")
	assert.Error(t, err)
}

func TestKeySource_Resolve(t *testing.T) {
	_, err := KeySource{}.Resolve()
	assert.ErrorIs(t, err, ErrNoKey)

	got, err := KeySource{RawHex: "0x" + testKey, SealedPath: "/nonexistent"}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, testKey, got, "raw key wins")

	sealed, err := SealKey(testKey, "pw")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "wallet.json")
	require.NoError(t, os.WriteFile(path, sealed, 0o600))

	got, err = KeySource{SealedPath: path, Password: "pw"}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, testKey, got)
}
