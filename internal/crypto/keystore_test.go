package crypto

import (
	"os"
	"path/filepath"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestKeystoreRoundTrip(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "correct horse battery staple")
	require.NoError(t, err)
	assert.NotContains(t, string(blob), testKeyHex)

	got, err := DecryptKey(blob, "correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)

	_, err = DecryptKey(blob, "wrong password")
	assert.Error(t, err)
}

func TestEncryptKeyRejectsBadInput(t *testing.T) {
	_, err := EncryptKey(testKeyHex, "")
	assert.Error(t, err)

	_, err = EncryptKey("not hex", "pw")
	assert.Error(t, err)

	_, err = EncryptKey("abcd", "pw")
	assert.Error(t, err)
}

func TestLoadSigningKeyRawTakesPrecedence(t *testing.T) {
	key, err := LoadSigningKey(KeySource{RawPrivateKey: "0x" + testKeyHex, KeystorePath: "does-not-exist.json"})
	require.NoError(t, err)

	want, err := ethcrypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	assert.Equal(t, ethcrypto.PubkeyToAddress(want.PublicKey), ethcrypto.PubkeyToAddress(key.PublicKey))
}

func TestLoadSigningKeyFromKeystore(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "pw")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "keystore.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	key, err := LoadSigningKey(KeySource{KeystorePath: path, Password: "pw"})
	require.NoError(t, err)

	want, err := ethcrypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	assert.Equal(t, ethcrypto.PubkeyToAddress(want.PublicKey), ethcrypto.PubkeyToAddress(key.PublicKey))
}

func TestLoadSigningKeyUnconfigured(t *testing.T) {
	_, err := LoadSigningKey(KeySource{})
	assert.Error(t, err)
}
