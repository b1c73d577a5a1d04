package encryption

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func newTestService(t *testing.T) Service {
	identity, recipient, err := GenerateIdentity()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(identity, "AGE-SECRET-KEY-1"))
	assert.True(t, strings.HasPrefix(recipient, "age1"))

	service, err := NewService(identity)
	require.NoError(t, err)
	return service
}

func TestEncryptDecrypt(t *testing.T) {
	service := newTestService(t)

	ciphertext, err := service.Encrypt([]byte("hello"))
	require.NoError(t, err)
	assert.NotContains(t, ciphertext, "hello")

	plaintext, err := service.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(plaintext))
}

func TestDecrypt_WrongIdentity(t *testing.T) {
	ciphertext, err := newTestService(t).Encrypt([]byte("secret"))
	require.NoError(t, err)

	_, err = newTestService(t).Decrypt(ciphertext)
	assert.Error(t, err)
}

func TestDecrypt_NotBase64(t *testing.T) {
	_, err := newTestService(t).Decrypt("%%%")
	assert.ErrorContains(t, err, "failed to decode ciphertext")
}

func TestDecryptPrivateKey(t *testing.T) {
	service := newTestService(t)

	ciphertext, err := service.Encrypt([]byte("0x" + testKeyHex))
	require.NoError(t, err)

	key, err := service.DecryptPrivateKey(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", crypto.PubkeyToAddress(key.PublicKey).Hex())

	garbage, err := service.Encrypt([]byte("not a key"))
	require.NoError(t, err)
	_, err = service.DecryptPrivateKey(garbage)
	assert.Error(t, err)
}

func TestNewService_InvalidIdentity(t *testing.T) {
	_, err := NewService("AGE-SECRET-KEY-1NOPE")
	assert.Error(t, err)
}
