package snacl

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	password = []byte("sikrit")
	message  = []byte("this is a secret message of sorts")
)

func newTestKey(t *testing.T) *SecretKey {
	t.Helper()

	key, err := NewSecretKey(&password, 16, 8, 1)
	require.NoError(t, err)
	return key
}

func TestEncryptDecrypt(t *testing.T) {
	key := newTestKey(t)

	blob, err := key.Encrypt(message)
	require.NoError(t, err)
	require.Len(t, blob, NonceSize+Overhead+len(message))

	decrypted, err := key.Decrypt(blob)
	require.NoError(t, err)
	require.Equal(t, message, decrypted)
}

func TestMarshalUnmarshal(t *testing.T) {
	key := newTestKey(t)
	blob, err := key.Encrypt(message)
	require.NoError(t, err)

	params := key.Marshal()

	var sk SecretKey
	require.NoError(t, sk.Unmarshal(params))
	require.NoError(t, sk.DeriveKey(&password))
	require.Equal(t, key.Parameters, sk.Parameters)

	decrypted, err := sk.Decrypt(blob)
	require.NoError(t, err)
	require.Equal(t, message, decrypted)
}

func TestDeriveKey(t *testing.T) {
	key := newTestKey(t)

	tests := []struct {
		name     string
		password []byte
		wantErr  error
	}{
		{name: "correct", password: password, wantErr: nil},
		{name: "wrong", password: []byte("wrong"), wantErr: ErrInvalidPassword},
		{name: "empty", password: []byte{}, wantErr: ErrInvalidPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key.Zero()
			pass := tt.password
			err := key.DeriveKey(&pass)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUnmarshalMalformed(t *testing.T) {
	var sk SecretKey
	require.ErrorIs(t, sk.Unmarshal([]byte{0x00}), ErrMalformed)
}

func TestDecryptTampered(t *testing.T) {
	key := newTestKey(t)
	blob, err := key.Encrypt(message)
	require.NoError(t, err)

	_, err = key.Decrypt(blob[:NonceSize-1])
	require.ErrorIs(t, err, ErrMalformed)

	tampered := bytes.Clone(blob)
	tampered[len(tampered)-1] ^= 0xff
	_, err = key.Decrypt(tampered)
	require.ErrorIs(t, err, ErrDecryptFailed)
}

func TestCryptoKeyZero(t *testing.T) {
	ck, err := GenerateCryptoKey()
	require.NoError(t, err)
	ck.Zero()
	require.Equal(t, CryptoKey{}, *ck)
}
