package token

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDecrypter hands back a fixed content-encryption key, recording what
// it was asked to decrypt.
type fakeDecrypter struct {
	cek       []byte
	err       error
	gotKeyID  string
	gotCipher []byte
}

func (f *fakeDecrypter) Decrypt(_ context.Context, keyID string, ciphertext []byte) ([]byte, error) {
	f.gotKeyID = keyID
	f.gotCipher = ciphertext
	if f.err != nil {
		return nil, f.err
	}
	return f.cek, nil
}

// sealJWE wraps an inner JWT in a compact RSA-OAEP-256/A256GCM JWE whose
// CEK the fake decrypter will return.
func sealJWE(t *testing.T, inner string, cek []byte) string {
	t.Helper()

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RSA-OAEP-256","enc":"A256GCM"}`))
	wrappedKey := make([]byte, 256)
	_, err := rand.Read(wrappedKey)
	require.NoError(t, err)

	block, err := aes.NewCipher(cek)
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)

	iv := make([]byte, gcm.NonceSize())
	_, err = rand.Read(iv)
	require.NoError(t, err)

	sealed := gcm.Seal(nil, iv, []byte(inner), []byte(header))
	ciphertext := sealed[:len(sealed)-gcm.Overhead()]
	tag := sealed[len(sealed)-gcm.Overhead():]

	enc := base64.RawURLEncoding.EncodeToString
	return header + "." + enc(wrappedKey) + "." + enc(iv) + "." + enc(ciphertext) + "." + enc(tag)
}

func TestDecode_EncryptedToken(t *testing.T) {
	cek := make([]byte, 32)
	_, err := rand.Read(cek)
	require.NoError(t, err)

	inner := signToken(t, jwtv5.MapClaims{
		"iss":       trustAnchor,
		"client_id": "client-1",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})

	dec := &fakeDecrypter{cek: cek}
	d := &Decoder{Issuer: trustAnchor, Decrypter: dec, EncryptionKeyID: "enc-key-1"}

	got, err := d.Decode(context.Background(), sealJWE(t, inner, cek))
	require.NoError(t, err)
	assert.Equal(t, inner, got.EncodedJWT)
	assert.Equal(t, "client-1", got.Claims.ClientID)
	assert.Equal(t, "enc-key-1", dec.gotKeyID)
	assert.NotEmpty(t, dec.gotCipher)
}

func TestDecode_EncryptedToken_DecryptFails(t *testing.T) {
	cek := make([]byte, 32)
	_, err := rand.Read(cek)
	require.NoError(t, err)

	inner := signToken(t, validClaims())
	d := &Decoder{
		Issuer:          trustAnchor,
		Decrypter:       &fakeDecrypter{err: errors.New("kms unavailable")},
		EncryptionKeyID: "enc-key-1",
	}

	_, err = d.Decode(context.Background(), sealJWE(t, inner, cek))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content encryption key")
}

func TestDecode_EncryptedToken_WrongCEK(t *testing.T) {
	cek := make([]byte, 32)
	_, err := rand.Read(cek)
	require.NoError(t, err)
	wrong := make([]byte, 32)
	_, err = rand.Read(wrong)
	require.NoError(t, err)

	inner := signToken(t, validClaims())
	d := &Decoder{Issuer: trustAnchor, Decrypter: &fakeDecrypter{cek: wrong}, EncryptionKeyID: "k"}

	_, err = d.Decode(context.Background(), sealJWE(t, inner, cek))
	assert.Error(t, err)
}

func TestDecode_EncryptedToken_NoDecrypter(t *testing.T) {
	d := &Decoder{Issuer: trustAnchor}
	_, err := d.Decode(context.Background(), "a.b.c.d.e")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}
