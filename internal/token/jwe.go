package token

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// unwrapJWE decrypts a 5-part compact JWE and returns the inner encoded JWT.
// The content-encryption key is wrapped with RSA-OAEP-256 under the remote
// encryption key; the payload is A256GCM with the protected header as AAD.
func (d *Decoder) unwrapJWE(ctx context.Context, jwe string) (string, error) {
	parts := strings.Split(jwe, ".")
	if len(parts) != 5 {
		return "", errors.New("malformed JWE")
	}

	headerRaw, err := b64(parts[0])
	if err != nil {
		return "", fmt.Errorf("malformed JWE header: %w", err)
	}
	var header struct {
		Alg string `json:"alg"`
		Enc string `json:"enc"`
	}
	if err := json.Unmarshal(headerRaw, &header); err != nil {
		return "", fmt.Errorf("malformed JWE header: %w", err)
	}
	if header.Alg != "RSA-OAEP-256" || header.Enc != "A256GCM" {
		return "", fmt.Errorf("unsupported JWE algorithms %s/%s", header.Alg, header.Enc)
	}

	wrappedKey, err := b64(parts[1])
	if err != nil {
		return "", fmt.Errorf("malformed JWE encrypted key: %w", err)
	}
	iv, err := b64(parts[2])
	if err != nil {
		return "", fmt.Errorf("malformed JWE iv: %w", err)
	}
	ciphertext, err := b64(parts[3])
	if err != nil {
		return "", fmt.Errorf("malformed JWE ciphertext: %w", err)
	}
	tag, err := b64(parts[4])
	if err != nil {
		return "", fmt.Errorf("malformed JWE tag: %w", err)
	}

	cek, err := d.Decrypter.Decrypt(ctx, d.EncryptionKeyID, wrappedKey)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt content encryption key: %w", err)
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return "", errors.New("decrypted content encryption key is not a valid AES key")
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		return "", fmt.Errorf("failed to initialise AES-GCM: %w", err)
	}

	// GCM expects ciphertext||tag; AAD is the ASCII protected header.
	plaintext, err := gcm.Open(nil, iv, append(ciphertext, tag...), []byte(parts[0]))
	if err != nil {
		return "", errors.New("failed to decrypt token payload")
	}

	return string(plaintext), nil
}

func b64(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}
