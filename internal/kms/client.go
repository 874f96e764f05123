// Package kms is the client side of the remote key-management boundary.
// Two operations are consumed: decrypt a ciphertext under a named key
// (RSAES-OAEP-SHA-256) and fetch the DER-encoded public key for a named
// key. Both are network-bound and treated as fallible and latent; key
// material never lives in this process.
package kms

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const decryptAlgorithm = "RSAES_OAEP_SHA_256"

// Client talks to the key-management service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client for the given base URL. timeout bounds every
// call; it is the only timeout budget the pipeline has for this boundary.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Decrypt asks the service to decrypt ciphertext under keyID and returns
// the plaintext.
func (c *Client) Decrypt(ctx context.Context, keyID string, ciphertext []byte) ([]byte, error) {
	reqBody, _ := json.Marshal(struct {
		Ciphertext string `json:"ciphertext"`
		Algorithm  string `json:"algorithm"`
	}{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		Algorithm:  decryptAlgorithm,
	})

	var out struct {
		Plaintext string `json:"plaintext"`
	}
	if err := c.do(ctx, http.MethodPost, "/keys/"+url.PathEscape(keyID)+"/decrypt", reqBody, &out); err != nil {
		return nil, err
	}
	if out.Plaintext == "" {
		return nil, fmt.Errorf("kms: decrypted plaintext missing from response")
	}
	plaintext, err := base64.StdEncoding.DecodeString(out.Plaintext)
	if err != nil {
		return nil, fmt.Errorf("kms: plaintext not valid base64: %w", err)
	}
	return plaintext, nil
}

// GetPublicKey fetches the DER (SPKI) public key bytes for keyID.
func (c *Client) GetPublicKey(ctx context.Context, keyID string) ([]byte, error) {
	var out struct {
		PublicKey string `json:"public_key"`
	}
	if err := c.do(ctx, http.MethodGet, "/keys/"+url.PathEscape(keyID)+"/public", nil, &out); err != nil {
		return nil, err
	}
	if out.PublicKey == "" {
		return nil, fmt.Errorf("kms: public key missing from response")
	}
	der, err := base64.StdEncoding.DecodeString(out.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("kms: public key not valid base64: %w", err)
	}
	return der, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("kms: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("kms: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("kms: %s %s: status=%d body=%s", method, path, resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("kms: decode response: %w", err)
	}
	return nil
}
