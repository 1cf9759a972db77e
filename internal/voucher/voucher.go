// Package voucher derives per-item decryption material and decrypts license
// vouchers.
//
// The key and IV are derived from the account's device identity plus the
// catalog identifier; the voucher itself is an AES-CBC encrypted JSON blob
// whose plaintext carries the media key and IV the converter needs.
package voucher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Voucher is the decrypted license payload. Key and IV are hex strings
// passed straight to the conversion tool.
type Voucher struct {
	Key string `json:"key"`
	IV  string `json:"iv"`
	// Rule payloads and expiry metadata ride along undecoded.
	Rules json.RawMessage `json:"rules,omitempty"`
}

// Derive computes the voucher key and IV for one item: SHA-256 over the
// ASCII concatenation of the device identity and item identifier, split into
// key (first half) and IV (second half).
func Derive(deviceType, deviceSerial, customerID, itemID string) (key, iv [16]byte) {
	digest := sha256.Sum256([]byte(deviceType + deviceSerial + customerID + itemID))
	copy(key[:], digest[:16])
	copy(iv[:], digest[16:])
	return key, iv
}

// Decrypt base64-decodes and AES-CBC decrypts an encrypted voucher, then
// parses the JSON payload. The plaintext is unpadded; everything after the
// final closing brace is garbage and discarded.
func Decrypt(voucherB64 string, key, iv [16]byte) (*Voucher, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimSpace(voucherB64))
	if err != nil {
		return nil, fmt.Errorf("decode voucher: %w", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("voucher length %d is not a multiple of the cipher block size", len(ciphertext))
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv[:]).CryptBlocks(plaintext, ciphertext)

	end := strings.LastIndexByte(string(plaintext), '}')
	if end < 0 {
		return nil, errors.New("decrypted voucher contains no JSON object")
	}

	var voucher Voucher
	if err := json.Unmarshal(plaintext[:end+1], &voucher); err != nil {
		return nil, fmt.Errorf("parse voucher: %w", err)
	}
	if voucher.Key == "" || voucher.IV == "" {
		return nil, errors.New("voucher missing key or iv")
	}
	return &voucher, nil
}
