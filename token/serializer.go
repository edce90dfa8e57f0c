package token

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
)

// Token decode failures. Parse distinguishes a bad integrity tag from a
// token that verified but could not be decoded.
var (
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrMalformedToken   = errors.New("malformed token")
)

const (
	ivSize  = aes.BlockSize
	macSize = sha256.Size
	keySize = 32
)

// Serializer converts values to and from opaque URL-safe token strings.
// Values are JSON-serialized, encrypted with AES-256-CTR under the crypt
// key and authenticated with an HMAC-SHA256 tag under the sign key. The
// tag covers the IV and the ciphertext, so tampering with any part of the
// token invalidates the whole of it.
type Serializer struct {
	encKey []byte
	macKey []byte
}

// NewSerializer derives full-strength encryption and signing keys from
// the configured secrets. The secrets may be any non-empty strings; HKDF
// stretches them to the sizes the ciphers need.
func NewSerializer(cryptKey, signKey string) (*Serializer, error) {
	if cryptKey == "" || signKey == "" {
		return nil, errors.New("[NewSerializer] crypt and sign keys are required")
	}

	encKey, err := deriveKey(cryptKey, "encrypt")
	if err != nil {
		return nil, errors.Wrap(err, "[NewSerializer] derive encryption key")
	}
	macKey, err := deriveKey(signKey, "sign")
	if err != nil {
		return nil, errors.Wrap(err, "[NewSerializer] derive signing key")
	}

	return &Serializer{encKey: encKey, macKey: macKey}, nil
}

func deriveKey(secret, purpose string) ([]byte, error) {
	key := make([]byte, keySize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("oauth2 token "+purpose))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Stringify serializes v into an opaque token string. A fresh random IV
// is used per call, so repeated calls on identical input produce
// different tokens.
func (s *Serializer) Stringify(v any) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, "Serializer.Stringify json.Marshal")
	}

	buf := make([]byte, ivSize+len(plaintext)+macSize)
	iv := buf[:ivSize]
	if _, err := rand.Read(iv); err != nil {
		return "", errors.Wrap(err, "Serializer.Stringify rand.Read")
	}

	block, err := aes.NewCipher(s.encKey)
	if err != nil {
		return "", errors.Wrap(err, "Serializer.Stringify aes.NewCipher")
	}
	cipher.NewCTR(block, iv).XORKeyStream(buf[ivSize:ivSize+len(plaintext)], plaintext)

	mac := hmac.New(sha256.New, s.macKey)
	mac.Write(buf[:ivSize+len(plaintext)])
	mac.Sum(buf[ivSize+len(plaintext):ivSize+len(plaintext)])

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Parse decodes an opaque token string into v. The integrity tag is
// verified before any decryption happens; a token that fails the check is
// rejected with ErrInvalidSignature and never partially decoded.
func (s *Serializer) Parse(tok string, v any) error {
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		return errors.Wrap(ErrMalformedToken, err.Error())
	}
	if len(raw) < ivSize+macSize {
		return ErrMalformedToken
	}

	body, tag := raw[:len(raw)-macSize], raw[len(raw)-macSize:]

	mac := hmac.New(sha256.New, s.macKey)
	mac.Write(body)
	if !hmac.Equal(tag, mac.Sum(nil)) {
		return ErrInvalidSignature
	}

	block, err := aes.NewCipher(s.encKey)
	if err != nil {
		return errors.Wrap(err, "Serializer.Parse aes.NewCipher")
	}
	plaintext := make([]byte, len(body)-ivSize)
	cipher.NewCTR(block, body[:ivSize]).XORKeyStream(plaintext, body[ivSize:])

	if err := json.Unmarshal(plaintext, v); err != nil {
		return errors.Wrap(ErrMalformedToken, err.Error())
	}
	return nil
}

// RandomString returns a cryptographically random URL-safe string
// carrying the requested number of bits of entropy. Used for single-use
// grant codes.
func RandomString(bits int) (string, error) {
	if bits <= 0 || bits%8 != 0 {
		return "", errors.Errorf("[RandomString] bits must be a positive multiple of 8, got %d", bits)
	}
	b := make([]byte, bits/8)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "[RandomString] rand.Read")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
