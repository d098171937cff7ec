package signing

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"toolpath/internal/document"
)

// Key types recognised in actor key entries.
const (
	KeyTypeEd25519 = "ed25519"
	KeyTypeSSH     = "ssh"
	KeyTypePGP     = "pgp"
)

var (
	ErrUnsupportedKeyType  = errors.New("unsupported key type")
	ErrInvalidKey          = errors.New("invalid key material")
	ErrKeyUnavailable      = errors.New("key has no public material")
	ErrFingerprintMismatch = errors.New("fingerprint does not match key material")
	ErrInvalidSignature    = errors.New("invalid signature")
)

// Signer signs digests with a private key.
type Signer interface {
	// Key describes the public half as an actor key entry.
	Key() document.Key
	Sign(digest []byte) ([]byte, error)
}

// Verifier checks a signature over a digest against a public key.
type Verifier interface {
	Fingerprint() string
	Verify(digest, sig []byte) error
}

// SupportedKeyType reports whether keyType has a signer and verifier.
func SupportedKeyType(keyType string) bool {
	switch keyType {
	case KeyTypeEd25519, KeyTypeSSH, KeyTypePGP:
		return true
	}
	return false
}

// LoadSigner parses private key material of the given type: PKCS#8 PEM for
// ed25519, an OpenSSH private key for ssh, an armored secret key for pgp.
func LoadSigner(keyType string, data []byte) (Signer, error) {
	switch keyType {
	case KeyTypeEd25519:
		return loadEd25519Signer(data)
	case KeyTypeSSH:
		return loadSSHSigner(data)
	case KeyTypePGP:
		return loadPGPSigner(data)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedKeyType, keyType)
}

func LoadSignerFile(keyType, path string) (Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	return LoadSigner(keyType, data)
}

// VerifierFor builds a verifier from an actor key entry and checks that the
// declared fingerprint matches the material.
func VerifierFor(key document.Key) (Verifier, error) {
	if key.Public == "" {
		return nil, fmt.Errorf("%w: %s", ErrKeyUnavailable, key.Fingerprint)
	}

	var (
		v   Verifier
		err error
	)
	switch key.Type {
	case KeyTypeEd25519:
		v, err = newEd25519Verifier(key.Public)
	case KeyTypeSSH:
		v, err = newSSHVerifier(key.Public)
	case KeyTypePGP:
		v, err = newPGPVerifier(key.Public)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKeyType, key.Type)
	}
	if err != nil {
		return nil, err
	}
	if v.Fingerprint() != key.Fingerprint {
		return nil, fmt.Errorf("%w: declared %s, computed %s", ErrFingerprintMismatch, key.Fingerprint, v.Fingerprint())
	}
	return v, nil
}

// Generate creates a fresh key of keyType and returns its signer with the
// encoded private key. The actor is used as the user id of pgp keys.
func Generate(keyType, actor string) (Signer, []byte, error) {
	switch keyType {
	case KeyTypeEd25519:
		return generateEd25519()
	case KeyTypeSSH:
		return generateSSH(actor)
	case KeyTypePGP:
		return generatePGP(actor)
	}
	return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedKeyType, keyType)
}

func ed25519Fingerprint(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return "SHA256:" + base64.RawStdEncoding.EncodeToString(sum[:])
}

type ed25519Signer struct {
	priv ed25519.PrivateKey
}

func (s *ed25519Signer) Key() document.Key {
	pub := s.priv.Public().(ed25519.PublicKey)
	return document.Key{
		Type:        KeyTypeEd25519,
		Fingerprint: ed25519Fingerprint(pub),
		Public:      base64.StdEncoding.EncodeToString(pub),
	}
}

func (s *ed25519Signer) Sign(digest []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, digest), nil
}

func loadEd25519Signer(data []byte) (Signer, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: expected a PEM block", ErrInvalidKey)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an ed25519 key", ErrInvalidKey)
	}
	return &ed25519Signer{priv: priv}, nil
}

func generateEd25519() (Signer, []byte, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, err
	}
	encoded := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	return &ed25519Signer{priv: priv}, encoded, nil
}

type ed25519Verifier struct {
	pub ed25519.PublicKey
}

func newEd25519Verifier(public string) (Verifier, error) {
	raw, err := base64.StdEncoding.DecodeString(public)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, ed25519.PublicKeySize, len(raw))
	}
	return &ed25519Verifier{pub: ed25519.PublicKey(raw)}, nil
}

func (v *ed25519Verifier) Fingerprint() string { return ed25519Fingerprint(v.pub) }

func (v *ed25519Verifier) Verify(digest, sig []byte) error {
	if !ed25519.Verify(v.pub, digest, sig) {
		return ErrInvalidSignature
	}
	return nil
}
