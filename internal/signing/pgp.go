package signing

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"

	"toolpath/internal/document"
)

func pgpFingerprint(e *openpgp.Entity) string {
	return fmt.Sprintf("%X", e.PrimaryKey.Fingerprint)
}

type pgpSigner struct {
	entity *openpgp.Entity
	public string
}

func newPGPSigner(e *openpgp.Entity) (*pgpSigner, error) {
	var buf bytes.Buffer
	if err := writeArmoredPublic(&buf, e); err != nil {
		return nil, err
	}
	return &pgpSigner{entity: e, public: buf.String()}, nil
}

func writeArmoredPublic(out io.Writer, e *openpgp.Entity) error {
	w, err := armor.Encode(out, openpgp.PublicKeyType, nil)
	if err != nil {
		return fmt.Errorf("armor public key: %w", err)
	}
	if err := e.Serialize(w); err != nil {
		return fmt.Errorf("serialize public key: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("armor public key: %w", err)
	}
	return nil
}

func (s *pgpSigner) Key() document.Key {
	return document.Key{
		Type:        KeyTypePGP,
		Fingerprint: pgpFingerprint(s.entity),
		Public:      s.public,
	}
}

func (s *pgpSigner) Sign(digest []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := openpgp.DetachSign(&buf, s.entity, bytes.NewReader(digest), nil); err != nil {
		return nil, fmt.Errorf("pgp sign: %w", err)
	}
	return buf.Bytes(), nil
}

func loadPGPSigner(data []byte) (Signer, error) {
	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	for _, e := range entities {
		if e.PrivateKey == nil {
			continue
		}
		if e.PrivateKey.Encrypted {
			return nil, fmt.Errorf("%w: passphrase-protected keys are not supported", ErrInvalidKey)
		}
		return newPGPSigner(e)
	}
	return nil, fmt.Errorf("%w: no secret key in keyring", ErrInvalidKey)
}

func generatePGP(actor string) (Signer, []byte, error) {
	name := actor
	if _, rest, ok := strings.Cut(actor, ":"); ok {
		name = rest
	}
	entity, err := openpgp.NewEntity(name, actor, "", &packet.Config{Algorithm: packet.PubKeyAlgoEdDSA})
	if err != nil {
		return nil, nil, err
	}

	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PrivateKeyType, nil)
	if err != nil {
		return nil, nil, err
	}
	if err := entity.SerializePrivate(w, nil); err != nil {
		return nil, nil, err
	}
	if err := w.Close(); err != nil {
		return nil, nil, err
	}
	signer, err := newPGPSigner(entity)
	if err != nil {
		return nil, nil, err
	}
	return signer, buf.Bytes(), nil
}

type pgpVerifier struct {
	keyring openpgp.EntityList
}

func newPGPVerifier(public string) (Verifier, error) {
	keyring, err := openpgp.ReadArmoredKeyRing(strings.NewReader(public))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(keyring) == 0 {
		return nil, fmt.Errorf("%w: empty keyring", ErrInvalidKey)
	}
	return &pgpVerifier{keyring: keyring}, nil
}

func (v *pgpVerifier) Fingerprint() string { return pgpFingerprint(v.keyring[0]) }

func (v *pgpVerifier) Verify(digest, sig []byte) error {
	signer, err := openpgp.CheckDetachedSignature(v.keyring[:1], bytes.NewReader(digest), bytes.NewReader(sig), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if pgpFingerprint(signer) != v.Fingerprint() {
		return fmt.Errorf("%w: signed by a different key", ErrInvalidSignature)
	}
	return nil
}
