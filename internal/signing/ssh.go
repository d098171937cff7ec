package signing

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/ssh"

	"toolpath/internal/document"
)

// SSH signatures use the SSHSIG envelope from OpenSSH's PROTOCOL.sshsig, so
// `ssh-keygen -Y verify -n toolpath` accepts them once armored.
const (
	sshsigMagic     = "SSHSIG"
	sshsigVersion   = 1
	sshsigNamespace = "toolpath"
	sshsigHash      = "sha512"
)

type sshsigSignedData struct {
	Namespace     string
	Reserved      string
	HashAlgorithm string
	Hash          []byte
}

type sshsigBlob struct {
	Version       uint32
	PublicKey     []byte
	Namespace     string
	Reserved      string
	HashAlgorithm string
	Signature     []byte
}

func sshsigMessage(hashAlgorithm string, digest []byte) ([]byte, error) {
	var h []byte
	switch hashAlgorithm {
	case "sha512":
		sum := sha512.Sum512(digest)
		h = sum[:]
	case "sha256":
		sum := sha256.Sum256(digest)
		h = sum[:]
	default:
		return nil, fmt.Errorf("%w: unsupported sshsig hash %q", ErrInvalidSignature, hashAlgorithm)
	}
	signed := ssh.Marshal(sshsigSignedData{
		Namespace:     sshsigNamespace,
		HashAlgorithm: hashAlgorithm,
		Hash:          h,
	})
	return append([]byte(sshsigMagic), signed...), nil
}

type sshSigner struct {
	signer ssh.Signer
}

func (s *sshSigner) Key() document.Key {
	pub := s.signer.PublicKey()
	return document.Key{
		Type:        KeyTypeSSH,
		Fingerprint: ssh.FingerprintSHA256(pub),
		Public:      string(bytes.TrimSpace(ssh.MarshalAuthorizedKey(pub))),
	}
}

func (s *sshSigner) Sign(digest []byte) ([]byte, error) {
	message, err := sshsigMessage(sshsigHash, digest)
	if err != nil {
		return nil, err
	}

	var sig *ssh.Signature
	algSigner, ok := s.signer.(ssh.AlgorithmSigner)
	if ok && s.signer.PublicKey().Type() == ssh.KeyAlgoRSA {
		sig, err = algSigner.SignWithAlgorithm(rand.Reader, message, ssh.KeyAlgoRSASHA512)
	} else {
		sig, err = s.signer.Sign(rand.Reader, message)
	}
	if err != nil {
		return nil, fmt.Errorf("ssh sign: %w", err)
	}

	blob := ssh.Marshal(sshsigBlob{
		Version:       sshsigVersion,
		PublicKey:     s.signer.PublicKey().Marshal(),
		Namespace:     sshsigNamespace,
		HashAlgorithm: sshsigHash,
		Signature:     ssh.Marshal(sig),
	})
	return append([]byte(sshsigMagic), blob...), nil
}

func loadSSHSigner(data []byte) (Signer, error) {
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return &sshSigner{signer: signer}, nil
}

func generateSSH(comment string) (Signer, []byte, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	block, err := ssh.MarshalPrivateKey(priv, comment)
	if err != nil {
		return nil, nil, err
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, nil, err
	}
	return &sshSigner{signer: signer}, pem.EncodeToMemory(block), nil
}

type sshVerifier struct {
	pub ssh.PublicKey
}

func newSSHVerifier(public string) (Verifier, error) {
	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(public))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return &sshVerifier{pub: pub}, nil
}

func (v *sshVerifier) Fingerprint() string { return ssh.FingerprintSHA256(v.pub) }

func (v *sshVerifier) Verify(digest, sig []byte) error {
	if !bytes.HasPrefix(sig, []byte(sshsigMagic)) {
		return fmt.Errorf("%w: missing %s preamble", ErrInvalidSignature, sshsigMagic)
	}
	var blob sshsigBlob
	if err := ssh.Unmarshal(sig[len(sshsigMagic):], &blob); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if blob.Version != sshsigVersion {
		return fmt.Errorf("%w: unsupported sshsig version %d", ErrInvalidSignature, blob.Version)
	}
	if blob.Namespace != sshsigNamespace {
		return fmt.Errorf("%w: namespace %q", ErrInvalidSignature, blob.Namespace)
	}
	if !bytes.Equal(blob.PublicKey, v.pub.Marshal()) {
		return fmt.Errorf("%w: signed by a different key", ErrInvalidSignature)
	}

	var inner ssh.Signature
	if err := ssh.Unmarshal(blob.Signature, &inner); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	message, err := sshsigMessage(blob.HashAlgorithm, digest)
	if err != nil {
		return err
	}
	if err := v.pub.Verify(message, &inner); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}
