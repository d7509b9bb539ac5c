package receipt

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/tonkeeper/2fa-extension/credential"
)

const hashAlg = "sha256"

// RenderOptions controls Render.
type RenderOptions struct {
	// Signer, when set, signs the receipt and fills the CRYPTO section.
	Signer credential.Signer
}

// Render produces canonical receipt bytes.
func Render(r Receipt, opts RenderOptions) ([]byte, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	if opts.Signer == nil {
		return render(r, nil), nil
	}
	pub := opts.Signer.Public()
	if err := pub.Validate(); err != nil {
		return nil, fmt.Errorf("receipt: signer key: %w", err)
	}
	const placeholder = "Signature: 0"
	out := render(r, []string{
		"Hash-Alg: " + hashAlg,
		"Signature-Alg: " + string(pub.Alg),
		"Signer-Key: " + pub.String(),
		placeholder,
	})
	scope, err := signatureScope(out)
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256(scope)
	sig, err := opts.Signer.Sign(digest[:])
	if err != nil {
		return nil, fmt.Errorf("receipt: sign: %w", err)
	}
	return []byte(strings.Replace(string(out), placeholder, "Signature: "+base64.StdEncoding.EncodeToString(sig), 1)), nil
}

// VerifySignature checks the CRYPTO section of canonical receipt bytes.
//
// It returns (false, nil) for an unsigned receipt and an error for a
// malformed, non-canonical or invalid one. The signer key is returned so
// callers can decide whether they trust it.
func VerifySignature(b []byte) (bool, credential.PublicKey, error) {
	doc, err := parse(b)
	if err != nil {
		return false, credential.PublicKey{}, err
	}
	if len(doc.crypto) == 0 {
		return false, credential.PublicKey{}, nil
	}
	f, err := fields("CRYPTO", doc.crypto)
	if err != nil {
		return false, credential.PublicKey{}, err
	}
	for _, k := range []string{"Hash-Alg", "Signature-Alg", "Signer-Key", "Signature"} {
		if _, ok := f[k]; !ok {
			return false, credential.PublicKey{}, errors.New("receipt: CRYPTO: incomplete signature fields")
		}
	}
	if len(f) != 4 {
		return false, credential.PublicKey{}, errors.New("receipt: CRYPTO: unexpected field")
	}
	if f["Hash-Alg"] != hashAlg {
		return false, credential.PublicKey{}, fmt.Errorf("receipt: CRYPTO: unsupported Hash-Alg %q", f["Hash-Alg"])
	}
	pub, err := credential.ParsePublicKey(f["Signer-Key"])
	if err != nil {
		return false, credential.PublicKey{}, fmt.Errorf("receipt: CRYPTO: %w", err)
	}
	if string(pub.Alg) != f["Signature-Alg"] {
		return false, pub, errors.New("receipt: CRYPTO: Signature-Alg does not match Signer-Key")
	}
	sig, err := base64.StdEncoding.DecodeString(f["Signature"])
	if err != nil {
		return false, pub, fmt.Errorf("receipt: CRYPTO: invalid Signature encoding: %w", err)
	}
	scope, err := signatureScope(b)
	if err != nil {
		return false, pub, err
	}
	digest := sha256.Sum256(scope)
	if !credential.Verify(pub, digest[:], sig) {
		return false, pub, errors.New("receipt: CRYPTO: signature did not verify")
	}
	return true, pub, nil
}

func signatureScope(b []byte) ([]byte, error) {
	lines := strings.Split(string(b), "\n")
	out := make([]string, 0, len(lines))
	removed := false
	for _, l := range lines {
		if strings.HasPrefix(l, "Signature: ") {
			if removed {
				return nil, errors.New("receipt: multiple Signature lines")
			}
			removed = true
			continue
		}
		out = append(out, l)
	}
	if !removed {
		return nil, errors.New("receipt: missing Signature line")
	}
	return []byte(strings.Join(out, "\n")), nil
}
