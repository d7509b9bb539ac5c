package keys

import "github.com/tonkeeper/2fa-extension/credential"

// PublicKeyFromSeed returns the "<alg>:<base64>" public key for a seed.
func PublicKeyFromSeed(alg credential.Alg, seed []byte) (string, error) {
	s, err := SignerFromSeed(alg, seed)
	if err != nil {
		return "", err
	}
	return s.Public().String(), nil
}
