package credential

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"github.com/cloudflare/circl/sign/ed448"
	"github.com/stretchr/testify/require"
)

type edSigner struct{ priv ed25519.PrivateKey }

func newEdSigner(b byte) *edSigner {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = b + byte(i)
	}
	return &edSigner{priv: ed25519.NewKeyFromSeed(seed)}
}

func (s *edSigner) Public() PublicKey {
	return Ed25519Key(s.priv.Public().(ed25519.PublicKey))
}

func (s *edSigner) Sign(digest []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, digest), nil
}

func TestParsePublicKeyRoundTrip(t *testing.T) {
	k := newEdSigner(1).Public()
	parsed, err := ParsePublicKey(k.String())
	require.NoError(t, err)
	require.True(t, k.Equal(parsed))

	_, err = ParsePublicKey("ed25519")
	require.ErrorIs(t, err, ErrInvalidKey)
	_, err = ParsePublicKey("ed25519:AAAA")
	require.ErrorIs(t, err, ErrInvalidKey)
	_, err = ParsePublicKey("rsa:AAAA")
	require.ErrorIs(t, err, ErrUnsupportedAlg)
}

func TestValidateRejectsOffCurvePoint(t *testing.T) {
	bad := make([]byte, p256PointSize)
	bad[0] = 4
	bad[1] = 1
	err := PublicKey{Alg: AlgECDSAP256, Key: bad}.Validate()
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestVerifyAlgorithms(t *testing.T) {
	digest := sha256.Sum256([]byte("request"))
	other := sha256.Sum256([]byte("other"))

	t.Run("ed25519", func(t *testing.T) {
		s := newEdSigner(7)
		sig, err := s.Sign(digest[:])
		require.NoError(t, err)
		require.True(t, Verify(s.Public(), digest[:], sig))
		require.False(t, Verify(s.Public(), other[:], sig))
	})

	t.Run("ed448", func(t *testing.T) {
		pub, priv, err := ed448.GenerateKey(rand.Reader)
		require.NoError(t, err)
		sig := ed448.Sign(priv, digest[:], "")
		k := PublicKey{Alg: AlgEd448, Key: []byte(pub)}
		require.NoError(t, k.Validate())
		require.True(t, Verify(k, digest[:], sig))
		require.False(t, Verify(k, other[:], sig))
	})

	t.Run("dilithium3", func(t *testing.T) {
		pk, sk, err := mode3.GenerateKey(rand.Reader)
		require.NoError(t, err)
		sig := make([]byte, mode3.SignatureSize)
		mode3.SignTo(sk, digest[:], sig)
		raw, err := pk.MarshalBinary()
		require.NoError(t, err)
		k := PublicKey{Alg: AlgDilithium3, Key: raw}
		require.NoError(t, k.Validate())
		require.True(t, Verify(k, digest[:], sig))
		require.False(t, Verify(k, other[:], sig))
	})

	t.Run("ecdsa-p256", func(t *testing.T) {
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)
		sig, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
		require.NoError(t, err)
		ek, err := priv.PublicKey.ECDH()
		require.NoError(t, err)
		k := PublicKey{Alg: AlgECDSAP256, Key: ek.Bytes()}
		require.NoError(t, k.Validate())
		require.True(t, Verify(k, digest[:], sig))
		require.False(t, Verify(k, other[:], sig))
	})
}

func TestVerifyMalformedIsFalse(t *testing.T) {
	digest := sha256.Sum256([]byte("x"))
	cases := []PublicKey{
		{},
		{Alg: AlgEd25519, Key: []byte{1, 2, 3}},
		{Alg: AlgEd448, Key: []byte{1}},
		{Alg: AlgDilithium3, Key: []byte{1}},
		{Alg: AlgECDSAP256, Key: make([]byte, p256PointSize)},
		{Alg: "rsa", Key: []byte{1}},
	}
	for _, k := range cases {
		require.False(t, Verify(k, digest[:], []byte{1, 2, 3}), "key %q", k.Alg)
		require.False(t, Verify(k, digest[:], nil), "key %q", k.Alg)
	}
}

func TestDigestAlgorithms(t *testing.T) {
	for _, alg := range []HashAlg{"", HashSHA256, HashSHA512, HashSHA3256} {
		d, err := Digest(alg, []byte("m"))
		require.NoError(t, err)
		require.NotEmpty(t, d)
	}
	a, _ := Digest("", []byte("m"))
	b, _ := Digest(HashSHA256, []byte("m"))
	require.Equal(t, a, b)

	_, err := Digest("md5", []byte("m"))
	require.ErrorIs(t, err, ErrUnsupportedHash)
}

func TestCertificateMessageLayout(t *testing.T) {
	key := newEdSigner(3).Public()
	c := &Certificate{ValidUntil: 0x0102030405060708, Key: key}
	msg := c.SignedMessage()
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, msg[:8])
	require.Equal(t, []byte(key.Key), msg[8:])
}

func TestCertificateVerify(t *testing.T) {
	root := newEdSigner(10)
	leaf := newEdSigner(20)

	cert, err := IssueCertificate(root, leaf.Public(), 1000)
	require.NoError(t, err)
	require.NoError(t, cert.Verify(root.Public(), 999))
	require.ErrorIs(t, cert.Verify(root.Public(), 1000), ErrCertificateExpired)
	require.ErrorIs(t, cert.Verify(newEdSigner(11).Public(), 10), ErrCertificateInvalid)

	var missing *Certificate
	require.ErrorIs(t, missing.Verify(root.Public(), 0), ErrMissingCertificate)

	tampered := cert.Clone()
	tampered.ValidUntil = 5000
	require.ErrorIs(t, tampered.Verify(root.Public(), 10), ErrCertificateInvalid)
}

func TestDeviceSetRegistry(t *testing.T) {
	ds := &DeviceSet{Service: newEdSigner(1).Public(), Seed: newEdSigner(2).Public()}
	k := newEdSigner(3).Public()

	require.NoError(t, ds.AddDevice(5, k))
	require.ErrorIs(t, ds.AddDevice(5, newEdSigner(4).Public()), ErrDuplicateID)
	// Only ids are unique; the same key may sit under another id.
	require.NoError(t, ds.AddDevice(1, k))
	require.Equal(t, []uint32{1, 5}, ds.IDs())

	require.NoError(t, ds.RemoveDevice(5))
	require.ErrorIs(t, ds.RemoveDevice(5), ErrUnknownID)
	_, ok := ds.Device(5)
	require.False(t, ok)

	require.NoError(t, ds.SetDevice(1, newEdSigner(9).Public()))
	got, _ := ds.Device(1)
	require.True(t, got.Equal(newEdSigner(9).Public()))
}

func TestDeviceAnchors(t *testing.T) {
	service, seed, device := newEdSigner(1), newEdSigner(2), newEdSigner(3)
	st, err := NewDeviceStore(service.Public(), seed.Public(), map[uint32]PublicKey{0: device.Public()})
	require.NoError(t, err)
	require.Equal(t, ShapeDevices, st.Shape())

	digest, err := st.Digest([]byte("msg"))
	require.NoError(t, err)
	a := st.Anchors()

	sig, _ := service.Sign(digest)
	require.True(t, a.VerifyPrimary(digest, sig, nil, 0))
	sig, _ = device.Sign(digest)
	require.True(t, a.VerifySecondary(digest, sig, 0))
	require.False(t, a.VerifySecondary(digest, sig, 1))
	sig, _ = seed.Sign(digest)
	require.True(t, a.VerifySeed(digest, sig))
	require.False(t, a.VerifySecondary(digest, sig, 0))
}

func TestCertificateAnchors(t *testing.T) {
	root, seed, leaf := newEdSigner(1), newEdSigner(2), newEdSigner(3)
	st, err := NewCertificateStore(root.Public(), seed.Public())
	require.NoError(t, err)
	require.Equal(t, ShapeCertificate, st.Shape())

	cert, err := IssueCertificate(root, leaf.Public(), 100)
	require.NoError(t, err)
	digest, _ := st.Digest([]byte("msg"))
	a := st.Anchors()

	sig, _ := leaf.Sign(digest)
	require.True(t, a.VerifyPrimary(digest, sig, cert, 50))
	require.False(t, a.VerifyPrimary(digest, sig, cert, 100))
	require.False(t, a.VerifyPrimary(digest, sig, nil, 50))

	sig, _ = seed.Sign(digest)
	require.True(t, a.VerifySecondary(digest, sig, 42))
}

func TestStoreValidateAndClone(t *testing.T) {
	require.ErrorIs(t, (&Store{}).Validate(), ErrInvalidShape)
	both := &Store{Devices: &DeviceSet{}, Certificates: &CertificateTrust{}}
	require.ErrorIs(t, both.Validate(), ErrInvalidShape)

	_, err := NewDeviceStore(PublicKey{Alg: AlgEd25519, Key: []byte{1}}, newEdSigner(2).Public(), nil)
	require.True(t, errors.Is(err, ErrInvalidKey))

	st, err := NewDeviceStore(newEdSigner(1).Public(), newEdSigner(2).Public(), map[uint32]PublicKey{7: newEdSigner(3).Public()})
	require.NoError(t, err)
	cp := st.Clone()
	require.NoError(t, cp.Devices.RemoveDevice(7))
	_, ok := st.Devices.Device(7)
	require.True(t, ok)

	st.HashAlg = "md5"
	require.ErrorIs(t, st.Validate(), ErrUnsupportedHash)
}
