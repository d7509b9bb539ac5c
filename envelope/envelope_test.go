package envelope

import (
	"bytes"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"github.com/tonkeeper/2fa-extension/credential"
	"github.com/tonkeeper/2fa-extension/keys"
)

func signer(t *testing.T, b byte) credential.Signer {
	t.Helper()
	seed := bytes.Repeat([]byte{b}, keys.SeedSize)
	s, err := keys.SignerFromSeed(credential.AlgEd25519, seed)
	require.NoError(t, err)
	return s
}

func TestSigningMessageLayout(t *testing.T) {
	e := New(OpSendActions, 0x0102, 0x0a0b, []byte{0xff})
	want := []byte{
		0, 0, 0, 130,
		0, 0, 0, 0, 0, 0, 1, 2,
		0, 0, 0, 0, 0, 0, 0x0a, 0x0b,
		0xff,
	}
	require.Equal(t, want, e.SigningMessage())
}

func TestParseOpCode(t *testing.T) {
	for _, op := range SignedOps {
		got, err := ParseOpCode(op.String())
		require.NoError(t, err)
		require.Equal(t, op, got)
	}
	got, err := ParseOpCode("133")
	require.NoError(t, err)
	require.Equal(t, OpFastRecover, got)

	_, err = ParseOpCode("129")
	require.ErrorIs(t, err, ErrUnknownOp)
	_, err = ParseOpCode("transfer")
	require.ErrorIs(t, err, ErrUnknownOp)
}

func TestBuildSignAndRoundTrip(t *testing.T) {
	service, device := signer(t, 1), signer(t, 2)
	env, err := Build(OpSendActions, 3, 1000, SendActions{Message: []byte("actions"), Mode: 3},
		credential.HashSHA256, Credentials{Primary: service, Secondary: device, DeviceID: 4})
	require.NoError(t, err)

	raw, err := env.Marshal()
	require.NoError(t, err)
	back, err := Unmarshal(raw)
	require.NoError(t, err)
	require.Equal(t, env, back)

	digest, err := back.Digest(credential.HashSHA256)
	require.NoError(t, err)
	require.True(t, credential.Verify(service.Public(), digest, back.Primary))
	require.True(t, credential.Verify(device.Public(), digest, back.Secondary))
	require.Equal(t, uint32(4), back.DeviceID)

	v, err := DecodeFor(back.Op, back.Payload)
	require.NoError(t, err)
	require.Equal(t, &SendActions{Message: []byte("actions"), Mode: 3}, v)
}

func TestSeedOnlySigning(t *testing.T) {
	seed := signer(t, 9)
	env, err := Build(OpCancelDelegation, 0, 10, nil, credential.HashSHA3256, Credentials{Secondary: seed})
	require.NoError(t, err)
	require.Empty(t, env.Primary)
	require.Nil(t, env.Certificate)
	digest, err := env.Digest(credential.HashSHA3256)
	require.NoError(t, err)
	require.True(t, credential.Verify(seed.Public(), digest, env.Secondary))

	_, err = Build(OpCancelDelegation, 0, 10, nil, credential.HashSHA256, Credentials{})
	require.ErrorIs(t, err, ErrMissingSigner)
}

func TestEncodeForRejectsWrongPayload(t *testing.T) {
	_, err := EncodeFor(OpAddDevice, RemoveDevice{ID: 1})
	require.ErrorIs(t, err, ErrPayloadMismatch)
	_, err = EncodeFor(OpRemoveExtension, RemoveDevice{ID: 1})
	require.ErrorIs(t, err, ErrUnexpectedData)
	_, err = EncodeFor(OpCode(1), nil)
	require.ErrorIs(t, err, ErrUnknownOp)

	raw, err := EncodeFor(OpFastRecover, &Recover{ID: 1, Key: signer(t, 1).Public()})
	require.NoError(t, err)
	require.NotEmpty(t, raw)
}

func TestDecodeIsStrict(t *testing.T) {
	_, err := DecodeFor(OpCancelRecovery, []byte{0xa0})
	require.ErrorIs(t, err, ErrUnexpectedData)

	_, err = DecodeFor(OpRemoveDevice, []byte{0xff})
	require.ErrorIs(t, err, ErrMalformed)

	// Unknown field 9.
	extra, err := cbor.Marshal(map[int]int{1: 1, 9: 9})
	require.NoError(t, err)
	_, err = DecodeFor(OpRemoveDevice, extra)
	require.ErrorIs(t, err, ErrMalformed)

	// Trailing bytes.
	ok, err := EncodePayload(RemoveDevice{ID: 1})
	require.NoError(t, err)
	_, err = DecodeFor(OpRemoveDevice, append(ok, 0x00))
	require.ErrorIs(t, err, ErrMalformed)

	// Duplicate key {1: 1, 1: 2}.
	_, err = DecodeFor(OpRemoveDevice, []byte{0xa2, 0x01, 0x01, 0x01, 0x02})
	require.ErrorIs(t, err, ErrMalformed)

	_, err = Unmarshal([]byte("not cbor"))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestCloneIsDeep(t *testing.T) {
	env, err := Build(OpRemoveDevice, 1, 2, RemoveDevice{ID: 7}, "", Credentials{Primary: signer(t, 1), Secondary: signer(t, 2)})
	require.NoError(t, err)
	cp := env.Clone()
	cp.Primary[0] ^= 0xff
	cp.Payload[0] ^= 0xff
	require.NotEqual(t, env.Primary, cp.Primary)
	require.NotEqual(t, env.Payload, cp.Payload)
}
