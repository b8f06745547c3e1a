package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comunifi/shuttle/pkg/shuttle"
)

func validMessage(data *shuttle.MessageData) *shuttle.HubMessage {
	return &shuttle.HubMessage{
		Data:            data,
		Hash:            []byte{0xde, 0xad, 0xbe, 0xef},
		HashScheme:      shuttle.HashSchemeBlake3,
		Signature:       []byte{0x01},
		SignatureScheme: shuttle.SignatureSchemeEd25519,
		Signer:          []byte{0x02},
		Raw:             []byte{0x03, 0x04},
	}
}

func TestDecode_CastAdd(t *testing.T) {
	msg := validMessage(&shuttle.MessageData{
		Type:      shuttle.MessageTypeCastAdd,
		Fid:       1,
		Timestamp: 10,
		CastAddBody: &shuttle.CastAddBody{
			Text:              "hello",
			Embeds:            []shuttle.Embed{{URL: "https://x"}},
			Mentions:          []uint64{1, 2},
			MentionsPositions: []uint32{0, 6},
		},
	})

	row, err := New().Decode(msg)
	require.NoError(t, err)

	assert.Equal(t, shuttle.MessageTypeCastAdd, row.Type)
	assert.True(t, row.Live())
	assert.Nil(t, row.DeletedAt)
	assert.Nil(t, row.PrunedAt)
	assert.Nil(t, row.RevokedAt)
	assert.WithinDuration(t, shuttle.FarcasterEpoch.Add(10*time.Second), row.Timestamp, 0)

	body, ok := row.Body.(shuttle.CastAddBody)
	require.True(t, ok)
	assert.Equal(t, "hello", body.Text)
	assert.Equal(t, []shuttle.Embed{{URL: "https://x"}}, body.Embeds)
	assert.Equal(t, []uint64{1, 2}, body.Mentions)
	assert.Equal(t, []uint32{0, 6}, body.MentionsPositions)
	assert.Nil(t, body.Parent)
}

func TestDecode_MissingDataIsPermanent(t *testing.T) {
	msg := validMessage(nil)
	_, err := New().Decode(msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, shuttle.ErrMissingBody)
	assert.True(t, shuttle.IsPermanent(err))
}

func TestDecode_UnknownType(t *testing.T) {
	msg := validMessage(&shuttle.MessageData{Type: shuttle.MessageType(99), Fid: 1, Timestamp: 1})
	_, err := New().Decode(msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, shuttle.ErrUnknownType)
}

func TestDecode_InvalidMessage(t *testing.T) {
	msg := validMessage(&shuttle.MessageData{Type: shuttle.MessageTypeCastAdd, Fid: 1, Timestamp: 1, CastAddBody: &shuttle.CastAddBody{}})
	msg.Hash = nil

	_, err := New().Decode(msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, shuttle.ErrInvalidMessage)
}

func TestDecode_VerificationAddAddress_Ethereum(t *testing.T) {
	addr := make([]byte, 20)
	for i := range addr {
		addr[i] = byte(i + 1)
	}

	msg := validMessage(&shuttle.MessageData{
		Type:      shuttle.MessageTypeVerificationAddAddress,
		Fid:       1,
		Timestamp: 1,
		VerificationAddBody: &shuttle.VerificationAddAddressWire{
			Address:  addr,
			Protocol: shuttle.ProtocolEthereum,
		},
	})

	row, err := New().Decode(msg)
	require.NoError(t, err)

	body, ok := row.Body.(shuttle.VerificationAddAddressBody)
	require.True(t, ok)
	assert.Equal(t, "0x0102030405060708090a0b0c0d0e0f1011121314", body.Address)
}

func TestDecode_VerificationAddAddress_Solana(t *testing.T) {
	addr := make([]byte, 32)
	for i := range addr {
		addr[i] = byte(i + 1)
	}

	msg := validMessage(&shuttle.MessageData{
		Type:      shuttle.MessageTypeVerificationAddAddress,
		Fid:       1,
		Timestamp: 1,
		VerificationAddBody: &shuttle.VerificationAddAddressWire{
			Address:  addr,
			Protocol: shuttle.ProtocolSolana,
		},
	})

	row, err := New().Decode(msg)
	require.NoError(t, err)

	body, ok := row.Body.(shuttle.VerificationAddAddressBody)
	require.True(t, ok)
	assert.NotEmpty(t, body.Address)
	assert.NotContains(t, body.Address, "0x")
}

func TestDecode_LinkAdd_DisplayTimestampToMillis(t *testing.T) {
	secs := int64(100)
	msg := validMessage(&shuttle.MessageData{
		Type:      shuttle.MessageTypeLinkAdd,
		Fid:       1,
		Timestamp: 1,
		LinkBody: &shuttle.LinkBody{
			Kind:             "follow",
			TargetFid:        2,
			DisplayTimestamp: &secs,
		},
	})

	row, err := New().Decode(msg)
	require.NoError(t, err)

	body, ok := row.Body.(shuttle.LinkBody)
	require.True(t, ok)
	require.NotNil(t, body.DisplayTimestamp)
	assert.Equal(t, int64(100000), *body.DisplayTimestamp)
}
