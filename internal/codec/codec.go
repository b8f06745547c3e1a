// Package codec decodes a signed hub message into the row shape persisted
// by the store. All failures here are permanent: the caller must log and
// skip rather than retry.
package codec

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/btcsuite/btcutil/base58"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/comunifi/shuttle/pkg/shuttle"
)

// Decoder implements shuttle.Codec.
type Decoder struct{}

func New() *Decoder {
	return &Decoder{}
}

// Decode validates the message, requires a data section, converts the
// timestamp, branches on type to build the body variant, and returns a Row
// with all lifecycle flags null.
func (d *Decoder) Decode(msg *shuttle.HubMessage) (*shuttle.Row, error) {
	if err := validate(msg); err != nil {
		return nil, err
	}

	if msg.Data == nil {
		return nil, fmt.Errorf("%w: message has no data section", shuttle.ErrMissingBody)
	}

	ts, err := decodeTimestamp(msg.Data.Timestamp)
	if err != nil {
		return nil, err
	}

	body, err := decodeBody(msg.Data)
	if err != nil {
		return nil, err
	}

	return &shuttle.Row{
		Fid:             msg.Data.Fid,
		Type:            msg.Data.Type,
		Timestamp:       ts,
		HashScheme:      msg.HashScheme,
		SignatureScheme: msg.SignatureScheme,
		Hash:            msg.Hash,
		Signer:          msg.Signer,
		Raw:             msg.Raw,
		Body:            body,
	}, nil
}

// validate checks the fields every signed message must carry regardless of
// type, standing in for the hub SDK's own message validation.
func validate(msg *shuttle.HubMessage) error {
	switch {
	case msg == nil:
		return fmt.Errorf("%w: nil message", shuttle.ErrInvalidMessage)
	case len(msg.Hash) == 0:
		return fmt.Errorf("%w: empty hash", shuttle.ErrInvalidMessage)
	case len(msg.Signature) == 0:
		return fmt.Errorf("%w: empty signature", shuttle.ErrInvalidMessage)
	case len(msg.Signer) == 0:
		return fmt.Errorf("%w: empty signer", shuttle.ErrInvalidMessage)
	case msg.HashScheme == shuttle.HashSchemeNone:
		return fmt.Errorf("%w: unset hash scheme", shuttle.ErrInvalidMessage)
	case msg.SignatureScheme == shuttle.SignatureSchemeNone:
		return fmt.Errorf("%w: unset signature scheme", shuttle.ErrInvalidMessage)
	case msg.Data != nil && msg.Data.Fid == 0:
		return fmt.Errorf("%w: zero fid", shuttle.ErrInvalidMessage)
	default:
		return nil
	}
}

// decodeTimestamp converts the hub's epoch-offset timestamp to a wall-clock
// instant. A uint32 offset from the Farcaster epoch
// cannot itself overflow, but the conversion is kept as its own fallible
// step so a malformed upstream encoding (e.g. one that decodes the offset
// into a value prior to the epoch) is still caught here rather than
// silently producing a pre-epoch timestamp downstream.
func decodeTimestamp(offsetSeconds uint32) (time.Time, error) {
	t := shuttle.FarcasterEpoch.Add(time.Duration(offsetSeconds) * time.Second)
	if t.Before(shuttle.FarcasterEpoch) {
		return time.Time{}, fmt.Errorf("%w: offset %d predates the Farcaster epoch", shuttle.ErrBadTimestamp, offsetSeconds)
	}
	return t, nil
}

func decodeBody(data *shuttle.MessageData) (any, error) {
	switch data.Type {
	case shuttle.MessageTypeCastAdd:
		if data.CastAddBody == nil {
			return nil, fmt.Errorf("%w: CAST_ADD without a cast-add body", shuttle.ErrMissingBody)
		}
		return *data.CastAddBody, nil

	case shuttle.MessageTypeCastRemove:
		if data.CastRemoveBody == nil {
			return nil, fmt.Errorf("%w: CAST_REMOVE without a cast-remove body", shuttle.ErrMissingBody)
		}
		return *data.CastRemoveBody, nil

	case shuttle.MessageTypeReactionAdd, shuttle.MessageTypeReactionRemove:
		if data.ReactionBody == nil {
			return nil, fmt.Errorf("%w: reaction message without a reaction body", shuttle.ErrMissingBody)
		}
		return *data.ReactionBody, nil

	case shuttle.MessageTypeLinkAdd, shuttle.MessageTypeLinkRemove:
		if data.LinkBody == nil {
			return nil, fmt.Errorf("%w: link message without a link body", shuttle.ErrMissingBody)
		}
		return decodeLinkBody(*data.LinkBody), nil

	case shuttle.MessageTypeVerificationAddAddress:
		if data.VerificationAddBody == nil {
			return nil, fmt.Errorf("%w: VERIFICATION_ADD_ADDRESS without a verification-add body", shuttle.ErrMissingBody)
		}
		return decodeVerificationAddBody(*data.VerificationAddBody)

	case shuttle.MessageTypeVerificationRemove:
		if data.VerificationRemoveBody == nil {
			return nil, fmt.Errorf("%w: VERIFICATION_REMOVE without a verification-remove body", shuttle.ErrMissingBody)
		}
		return decodeVerificationRemoveBody(*data.VerificationRemoveBody)

	case shuttle.MessageTypeUserDataAdd:
		if data.UserDataBody == nil {
			return nil, fmt.Errorf("%w: USER_DATA_ADD without a user-data body", shuttle.ErrMissingBody)
		}
		return *data.UserDataBody, nil

	case shuttle.MessageTypeUsernameProof:
		if data.UsernameProofBody == nil {
			return nil, fmt.Errorf("%w: USERNAME_PROOF without a username-proof body", shuttle.ErrMissingBody)
		}
		return *data.UsernameProofBody, nil

	default:
		return nil, fmt.Errorf("%w: %d", shuttle.ErrUnknownType, data.Type)
	}
}

// decodeLinkBody converts an optional display timestamp to unix
// milliseconds.
//
// TODO: this treats DisplayTimestamp as unix seconds rather than a
// Farcaster-epoch offset like MessageData.Timestamp; confirm against the
// hub's actual wire encoding once it's available.
func decodeLinkBody(b shuttle.LinkBody) shuttle.LinkBody {
	if b.DisplayTimestamp == nil {
		return b
	}
	ms := *b.DisplayTimestamp * 1000
	b.DisplayTimestamp = &ms
	return b
}

// decodeVerificationAddBody encodes the address per the protocol tag — hex
// for Ethereum, base58 for Solana — and hex-encodes the claim signature and
// block hash.
func decodeVerificationAddBody(w shuttle.VerificationAddAddressWire) (shuttle.VerificationAddAddressBody, error) {
	address, err := encodeAddress(w.Address, w.Protocol)
	if err != nil {
		return shuttle.VerificationAddAddressBody{}, err
	}

	return shuttle.VerificationAddAddressBody{
		Address:        address,
		ClaimSignature: hex.EncodeToString(w.ClaimSignature),
		BlockHash:      hex.EncodeToString(w.BlockHash),
		Protocol:       w.Protocol,
	}, nil
}

func decodeVerificationRemoveBody(w shuttle.VerificationRemoveWire) (shuttle.VerificationRemoveBody, error) {
	address, err := encodeAddress(w.Address, w.Protocol)
	if err != nil {
		return shuttle.VerificationRemoveBody{}, err
	}
	return shuttle.VerificationRemoveBody{Address: address, Protocol: w.Protocol}, nil
}

func encodeAddress(raw []byte, protocol shuttle.Protocol) (string, error) {
	switch protocol {
	case shuttle.ProtocolEthereum:
		return hexutil.Encode(raw), nil
	case shuttle.ProtocolSolana:
		return base58.Encode(raw), nil
	default:
		return "", fmt.Errorf("%w: unknown verification protocol %d", shuttle.ErrInvalidMessage, protocol)
	}
}
