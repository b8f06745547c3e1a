package shuttle

import (
	"fmt"
	"time"
)

// HubEventType enumerates the frame kinds a Subscribe stream can deliver.
// The names mirror the hub's own protobuf enum; this package only needs the
// ones the shuttle core understands.
type HubEventType int32

const (
	HubEventTypeNone HubEventType = iota
	HubEventTypeMergeMessage
	HubEventTypePruneMessage
	HubEventTypeRevokeMessage
	HubEventTypeMergeOnChainEvent
	HubEventTypeMergeUsernameProof
)

func (t HubEventType) String() string {
	switch t {
	case HubEventTypeMergeMessage:
		return "merge-message"
	case HubEventTypePruneMessage:
		return "prune-message"
	case HubEventTypeRevokeMessage:
		return "revoke-message"
	case HubEventTypeMergeOnChainEvent:
		return "merge-onchain-event"
	case HubEventTypeMergeUsernameProof:
		return "merge-username-proof"
	default:
		return "none"
	}
}

// DefaultEventTypes is the subscription filter used when the caller does not
// supply one explicitly.
func DefaultEventTypes() []HubEventType {
	return []HubEventType{
		HubEventTypeMergeOnChainEvent,
		HubEventTypeMergeMessage,
		HubEventTypeMergeUsernameProof,
		HubEventTypePruneMessage,
		HubEventTypeRevokeMessage,
	}
}

// ParseHubEventType parses one of the String() names back into a
// HubEventType, for the HUB_EVENT_TYPES configuration override.
func ParseHubEventType(s string) (HubEventType, error) {
	switch s {
	case "merge-message":
		return HubEventTypeMergeMessage, nil
	case "prune-message":
		return HubEventTypePruneMessage, nil
	case "revoke-message":
		return HubEventTypeRevokeMessage, nil
	case "merge-onchain-event":
		return HubEventTypeMergeOnChainEvent, nil
	case "merge-username-proof":
		return HubEventTypeMergeUsernameProof, nil
	default:
		return HubEventTypeNone, fmt.Errorf("unknown hub event type %q", s)
	}
}

// HubMessage is the signed, still-encoded message the hub hands back: enough
// to validate and decode, but not yet a Row. It stands in for the hub's
// generated protobuf `Message` type (see internal/hubrpc for the wire codec).
type HubMessage struct {
	Data            *MessageData
	Hash            []byte
	HashScheme      HashScheme
	Signature       []byte
	SignatureScheme SignatureScheme
	Signer          []byte
	Raw             []byte // full serialized signed message, for re-verification
}

// MessageData is the hub's unsigned message body envelope: a type tag plus
// exactly one populated body field, mirroring a protobuf `oneof`.
type MessageData struct {
	Type      MessageType
	Fid       uint64
	Timestamp uint32 // seconds since the Farcaster epoch (2021-01-01T00:00:00Z)
	Network   int32

	CastAddBody            *CastAddBody
	CastRemoveBody         *CastRemoveBody
	ReactionBody           *ReactionBody
	LinkBody               *LinkBody
	VerificationAddBody    *VerificationAddAddressWire
	VerificationRemoveBody *VerificationRemoveWire
	UserDataBody           *UserDataAddBody
	UsernameProofBody      *UsernameProofBody
}

// VerificationAddAddressWire is the wire shape of a verification-add-address
// body: raw bytes, not yet encoded per protocol. Codec.Decode turns this
// into a VerificationAddAddressBody with Address/ClaimSignature/BlockHash
// encoded as text.
type VerificationAddAddressWire struct {
	Address        []byte
	ClaimSignature []byte
	BlockHash      []byte
	Protocol       Protocol
}

// VerificationRemoveWire is the wire shape of a verification-remove body.
type VerificationRemoveWire struct {
	Address  []byte
	Protocol Protocol
}

// FarcasterEpoch is the zero point hub timestamps are offset from.
var FarcasterEpoch = time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)

// HubEvent is one frame of a Subscribe stream.
type HubEvent struct {
	ID               uint64
	Type             HubEventType
	MergeMessage     *HubMessage
	PruneMessage     *HubMessage
	RevokeMessage    *HubMessage
	MergeUsernameProof *HubMessage
}

// SubscribeRequest parameterizes a resumable subscription.
type SubscribeRequest struct {
	EventTypes []HubEventType
	FromID     *uint64
}

// FidPageRequest pages through one message type's inventory for one fid.
type FidPageRequest struct {
	Fid       uint64
	Type      MessageType
	PageSize  int
	PageToken []byte
}

// MessagesPage is one page of a fid's message inventory.
type MessagesPage struct {
	Messages      []*HubMessage
	NextPageToken []byte
}
