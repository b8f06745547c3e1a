// Package shuttle holds the contract types shared by every internal package of
// the replication shuttle: the row shape persisted to the store, the message
// body variants, and the operations that can be applied to a row.
package shuttle

import "time"

// MessageType enumerates the kinds of signed message the hub can emit.
type MessageType int32

const (
	MessageTypeNone MessageType = iota
	MessageTypeCastAdd
	MessageTypeCastRemove
	MessageTypeReactionAdd
	MessageTypeReactionRemove
	MessageTypeLinkAdd
	MessageTypeLinkRemove
	MessageTypeVerificationAddAddress
	MessageTypeVerificationRemove
	MessageTypeUserDataAdd
	MessageTypeUsernameProof
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeCastAdd:
		return "CAST_ADD"
	case MessageTypeCastRemove:
		return "CAST_REMOVE"
	case MessageTypeReactionAdd:
		return "REACTION_ADD"
	case MessageTypeReactionRemove:
		return "REACTION_REMOVE"
	case MessageTypeLinkAdd:
		return "LINK_ADD"
	case MessageTypeLinkRemove:
		return "LINK_REMOVE"
	case MessageTypeVerificationAddAddress:
		return "VERIFICATION_ADD_ADDRESS"
	case MessageTypeVerificationRemove:
		return "VERIFICATION_REMOVE"
	case MessageTypeUserDataAdd:
		return "USER_DATA_ADD"
	case MessageTypeUsernameProof:
		return "USERNAME_PROOF"
	default:
		return "NONE"
	}
}

// HashScheme and SignatureScheme mirror the hub's codec enums.
type HashScheme int32

const (
	HashSchemeNone HashScheme = iota
	HashSchemeBlake3
)

type SignatureScheme int32

const (
	SignatureSchemeNone SignatureScheme = iota
	SignatureSchemeEd25519
	SignatureSchemeEip712
)

// Protocol tags a verification's address encoding.
type Protocol int32

const (
	ProtocolEthereum Protocol = iota
	ProtocolSolana
)

func (p Protocol) String() string {
	if p == ProtocolSolana {
		return "solana"
	}
	return "ethereum"
}

// Operation is the lifecycle transition an incoming message applies to a row.
type Operation int32

const (
	OperationMerge Operation = iota
	OperationDelete
	OperationPrune
	OperationRevoke
)

func (o Operation) String() string {
	switch o {
	case OperationDelete:
		return "delete"
	case OperationPrune:
		return "prune"
	case OperationRevoke:
		return "revoke"
	default:
		return "merge"
	}
}

// Outcome reports what Store.Apply actually did.
type Outcome int32

const (
	OutcomeNoop Outcome = iota
	OutcomeInserted
	OutcomeUpdated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeUpdated:
		return "updated"
	default:
		return "noop"
	}
}

// CastId references a cast by its author fid and content hash.
type CastId struct {
	Fid  uint64
	Hash []byte
}

// Embed is either a URL or a reference to another cast. Exactly one field is set.
type Embed struct {
	URL    string
	CastID *CastId
}

// Target is either a cast reference or a URL. Exactly one field is set.
type Target struct {
	CastID *CastId
	URL    string
}

type CastAddBody struct {
	Text              string
	Embeds            []Embed
	Mentions          []uint64
	MentionsPositions []uint32
	Parent            *Target
}

type CastRemoveBody struct {
	TargetHash []byte
}

type ReactionKind int32

const (
	ReactionKindNone ReactionKind = iota
	ReactionKindLike
	ReactionKindRecast
)

type ReactionBody struct {
	Kind   ReactionKind
	Target Target
}

type LinkBody struct {
	Kind            string
	TargetFid       uint64
	DisplayTimestamp *int64 // unix milliseconds, nil if absent
}

type VerificationAddAddressBody struct {
	Address        string // hex for ethereum, base58 for solana
	ClaimSignature string // hex-encoded
	BlockHash      string // hex-encoded
	Protocol       Protocol
}

type VerificationRemoveBody struct {
	Address  string
	Protocol Protocol
}

type UserDataKind int32

type UserDataAddBody struct {
	Kind  UserDataKind
	Value string
}

type UsernameProofBody struct {
	Timestamp uint64
	Name      string // hex
	Owner     string // hex
	Signature string // hex
	Fid       uint64
	Kind      int32
}

// Row is a decoded, store-ready representation of a signed hub message.
type Row struct {
	ID              uint64
	Fid             uint64
	Type            MessageType
	Timestamp       time.Time
	HashScheme      HashScheme
	SignatureScheme SignatureScheme
	Hash            []byte
	Signer          []byte
	Raw             []byte
	Body            any // one of the *Body types above

	DeletedAt *time.Time
	PrunedAt  *time.Time
	RevokedAt *time.Time
}

// Live reports whether none of the lifecycle flags are set.
func (r *Row) Live() bool {
	return r.DeletedAt == nil && r.PrunedAt == nil && r.RevokedAt == nil
}

// ApplyOperation returns the lifecycle timestamps that `op` assigns to a
// row. It does not mutate r; the caller decides what to persist.
func ApplyOperation(op Operation, now time.Time) (deletedAt, prunedAt, revokedAt *time.Time) {
	switch op {
	case OperationMerge:
		return nil, nil, nil
	case OperationDelete:
		t := now
		return &t, nil, nil
	case OperationPrune:
		t := now
		return nil, &t, nil
	case OperationRevoke:
		t := now
		return nil, nil, &t
	default:
		return nil, nil, nil
	}
}

// LifecycleChanged reports whether moving from (oldDeleted, oldPruned, oldRevoked)
// to (newDeleted, newPruned, newRevoked) is a "meaningful" transition: a flag
// being set that was previously null, or cleared that was previously
// non-null. It is the pure core of the upsert's conflict predicate and is
// kept separate from SQL so it can be unit tested directly.
func LifecycleChanged(oldDeleted, oldPruned, oldRevoked, newDeleted, newPruned, newRevoked *time.Time) bool {
	return isSet(oldDeleted) != isSet(newDeleted) ||
		isSet(oldPruned) != isSet(newPruned) ||
		isSet(oldRevoked) != isSet(newRevoked)
}

func isSet(t *time.Time) bool { return t != nil }
