// Package storeerr defines the error taxonomy shared by the registry,
// saver, and loader.
//
// Errors are categorized by Kind rather than by Go type, mirroring the
// StoreError/ErrorCode split used throughout this codebase's storage
// layers: one concrete type carries a small enum plus operational
// context, and callers match on the enum with errors.As.
package storeerr

import "fmt"

// Kind categorizes an Error. See spec section 7 for the full taxonomy.
type Kind int

const (
	// BadComponentName indicates a codec, storage, or unpacker was
	// registered with a name that does not match the versioned
	// `<dotted>@v<int>` pattern.
	BadComponentName Kind = iota

	// NotRegistered indicates a lookup miss against the registry for a
	// storable class, codec, storage, or unpacker.
	NotRegistered

	// TypeMismatch indicates a load_one class hint is not a supertype of
	// the manifest's actual class.
	TypeMismatch

	// IncompleteStream indicates GetDigest(strict) was called before the
	// wrapped stream reached EOF.
	IncompleteStream

	// StorageDidNotConsumeStream indicates a storage driver returned from
	// write_data_stream without having drained the wrapped source to EOF.
	// This is a programming error in the driver, surfaced to the caller.
	StorageDidNotConsumeStream

	// NoStorageData indicates a storage read against a locator that no
	// longer has backing data (e.g. a cleaned-up temp object, or a key
	// that was never written).
	NoStorageData

	// IntegrityError indicates a database uniqueness or constraint
	// violation on commit.
	IntegrityError

	// SerializerContract indicates a codec returned an envelope missing a
	// required field (content_type, data/data_stream).
	SerializerContract

	// UnpackerContract indicates an unpacker returned a content that is
	// neither a value nor a value_stream, or repack failed to reconstruct
	// an object from its loaded contents.
	UnpackerContract

	// ContentTooLarge indicates a content's serialized or final stream
	// size exceeds the configured max_content_size.
	ContentTooLarge
)

// String renders the Kind the way it appears in log fields and error
// messages.
func (k Kind) String() string {
	switch k {
	case BadComponentName:
		return "bad_component_name"
	case NotRegistered:
		return "not_registered"
	case TypeMismatch:
		return "type_mismatch"
	case IncompleteStream:
		return "incomplete_stream"
	case StorageDidNotConsumeStream:
		return "storage_did_not_consume_stream"
	case NoStorageData:
		return "no_storage_data"
	case IntegrityError:
		return "integrity_error"
	case SerializerContract:
		return "serializer_contract"
	case UnpackerContract:
		return "unpacker_contract"
	case ContentTooLarge:
		return "content_too_large"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned for every taxonomy failure.
//
// Detail carries operation-specific context (a component name, a content
// key, a class id) for diagnostics; callers that need to branch on the
// failure category should match Kind via errors.As, not parse Message.
type Error struct {
	Kind    Kind
	Message string
	Detail  string
	Err     error // wrapped cause, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap enables errors.Is/errors.As to see through to the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind wrapping a lower-level cause.
func Wrap(kind Kind, message string, detail string, err error) *Error {
	return &Error{Kind: kind, Message: message, Detail: detail, Err: err}
}

// NewBadComponentName reports a component name that fails the
// `<dotted>@v<int>` pattern.
func NewBadComponentName(name string) *Error {
	return &Error{Kind: BadComponentName, Message: "component name must match `<dotted>@v<int>`", Detail: name}
}

// NewNotRegistered reports a lookup miss for the given category (e.g.
// "codec", "storage", "storable", "unpacker") and key.
func NewNotRegistered(category, key string) *Error {
	return &Error{Kind: NotRegistered, Message: category + " not registered", Detail: key}
}

// NewTypeMismatch reports a load_one class hint that the manifest's actual
// class does not satisfy.
func NewTypeMismatch(hint, actual string) *Error {
	return &Error{Kind: TypeMismatch, Message: "loaded class is not a supertype of the hint", Detail: actual + " !<: " + hint}
}

// NewIncompleteStream reports a strict GetDigest call before EOF.
func NewIncompleteStream(contentKey string) *Error {
	return &Error{Kind: IncompleteStream, Message: "digest requested before stream reached EOF", Detail: contentKey}
}

// NewStorageDidNotConsumeStream reports a driver bug: write_data_stream
// returned without draining the wrapped source.
func NewStorageDidNotConsumeStream(storageName, contentKey string) *Error {
	return &Error{Kind: StorageDidNotConsumeStream, Message: "storage driver did not fully consume the stream", Detail: storageName + "/" + contentKey}
}

// NewNoStorageData reports a read against a locator with no backing data.
func NewNoStorageData(storageName, locator string) *Error {
	return &Error{Kind: NoStorageData, Message: "no data at locator", Detail: storageName + ": " + locator}
}

// NewIntegrityError wraps a database constraint violation.
func NewIntegrityError(detail string, err error) *Error {
	return &Error{Kind: IntegrityError, Message: "database integrity constraint violated", Detail: detail, Err: err}
}

// NewSerializerContract reports a codec envelope missing a required field.
func NewSerializerContract(serializerName, missingField string) *Error {
	return &Error{Kind: SerializerContract, Message: "serializer envelope missing required field", Detail: serializerName + ": " + missingField}
}

// NewUnpackerContract reports an unpacker protocol violation.
func NewUnpackerContract(unpackerName, reason string) *Error {
	return &Error{Kind: UnpackerContract, Message: reason, Detail: unpackerName}
}

// NewContentTooLarge reports a content whose size exceeds max_content_size.
func NewContentTooLarge(contentKey string, size, max int64) *Error {
	return &Error{Kind: ContentTooLarge, Message: fmt.Sprintf("size %d exceeds max_content_size %d", size, max), Detail: contentKey}
}
