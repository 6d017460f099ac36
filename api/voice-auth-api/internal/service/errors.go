package internal_service

import "fmt"

// Kind classifies a pipeline failure for the HTTP surface. The cause behind
// a kind is logged, never exposed in the public message.
type Kind string

const (
	KindFetchTimeout        Kind = "FetchTimeout"
	KindFetchHTTPStatus     Kind = "FetchHTTPStatus"
	KindEmptyDownload       Kind = "EmptyDownload"
	KindUnsupportedCorrupt  Kind = "UnsupportedOrCorrupt"
	KindTruncatedHeader     Kind = "TruncatedHeader"
	KindValidationFailed    Kind = "ValidationFailed"
	KindTooShort            Kind = "TooShort"
	KindEmbeddingUnavail    Kind = "EmbeddingUnavailable"
	KindEmbeddingTimeout    Kind = "EmbeddingTimeout"
	KindEmbeddingInvalid    Kind = "EmbeddingInvalid"
	KindConnectionError     Kind = "ConnectionError"
	KindConnectionClosed    Kind = "ConnectionClosed"
	KindNoAudioCaptured     Kind = "NoAudioCaptured"
	KindStoreError          Kind = "StoreError"
	KindInternalError       Kind = "InternalError"
)

// EnrollmentError is a classified failure from the Enroll pipeline. Stage
// names the step that failed (download, processing, too_short, embedding,
// store).
type EnrollmentError struct {
	Stage string
	Kind  Kind
	Cause error
}

func (e *EnrollmentError) Error() string {
	return fmt.Sprintf("enrollment failed at %s: %s", e.Stage, e.Kind)
}

func (e *EnrollmentError) Unwrap() error {
	return e.Cause
}

// VerificationError is a classified failure from the Verify pipeline that is
// an actual error, not a business rejection.
type VerificationError struct {
	Stage string
	Kind  Kind
	Cause error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification failed at %s: %s", e.Stage, e.Kind)
}

func (e *VerificationError) Unwrap() error {
	return e.Cause
}
