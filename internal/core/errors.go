package core

import "errors"

// Sentinel errors, one per dissection failure so callers can tell them apart with errors.Is.
var (
	// Structural errors
	ErrFrameTooShort     = errors.New("responder: frame shorter than ethernet header")
	ErrNotIPv4           = errors.New("responder: ethertype is not ipv4")
	ErrBadVersion        = errors.New("responder: ip version is not 4")
	ErrHeaderTooShort    = errors.New("responder: ipv4 header length below minimum")
	ErrBadTotalLength    = errors.New("responder: ipv4 total length below header length")
	ErrTruncated         = errors.New("responder: frame truncated below declared ipv4 length")
	ErrSegmentTooShort   = errors.New("responder: tcp segment shorter than minimum header")
	ErrTCPHeaderTooShort = errors.New("responder: tcp header longer than segment")

	// Checksum errors
	ErrIPChecksumMismatch  = errors.New("responder: ipv4 checksum mismatch")
	ErrTCPChecksumMismatch = errors.New("responder: tcp checksum mismatch")

	// Resource errors
	ErrReceiveFailed = errors.New("responder: receive failed")
	ErrFrameTooLarge = errors.New("responder: frame exceeds maximum capture size")
	ErrSendFailed    = errors.New("responder: send failed")
	ErrHandleClosed  = errors.New("responder: capture handle closed")

	// Configuration errors
	ErrConfigInvalid = errors.New("responder: invalid configuration")
)

// ErrorClass groups errors for logging and metric labels.
type ErrorClass string

const (
	ClassStructural ErrorClass = "structural"
	ClassChecksum   ErrorClass = "checksum"
	ClassResource   ErrorClass = "resource"
	ClassUnknown    ErrorClass = "unknown"
)

var structuralErrors = []error{
	ErrFrameTooShort,
	ErrNotIPv4,
	ErrBadVersion,
	ErrHeaderTooShort,
	ErrBadTotalLength,
	ErrTruncated,
	ErrSegmentTooShort,
	ErrTCPHeaderTooShort,
}

// Classify reports which class of the error taxonomy err belongs to.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassUnknown
	}
	for _, e := range structuralErrors {
		if errors.Is(err, e) {
			return ClassStructural
		}
	}
	switch {
	case errors.Is(err, ErrIPChecksumMismatch), errors.Is(err, ErrTCPChecksumMismatch):
		return ClassChecksum
	case errors.Is(err, ErrReceiveFailed), errors.Is(err, ErrFrameTooLarge),
		errors.Is(err, ErrSendFailed), errors.Is(err, ErrHandleClosed):
		return ClassResource
	}
	return ClassUnknown
}
