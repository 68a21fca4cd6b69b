package transfer

import (
	"errors"
	"fmt"

	"shelf/internal/services"
)

// Kind identifies which validation step rejected a transfer.
type Kind string

const (
	KindSourceMissing      Kind = "source_missing"
	KindDestinationExists  Kind = "destination_already_exists"
	KindSymlinkRejected    Kind = "symlink_rejected"
	KindDeviceNodeRejected Kind = "device_node_rejected"
	KindFIFORejected       Kind = "fifo_rejected"
	KindAccessDenied       Kind = "access_denied"
	KindOutsideScope       Kind = "destination_outside_scope"
	KindVerificationFailed Kind = "verification_failed"
)

// TransferError carries the rejecting step and the path it rejected, wrapped
// over a services sentinel so boundaries classify with errors.Is.
type TransferError struct {
	Kind Kind
	Path string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

func newError(kind Kind, marker error, op, path string, cause error) *TransferError {
	return &TransferError{
		Kind: kind,
		Path: path,
		Err:  services.Wrap(marker, "transfer", op, path, cause),
	}
}

// KindOf extracts the transfer rejection kind from an error chain.
func KindOf(err error) (Kind, bool) {
	var te *TransferError
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return "", false
}
