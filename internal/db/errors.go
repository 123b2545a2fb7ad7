package db

import "errors"

// Error kinds surfaced by the store. Match them with errors.Is.
var (
	// ErrStorageUnavailable means no durable local storage could be opened.
	// Callers should degrade to in-memory or remote-only behaviour.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrWrite means a write did not persist; the caller may retry.
	ErrWrite = errors.New("write failed")

	// ErrRead means a read could not be completed; the caller may retry.
	ErrRead = errors.New("read failed")

	// ErrUnknownPartition means the partition is not part of the schema.
	ErrUnknownPartition = errors.New("unknown partition")

	// ErrReservedPartition means the partition is owned by another component
	// and cannot be used through the generic record API.
	ErrReservedPartition = errors.New("reserved partition")

	// ErrUnknownIndex means the partition declares no such secondary index.
	ErrUnknownIndex = errors.New("unknown index")

	// ErrNotFound is returned by owner-specific operations that target a
	// single row that does not exist.
	ErrNotFound = errors.New("not found")
)

// OpError records the failed store operation, its partition and cause.
type OpError struct {
	Op        string
	Partition string
	Kind      error
	Err       error
}

func (e *OpError) Error() string {
	msg := e.Op
	if e.Partition != "" {
		msg += " " + e.Partition
	}
	if e.Kind != nil {
		msg += ": " + e.Kind.Error()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause.
func (e *OpError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func writeErr(op, partition string, err error) error {
	return &OpError{Op: op, Partition: partition, Kind: ErrWrite, Err: err}
}

func readErr(op, partition string, err error) error {
	return &OpError{Op: op, Partition: partition, Kind: ErrRead, Err: err}
}

func partitionErr(op, partition string, kind error) error {
	return &OpError{Op: op, Partition: partition, Kind: kind}
}
