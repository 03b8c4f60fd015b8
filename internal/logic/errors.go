package logic

import "errors"

// Sentinel error kinds. Call sites return these wrapped with context;
// match with errors.Is.
var (
	// ErrArgument reports an invalid argument: a nil device, an unknown
	// channel index, a malformed option value, or an operation on an
	// encoder that was never initialised.
	ErrArgument = errors.New("invalid argument")

	// ErrData reports malformed sample data, such as a logic payload
	// whose length is not a multiple of its unit size, or a corrupt
	// capture record.
	ErrData = errors.New("malformed data")
)
