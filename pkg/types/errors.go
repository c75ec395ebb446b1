// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "errors"

// Error categories shared across packages. Callers match them with errors.Is;
// concrete errors wrap one of these with context.
var (
	// ErrTransient marks failures expected to succeed on retry: HTTP 429,
	// HTTP 5xx, timeouts and connection errors.
	ErrTransient = errors.New("transient remote failure")

	// ErrFatalRemote marks non-retryable HTTP failures such as 400, 401 and 403.
	ErrFatalRemote = errors.New("fatal remote failure")

	// ErrNotFound marks a source whose file or URL content does not exist.
	ErrNotFound = errors.New("source not found")

	// ErrInvalid marks a source that exists but is empty or not valid UTF-8.
	ErrInvalid = errors.New("invalid source content")

	// ErrOutOfBounds marks a file identifier that resolves outside the source root.
	ErrOutOfBounds = errors.New("source outside sources directory")
)
