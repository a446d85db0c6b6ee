package identity

import "errors"

var (
	// ErrNotLoaded is returned by mutations attempted before the first Load.
	ErrNotLoaded = errors.New("identity data not loaded")
	// ErrReadOnlySource is returned when saving to a source that cannot be written, such as a URL.
	ErrReadOnlySource = errors.New("cannot save to url")
)
