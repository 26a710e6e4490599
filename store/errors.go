package store

import "errors"

// ErrJobNotFound is returned by collaborators (such as client.StopJob)
// that require an existing job row to act on.
var ErrJobNotFound = errors.New("store: job not found")
