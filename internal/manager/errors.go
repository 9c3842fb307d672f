package manager

// closedError signals use of a Manager after Close.
type closedError struct{}

func (closedError) Error() string { return "model manager closed" }

// ErrClosed is returned by Acquire after Close.
var ErrClosed error = closedError{}

// IsClosed reports whether err indicates a closed manager (return 503).
func IsClosed(err error) bool {
	_, ok := err.(closedError)
	return ok
}

// missingTokenMsg is surfaced to API clients verbatim.
const missingTokenMsg = "HuggingFace token not found. Please authenticate first."
