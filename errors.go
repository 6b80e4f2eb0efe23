package gtfslocator

import "fmt"

// NotFoundError reports a requested bundle or feed file that does not exist
// under the data directory.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("file not found: %s", e.Path) }

// RequestError reports an unusable request parameter.
type RequestError struct {
	Msg string
}

func (e *RequestError) Error() string { return e.Msg }
