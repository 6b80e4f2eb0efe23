package gtfs

import "fmt"

// MalformedBundleError reports a static bundle whose required tables are
// missing or unparseable. The bundle's index cannot be built.
type MalformedBundleError struct {
	Table string
	Err   error
}

func (e *MalformedBundleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed bundle: table %s: %v", e.Table, e.Err)
	}
	return fmt.Sprintf("malformed bundle: table %s", e.Table)
}

func (e *MalformedBundleError) Unwrap() error { return e.Err }
