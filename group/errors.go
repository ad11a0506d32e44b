package group

import "fmt"

// UnsupportedGroupError is returned when a representation is requested for a
// group the catalog does not know how to build it for.
type UnsupportedGroupError struct {
	Reason string
}

func (err UnsupportedGroupError) Error() string {
	return fmt.Sprintf("unsupported group: %s", err.Reason)
}
