package core

import (
	"errors"
	"fmt"
)

// ErrWindowClosed is returned when the window is closed while the renderer
// waits for it to become visible again.
var ErrWindowClosed = errors.New("window closed")

// CheckError turns a panic raised further down the stack into an error
// stored in err. It must be deferred.
func CheckError(err *error) {
	if v := recover(); v != nil {
		switch e := v.(type) {
		case error:
			*err = fmt.Errorf("recovered from panic: %w", e)
		default:
			*err = fmt.Errorf("recovered from panic: %+v", v)
		}
		LogError((*err).Error())
	}
}
