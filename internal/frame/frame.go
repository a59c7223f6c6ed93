package frame

import (
	"encoding/base64"
	"errors"
	"time"
)

// ErrUnavailable is returned when no frame can be produced: the camera is
// gone, the source was closed, or nothing has been captured yet.
var ErrUnavailable = errors.New("frame unavailable")

// Frame is a single JPEG snapshot. Seq grows by one for every frame a source
// produces, so readers can tell how many frames passed between two reads.
type Frame struct {
	Seq        uint64
	CapturedAt time.Time
	JPEG       []byte
}

type Source interface {
	Latest() (*Frame, error)
}

// DataURL renders the frame as an inline image URL for vision models.
func (f *Frame) DataURL() string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(f.JPEG)
}
