package mapview

import "github.com/memoria-app/memoria/internal/plugins/places"

// DeviceClass distinguishes compact (phone) from regular layouts. Compact
// layouts anchor panels to the bottom of the screen, so focusing needs
// extra bottom padding to keep the focused point visible above them.
type DeviceClass string

const (
	DeviceCompact DeviceClass = "compact"
	DeviceRegular DeviceClass = "regular"
)

// Padding is the screen-edge inset, in pixels, applied when framing a
// coordinate.
type Padding struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// PaddingFor returns the focus padding for a device class. The contract is
// that the focused coordinate stays visually unobstructed by whatever panel
// the current state opens.
func PaddingFor(class DeviceClass) Padding {
	if class == DeviceCompact {
		return Padding{Top: 40, Right: 40, Bottom: 320, Left: 40}
	}
	return Padding{Top: 60, Right: 420, Bottom: 60, Left: 60}
}

// Viewport moves the map camera. Focus is purely cosmetic and fire-and-
// forget: implementations must never block, and callers never wait on it.
// A dropped or failed focus is invisible to the data protocols.
type Viewport interface {
	Focus(coord places.Coordinate, zoom float64, padding Padding)
}

// FocusCommand is the serialized camera instruction sent to the client.
type FocusCommand struct {
	Coord   places.Coordinate `json:"coord"`
	Zoom    float64           `json:"zoom"`
	Padding Padding           `json:"padding"`
}

// channelViewport emits focus commands onto a buffered channel, dropping
// them when the consumer is not keeping up.
type channelViewport struct {
	out chan FocusCommand
}

// NewChannelViewport returns a Viewport plus the channel its commands
// arrive on.
func NewChannelViewport(buffer int) (Viewport, <-chan FocusCommand) {
	v := &channelViewport{out: make(chan FocusCommand, buffer)}
	return v, v.out
}

func (v *channelViewport) Focus(coord places.Coordinate, zoom float64, padding Padding) {
	select {
	case v.out <- FocusCommand{Coord: coord, Zoom: zoom, Padding: padding}:
	default:
		// Cosmetic command, consumer busy. Drop it.
	}
}
