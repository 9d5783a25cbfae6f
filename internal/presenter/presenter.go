package presenter

import (
	"fmt"

	"github.com/mohammad-safakhou/picbot/internal/pagination"
	"github.com/mohammad-safakhou/picbot/session"
)

// Style is the visual weight of a control. Transports map it to their own button styles.
type Style int

const (
	StylePrimary Style = iota
	StyleSuccess
)

// Control is one button under the image.
type Control struct {
	Command pagination.Command
	Label   string
	Style   Style
}

// Payload is a transport-neutral description of one message.
type Payload struct {
	Title    string
	ImageURL string
	Controls []Control
}

var browseControls = []Control{
	{Command: pagination.Previous, Label: "Prev", Style: StylePrimary},
	{Command: pagination.Next, Label: "Next", Style: StylePrimary},
	{Command: pagination.Confirm, Label: "Confirm", Style: StyleSuccess},
}

// Render shows the session's current image with navigation controls.
func Render(s session.Session) Payload {
	return Payload{
		Title:    fmt.Sprintf("Image %d/%d for: %s", s.Position+1, s.Len(), s.Query),
		ImageURL: string(s.Current()),
		Controls: append([]Control(nil), browseControls...),
	}
}

// RenderPublished is the public post for a confirmed image.
func RenderPublished(img session.ImageRef, publisher string) Payload {
	return Payload{
		Title:    fmt.Sprintf("Image from %s", publisher),
		ImageURL: string(img),
	}
}
