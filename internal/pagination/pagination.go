// Package pagination holds the browsing state machine. Everything here is
// pure: it computes the next session value and never touches a store.
package pagination

import (
	"errors"
	"fmt"

	"github.com/mohammad-safakhou/picbot/session"
)

// ErrUnknownCommand is returned for a button id that is not a navigation command.
var ErrUnknownCommand = errors.New("unknown navigation command")

// Command is a navigation button. The values double as button ids.
type Command string

const (
	Previous Command = "prev"
	Next     Command = "next"
	Confirm  Command = "confirm"
)

// Commands lists the navigation commands in display order.
var Commands = []Command{Previous, Next, Confirm}

func ParseCommand(id string) (Command, error) {
	switch c := Command(id); c {
	case Previous, Next, Confirm:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, id)
	}
}

type Kind int

const (
	// Continue keeps browsing at Outcome.Position.
	Continue Kind = iota
	// Publish ends the session with Outcome.Image.
	Publish
)

type Outcome struct {
	Kind     Kind
	Position int
	Image    session.ImageRef
}

// Transition computes the effect of cmd on s.
func Transition(s session.Session, cmd Command) (Outcome, error) {
	if s.State == session.Published {
		return Outcome{}, session.ErrSessionExpired
	}
	if err := s.Validate(); err != nil {
		return Outcome{}, err
	}
	n := s.Len()
	switch cmd {
	case Previous:
		return Outcome{Kind: Continue, Position: (s.Position - 1 + n) % n}, nil
	case Next:
		return Outcome{Kind: Continue, Position: (s.Position + 1) % n}, nil
	case Confirm:
		return Outcome{Kind: Publish, Position: s.Position, Image: s.Current()}, nil
	default:
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownCommand, string(cmd))
	}
}

// Apply returns the session that results from o.
func Apply(s session.Session, o Outcome) session.Session {
	switch o.Kind {
	case Publish:
		s.State = session.Published
	default:
		s.Position = o.Position
	}
	return s
}

// Step is Transition followed by Apply, shaped as a session.Mutator. The
// outcome is written to out so callers can read it after the store commits.
func Step(cmd Command, out *Outcome) session.Mutator {
	return func(s session.Session) (session.Session, error) {
		o, err := Transition(s, cmd)
		if err != nil {
			return s, err
		}
		*out = o
		return Apply(s, o), nil
	}
}
