package pagination

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mohammad-safakhou/picbot/session"
)

func browsing(t *testing.T, n, pos int) session.Session {
	t.Helper()
	results := make([]session.ImageRef, n)
	for i := range results {
		results[i] = session.ImageRef(fmt.Sprintf("https://img.example/%d.png", i))
	}
	s, err := session.New("id", "owner", "cats", results, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	s.Position = pos
	return s
}

func step(t *testing.T, s session.Session, cmd Command) session.Session {
	t.Helper()
	o, err := Transition(s, cmd)
	if err != nil {
		t.Fatalf("transition %s: %v", cmd, err)
	}
	return Apply(s, o)
}

func TestParseCommand(t *testing.T) {
	for _, id := range []string{"prev", "next", "confirm"} {
		if _, err := ParseCommand(id); err != nil {
			t.Fatalf("ParseCommand(%q): %v", id, err)
		}
	}
	for _, id := range []string{"", "Next", "delete"} {
		if _, err := ParseCommand(id); !errors.Is(err, ErrUnknownCommand) {
			t.Fatalf("ParseCommand(%q): expected ErrUnknownCommand, got %v", id, err)
		}
	}
}

func TestWraparound(t *testing.T) {
	tests := []struct {
		name string
		n    int
		pos  int
		cmd  Command
		want int
	}{
		{"next middle", 3, 1, Next, 2},
		{"next wraps to start", 3, 2, Next, 0},
		{"prev middle", 3, 1, Previous, 0},
		{"prev wraps to end", 3, 0, Previous, 2},
		{"singleton next", 1, 0, Next, 0},
		{"singleton prev", 1, 0, Previous, 0},
		{"pair next", 2, 1, Next, 0},
		{"pair prev", 2, 0, Previous, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := Transition(browsing(t, tt.n, tt.pos), tt.cmd)
			if err != nil {
				t.Fatalf("transition: %v", err)
			}
			if o.Kind != Continue || o.Position != tt.want {
				t.Fatalf("got %+v, want Continue(%d)", o, tt.want)
			}
		})
	}
}

func TestCyclicGroup(t *testing.T) {
	for n := 1; n <= 7; n++ {
		for start := 0; start < n; start++ {
			for _, cmd := range []Command{Next, Previous} {
				s := browsing(t, n, start)
				for i := 0; i < n; i++ {
					s = step(t, s, cmd)
				}
				if s.Position != start {
					t.Fatalf("n=%d start=%d: %d x %s ended at %d", n, start, n, cmd, s.Position)
				}
			}
		}
	}
}

func TestInverse(t *testing.T) {
	for n := 1; n <= 7; n++ {
		for start := 0; start < n; start++ {
			s := step(t, step(t, browsing(t, n, start), Next), Previous)
			if s.Position != start {
				t.Fatalf("n=%d start=%d: next,prev ended at %d", n, start, s.Position)
			}
			s = step(t, step(t, browsing(t, n, start), Previous), Next)
			if s.Position != start {
				t.Fatalf("n=%d start=%d: prev,next ended at %d", n, start, s.Position)
			}
		}
	}
}

func TestConfirmReadsCurrentPosition(t *testing.T) {
	s := browsing(t, 4, 0)
	s = step(t, s, Next)
	s = step(t, s, Next)
	o, err := Transition(s, Confirm)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if o.Kind != Publish || o.Position != 2 || o.Image != s.Results[2] {
		t.Fatalf("confirm published %+v, want position 2", o)
	}
	after := Apply(s, o)
	if after.State != session.Published || after.Position != 2 {
		t.Fatalf("confirm must not move position: %+v", after)
	}
}

func TestPublishedSessionIsExpired(t *testing.T) {
	s := browsing(t, 2, 0)
	s.State = session.Published
	for _, cmd := range Commands {
		if _, err := Transition(s, cmd); !errors.Is(err, session.ErrSessionExpired) {
			t.Fatalf("%s on published: expected ErrSessionExpired, got %v", cmd, err)
		}
	}
}

func TestInvariantViolation(t *testing.T) {
	s := browsing(t, 2, 5)
	if _, err := Transition(s, Next); !errors.Is(err, session.ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}
	empty := session.Session{Owner: "owner"}
	if _, err := Transition(empty, Next); !errors.Is(err, session.ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation for empty results, got %v", err)
	}
}

func TestUnknownCommand(t *testing.T) {
	if _, err := Transition(browsing(t, 2, 0), Command("shuffle")); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestCatsScenario(t *testing.T) {
	s, _ := session.New("id", "owner", "cats", []session.ImageRef{"A", "B", "C"}, time.Unix(0, 0))
	want := []session.ImageRef{"B", "C", "A"}
	for i, img := range want {
		s = step(t, s, Next)
		if s.Current() != img {
			t.Fatalf("next #%d: got %s want %s", i+1, s.Current(), img)
		}
	}
	var out Outcome
	s, err := Step(Confirm, &out)(s)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if out.Image != "A" || s.State != session.Published {
		t.Fatalf("expected A published, got %+v state=%v", out, s.State)
	}
}
