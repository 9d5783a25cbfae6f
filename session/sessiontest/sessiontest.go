// Package sessiontest holds the behavioural suite every session.Store must pass.
package sessiontest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mohammad-safakhou/picbot/session"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) session.Store

func refs(urls ...string) []session.ImageRef {
	out := make([]session.ImageRef, len(urls))
	for i, u := range urls {
		out[i] = session.ImageRef(u)
	}
	return out
}

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("CreateThenGet", func(t *testing.T) {
		st := newStore(t)
		id, err := st.Create(ctx, "u1", "cats", refs("A", "B", "C"))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if id == "" {
			t.Fatalf("expected session id")
		}
		got, err := st.Get(ctx, "u1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.ID != id || got.Query != "cats" || got.Position != 0 || got.State != session.Browsing || got.Len() != 3 {
			t.Fatalf("unexpected session %+v", got)
		}
	})

	t.Run("CreateRejectsEmptyResults", func(t *testing.T) {
		st := newStore(t)
		if _, err := st.Create(ctx, "u1", "rare-thing", nil); !errors.Is(err, session.ErrEmptyResults) {
			t.Fatalf("expected ErrEmptyResults, got %v", err)
		}
		if _, err := st.Get(ctx, "u1"); !errors.Is(err, session.ErrSessionExpired) {
			t.Fatalf("expected no session, got %v", err)
		}
	})

	t.Run("MissingOwnerIsExpired", func(t *testing.T) {
		st := newStore(t)
		if _, err := st.Get(ctx, "nobody"); !errors.Is(err, session.ErrSessionExpired) {
			t.Fatalf("get: expected ErrSessionExpired, got %v", err)
		}
		if err := st.Update(ctx, "nobody", 1); !errors.Is(err, session.ErrSessionExpired) {
			t.Fatalf("update: expected ErrSessionExpired, got %v", err)
		}
		_, err := st.Modify(ctx, "nobody", func(s session.Session) (session.Session, error) { return s, nil })
		if !errors.Is(err, session.ErrSessionExpired) {
			t.Fatalf("modify: expected ErrSessionExpired, got %v", err)
		}
	})

	t.Run("UpdateMovesPosition", func(t *testing.T) {
		st := newStore(t)
		mustCreate(t, st, "u1", "A", "B", "C")
		if err := st.Update(ctx, "u1", 2); err != nil {
			t.Fatalf("update: %v", err)
		}
		got, _ := st.Get(ctx, "u1")
		if got.Position != 2 || got.Current() != "C" {
			t.Fatalf("expected position 2 (C), got %d", got.Position)
		}
	})

	t.Run("UpdateOutOfRange", func(t *testing.T) {
		st := newStore(t)
		mustCreate(t, st, "u1", "A", "B")
		for _, pos := range []int{-1, 2, 10} {
			if err := st.Update(ctx, "u1", pos); !errors.Is(err, session.ErrInvariantViolation) {
				t.Fatalf("position %d: expected ErrInvariantViolation, got %v", pos, err)
			}
		}
		got, _ := st.Get(ctx, "u1")
		if got.Position != 0 {
			t.Fatalf("rejected update must not be stored, position=%d", got.Position)
		}
	})

	t.Run("RemoveIsIdempotent", func(t *testing.T) {
		st := newStore(t)
		mustCreate(t, st, "u1", "A")
		if err := st.Remove(ctx, "u1"); err != nil {
			t.Fatalf("remove: %v", err)
		}
		if err := st.Remove(ctx, "u1"); err != nil {
			t.Fatalf("second remove: %v", err)
		}
		if _, err := st.Get(ctx, "u1"); !errors.Is(err, session.ErrSessionExpired) {
			t.Fatalf("expected ErrSessionExpired, got %v", err)
		}
	})

	t.Run("SecondCreateReplaces", func(t *testing.T) {
		st := newStore(t)
		first := mustCreate(t, st, "u1", "A", "B", "C")
		if err := st.Update(ctx, "u1", 2); err != nil {
			t.Fatalf("update: %v", err)
		}
		second, err := st.Create(ctx, "u1", "dogs", refs("X", "Y"))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if second == first {
			t.Fatalf("replacement must get a new id")
		}
		got, _ := st.Get(ctx, "u1")
		if got.ID != second || got.Query != "dogs" || got.Position != 0 || got.Len() != 2 || got.Current() != "X" {
			t.Fatalf("old session still visible: %+v", got)
		}
	})

	t.Run("OwnersAreIndependent", func(t *testing.T) {
		st := newStore(t)
		mustCreate(t, st, "u1", "A", "B")
		mustCreate(t, st, "u2", "X", "Y")
		if err := st.Update(ctx, "u1", 1); err != nil {
			t.Fatalf("update: %v", err)
		}
		if err := st.Remove(ctx, "u1"); err != nil {
			t.Fatalf("remove: %v", err)
		}
		got, err := st.Get(ctx, "u2")
		if err != nil || got.Position != 0 {
			t.Fatalf("u2 affected by u1: %+v %v", got, err)
		}
	})

	t.Run("ModifyPublishedRemoves", func(t *testing.T) {
		st := newStore(t)
		mustCreate(t, st, "u1", "A", "B")
		out, err := st.Modify(ctx, "u1", func(s session.Session) (session.Session, error) {
			s.State = session.Published
			return s, nil
		})
		if err != nil {
			t.Fatalf("modify: %v", err)
		}
		if out.State != session.Published {
			t.Fatalf("expected published snapshot, got %v", out.State)
		}
		if _, err := st.Get(ctx, "u1"); !errors.Is(err, session.ErrSessionExpired) {
			t.Fatalf("expected ErrSessionExpired after publish, got %v", err)
		}
		if err := st.Update(ctx, "u1", 0); !errors.Is(err, session.ErrSessionExpired) {
			t.Fatalf("expected ErrSessionExpired on update after publish, got %v", err)
		}
	})

	t.Run("ModifyErrorLeavesSessionUntouched", func(t *testing.T) {
		st := newStore(t)
		mustCreate(t, st, "u1", "A", "B")
		boom := errors.New("boom")
		_, err := st.Modify(ctx, "u1", func(s session.Session) (session.Session, error) {
			s.Position = 1
			return s, boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected mutator error, got %v", err)
		}
		got, _ := st.Get(ctx, "u1")
		if got.Position != 0 {
			t.Fatalf("failed mutation was stored, position=%d", got.Position)
		}
	})

	t.Run("ResultsAreImmutable", func(t *testing.T) {
		st := newStore(t)
		mustCreate(t, st, "u1", "A", "B")
		_, err := st.Modify(ctx, "u1", func(s session.Session) (session.Session, error) {
			s.Results[0] = "Z"
			s.Query = "changed"
			return s, nil
		})
		if err != nil {
			t.Fatalf("modify: %v", err)
		}
		got, _ := st.Get(ctx, "u1")
		got.Results[1] = "Q"
		again, _ := st.Get(ctx, "u1")
		if again.Results[0] != "A" || again.Results[1] != "B" || again.Query != "cats" {
			t.Fatalf("stored session was mutated through a copy: %+v", again)
		}
	})

	t.Run("ConcurrentModifySerialises", func(t *testing.T) {
		st := newStore(t)
		urls := make([]string, 100)
		for i := range urls {
			urls[i] = "img"
		}
		mustCreate(t, st, "u1", urls...)

		const presses = 40
		var wg sync.WaitGroup
		errs := make(chan error, presses)
		for i := 0; i < presses; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := st.Modify(ctx, "u1", func(s session.Session) (session.Session, error) {
					s.Position = (s.Position + 1) % s.Len()
					return s, nil
				})
				if err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("modify: %v", err)
		}
		got, _ := st.Get(ctx, "u1")
		if got.Position != presses {
			t.Fatalf("lost or duplicated updates: position=%d want %d", got.Position, presses)
		}
	})
}

func mustCreate(t *testing.T, st session.Store, owner string, urls ...string) string {
	t.Helper()
	id, err := st.Create(context.Background(), owner, "cats", refs(urls...))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return id
}
