// Package router turns inbound chat events into session operations and
// outbound effects. It knows nothing about the chat platform's SDK.
package router

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mohammad-safakhou/picbot/internal/metrics"
	"github.com/mohammad-safakhou/picbot/internal/pagination"
	"github.com/mohammad-safakhou/picbot/internal/presenter"
	"github.com/mohammad-safakhou/picbot/session"
	"go.uber.org/zap"
)

// User-facing notices.
const (
	NoticeNoQuery      = "Please provide a search query."
	NoticeSearchFailed = "Search failed. Please try again later."
	NoticeNoResults    = "No images found."
	NoticeExpired      = "Session expired."
	NoticeGeneric      = "Something went wrong."
)

// errStaleControl marks a button that belongs to a session since replaced.
var errStaleControl = errors.New("control belongs to a replaced session")

// Invocation is a search command.
type Invocation struct {
	Owner string
	Query string
}

// ButtonActivation is a click on a navigation control. SessionID is the
// session the control was rendered for; empty accepts the live session.
type ButtonActivation struct {
	Owner     string
	Publisher string
	CommandID string
	SessionID string
}

type EffectKind int

const (
	EphemeralReply EffectKind = iota
	EphemeralEdit
	PublicPost
	EphemeralNotice
)

func (k EffectKind) String() string {
	switch k {
	case EphemeralReply:
		return "ephemeral_reply"
	case EphemeralEdit:
		return "ephemeral_edit"
	case PublicPost:
		return "public_post"
	case EphemeralNotice:
		return "ephemeral_notice"
	default:
		return "unknown"
	}
}

// Effect is what the transport should send back. Payload is set for replies,
// edits and posts; Notice for notices. SessionID binds rendered controls.
type Effect struct {
	Kind      EffectKind
	Payload   presenter.Payload
	Notice    string
	SessionID string
}

// Fetcher resolves a query to image URLs.
type Fetcher interface {
	Fetch(ctx context.Context, query string) ([]string, error)
}

type Router struct {
	fetcher Fetcher
	store   session.Store
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func New(fetcher Fetcher, store session.Store, m *metrics.Metrics, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		fetcher: fetcher,
		store:   store,
		metrics: m,
		logger:  logger.With(zap.String("component", "router")),
		now:     time.Now,
	}
}

// HandleInvocation runs a search and opens a browsing session on success.
func (r *Router) HandleInvocation(ctx context.Context, inv Invocation) (eff Effect) {
	defer r.recoverTo(&eff, "invocation", inv.Owner)

	query := strings.TrimSpace(inv.Query)
	if query == "" {
		return r.notice("no_query", NoticeNoQuery)
	}

	start := time.Now()
	urls, err := r.fetcher.Fetch(ctx, query)
	took := time.Since(start)
	if err != nil {
		r.metrics.Search(metrics.SearchFailed, took)
		r.logger.Warn("fetch failed", zap.String("owner", inv.Owner), zap.String("query", query), zap.Error(err))
		return r.notice("fetch_failed", NoticeSearchFailed)
	}
	if len(urls) == 0 {
		r.metrics.Search(metrics.SearchEmpty, took)
		return r.notice("no_results", NoticeNoResults)
	}
	r.metrics.Search(metrics.SearchOK, took)

	// a cancelled invocation must not install a session
	if err := ctx.Err(); err != nil {
		r.logger.Info("invocation cancelled before session install", zap.String("owner", inv.Owner), zap.Error(err))
		return r.notice("cancelled", NoticeGeneric)
	}

	refs := make([]session.ImageRef, len(urls))
	for i, u := range urls {
		refs[i] = session.ImageRef(u)
	}
	id, err := r.store.Create(ctx, inv.Owner, query, refs)
	if err != nil {
		r.logger.Error("create session", zap.String("owner", inv.Owner), zap.Error(err))
		return r.notice("store_error", NoticeGeneric)
	}
	r.metrics.SessionCreated()

	sess, err := session.New(id, inv.Owner, query, refs, r.now())
	if err != nil {
		r.logger.Error("render new session", zap.String("owner", inv.Owner), zap.Error(err))
		return r.notice("invariant", NoticeGeneric)
	}
	r.logger.Debug("session created", zap.String("owner", inv.Owner), zap.String("session_id", id), zap.Int("results", len(refs)))
	return Effect{Kind: EphemeralReply, Payload: presenter.Render(sess), SessionID: id}
}

// HandleButton applies one navigation command inside the owner's critical section.
func (r *Router) HandleButton(ctx context.Context, ev ButtonActivation) (eff Effect) {
	defer r.recoverTo(&eff, "button", ev.Owner)

	cmd, err := pagination.ParseCommand(ev.CommandID)
	if err != nil {
		r.logger.Warn("unknown control", zap.String("owner", ev.Owner), zap.String("command_id", ev.CommandID))
		return r.notice("unknown_command", NoticeGeneric)
	}

	var out pagination.Outcome
	step := pagination.Step(cmd, &out)
	sess, err := r.store.Modify(ctx, ev.Owner, func(s session.Session) (session.Session, error) {
		if ev.SessionID != "" && s.ID != ev.SessionID {
			return s, errStaleControl
		}
		return step(s)
	})
	switch {
	case err == nil:
	case errors.Is(err, session.ErrSessionExpired), errors.Is(err, errStaleControl):
		return r.notice("expired", NoticeExpired)
	case errors.Is(err, session.ErrInvariantViolation):
		r.logger.Error("session invariant violated", zap.String("owner", ev.Owner), zap.String("command", string(cmd)), zap.Error(err))
		return r.notice("invariant", NoticeGeneric)
	default:
		r.logger.Error("apply navigation", zap.String("owner", ev.Owner), zap.String("command", string(cmd)), zap.Error(err))
		return r.notice("store_error", NoticeGeneric)
	}

	r.metrics.Navigated(string(cmd))
	if out.Kind == pagination.Publish {
		r.metrics.Published()
		publisher := ev.Publisher
		if publisher == "" {
			publisher = ev.Owner
		}
		r.logger.Info("image published", zap.String("owner", ev.Owner), zap.String("session_id", sess.ID), zap.String("image", string(out.Image)))
		return Effect{Kind: PublicPost, Payload: presenter.RenderPublished(out.Image, publisher)}
	}
	return Effect{Kind: EphemeralEdit, Payload: presenter.Render(sess), SessionID: sess.ID}
}

func (r *Router) notice(reason, text string) Effect {
	r.metrics.Notice(reason)
	return Effect{Kind: EphemeralNotice, Notice: text}
}

func (r *Router) recoverTo(eff *Effect, event, owner string) {
	if rec := recover(); rec != nil {
		r.logger.Error("handler panic", zap.String("event", event), zap.String("owner", owner), zap.Any("panic", rec), zap.Stack("stack"))
		*eff = r.notice("panic", NoticeGeneric)
	}
}
