package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/mohammad-safakhou/picbot/config"
	"github.com/mohammad-safakhou/picbot/internal/router"
	"go.uber.org/zap"
)

// Responder is the subset of *discordgo.Session used to answer interactions.
type Responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Handler is implemented by *router.Router.
type Handler interface {
	HandleInvocation(ctx context.Context, inv router.Invocation) router.Effect
	HandleButton(ctx context.Context, ev router.ButtonActivation) router.Effect
}

// Dispatcher decodes interactions, runs them through the handler and sends
// the resulting effect back.
type Dispatcher struct {
	handler     Handler
	commandName string
	timeout     time.Duration
	logger      *zap.Logger
}

func NewDispatcher(handler Handler, commandName string, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{handler: handler, commandName: commandName, timeout: timeout, logger: logger.With(zap.String("component", "discord"))}
}

func (d *Dispatcher) Dispatch(ctx context.Context, rs Responder, ic *discordgo.InteractionCreate) {
	if ic == nil || ic.Interaction == nil {
		return
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	switch ic.Type {
	case discordgo.InteractionApplicationCommand:
		d.onCommand(ctx, rs, ic.Interaction)
	case discordgo.InteractionMessageComponent:
		d.onComponent(ctx, rs, ic.Interaction)
	}
}

func (d *Dispatcher) onCommand(ctx context.Context, rs Responder, i *discordgo.Interaction) {
	data := i.ApplicationCommandData()
	if data.Name != d.commandName {
		return
	}
	owner, _ := actor(i)
	var query string
	for _, opt := range data.Options {
		if opt.Name == QueryOption && opt.Type == discordgo.ApplicationCommandOptionString {
			query = opt.StringValue()
		}
	}

	// Searching can outlast Discord's three second reply window.
	err := rs.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		d.logger.Warn("defer reply", zap.String("owner", owner), zap.Error(err))
		return
	}

	eff := d.handler.HandleInvocation(ctx, router.Invocation{Owner: owner, Query: query})
	if _, err := rs.FollowupMessageCreate(i, true, followup(eff)); err != nil {
		d.logger.Warn("send follow-up", zap.String("owner", owner), zap.Stringer("effect", eff.Kind), zap.Error(err))
	}
}

func (d *Dispatcher) onComponent(ctx context.Context, rs Responder, i *discordgo.Interaction) {
	owner, name := actor(i)
	command, sessionID := parseCustomID(i.MessageComponentData().CustomID)
	eff := d.handler.HandleButton(ctx, router.ButtonActivation{
		Owner:     owner,
		Publisher: name,
		CommandID: command,
		SessionID: sessionID,
	})
	if err := rs.InteractionRespond(i, componentResponse(eff)); err != nil {
		d.logger.Warn("answer button", zap.String("owner", owner), zap.String("command", command), zap.Stringer("effect", eff.Kind), zap.Error(err))
	}
}

// Bot owns the gateway connection.
type Bot struct {
	session    *discordgo.Session
	dispatcher *Dispatcher
	guildID    string
	command    string
	logger     *zap.Logger
}

func New(cfg config.DiscordConfig, handler Handler, logger *zap.Logger) (*Bot, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dg, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds
	return &Bot{
		session:    dg,
		dispatcher: NewDispatcher(handler, cfg.CommandName, cfg.InteractionTimeout, logger),
		guildID:    cfg.GuildID,
		command:    cfg.CommandName,
		logger:     logger.With(zap.String("component", "discord")),
	}, nil
}

// Run connects, registers the slash command and serves interactions until
// ctx is done. In-flight handlers see ctx cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.logger.Info("bot connected", zap.String("app_id", r.User.ID), zap.String("name", r.User.Username))
	})
	b.session.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		b.dispatcher.Dispatch(ctx, s, ic)
	})

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	defer func() {
		if err := b.session.Close(); err != nil {
			b.logger.Warn("discord close", zap.Error(err))
		}
	}()

	appID := b.session.State.User.ID
	if _, err := b.session.ApplicationCommandCreate(appID, b.guildID, Command(b.command)); err != nil {
		return fmt.Errorf("register /%s: %w", b.command, err)
	}
	b.logger.Info("slash command registered", zap.String("command", b.command), zap.String("guild_id", b.guildID))

	<-ctx.Done()
	return nil
}
