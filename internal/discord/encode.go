package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/mohammad-safakhou/picbot/internal/presenter"
	"github.com/mohammad-safakhou/picbot/internal/router"
)

// customIDSep joins a command and the session it was rendered for.
const customIDSep = ":"

// QueryOption is the slash command's only option.
const QueryOption = "query"

// Command describes the slash command registered with Discord.
func Command(name string) *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        name,
		Description: "Search for images by query",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        QueryOption,
				Description: "What to search for",
				Required:    true,
			},
		},
	}
}

func customID(command, sessionID string) string {
	if sessionID == "" {
		return command
	}
	return command + customIDSep + sessionID
}

func parseCustomID(id string) (command, sessionID string) {
	command, sessionID, _ = strings.Cut(id, customIDSep)
	return command, sessionID
}

func embed(p presenter.Payload) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{Title: p.Title}
	if p.ImageURL != "" {
		e.Image = &discordgo.MessageEmbedImage{URL: p.ImageURL}
	}
	return e
}

func buttonStyle(s presenter.Style) discordgo.ButtonStyle {
	if s == presenter.StyleSuccess {
		return discordgo.SuccessButton
	}
	return discordgo.PrimaryButton
}

func components(p presenter.Payload, sessionID string) []discordgo.MessageComponent {
	if len(p.Controls) == 0 {
		return []discordgo.MessageComponent{}
	}
	buttons := make([]discordgo.MessageComponent, 0, len(p.Controls))
	for _, c := range p.Controls {
		buttons = append(buttons, discordgo.Button{
			Label:    c.Label,
			Style:    buttonStyle(c.Style),
			CustomID: customID(string(c.Command), sessionID),
		})
	}
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
}

// responseData renders an effect as message data.
func responseData(eff router.Effect) *discordgo.InteractionResponseData {
	switch eff.Kind {
	case router.EphemeralNotice:
		return &discordgo.InteractionResponseData{
			Content:    eff.Notice,
			Flags:      discordgo.MessageFlagsEphemeral,
			Components: []discordgo.MessageComponent{},
		}
	case router.PublicPost:
		return &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed(eff.Payload)},
		}
	default:
		return &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embed(eff.Payload)},
			Components: components(eff.Payload, eff.SessionID),
			Flags:      discordgo.MessageFlagsEphemeral,
		}
	}
}

// componentResponse answers a button click.
func componentResponse(eff router.Effect) *discordgo.InteractionResponse {
	typ := discordgo.InteractionResponseChannelMessageWithSource
	if eff.Kind == router.EphemeralEdit {
		typ = discordgo.InteractionResponseUpdateMessage
	}
	return &discordgo.InteractionResponse{Type: typ, Data: responseData(eff)}
}

// followup completes a deferred slash command.
func followup(eff router.Effect) *discordgo.WebhookParams {
	data := responseData(eff)
	return &discordgo.WebhookParams{
		Content:    data.Content,
		Embeds:     data.Embeds,
		Components: data.Components,
		Flags:      data.Flags,
	}
}

// actor returns the user id and display name of whoever triggered i.
func actor(i *discordgo.Interaction) (id, name string) {
	var u *discordgo.User
	if i.Member != nil && i.Member.User != nil {
		u = i.Member.User
		if i.Member.Nick != "" {
			name = i.Member.Nick
		}
	} else {
		u = i.User
	}
	if u == nil {
		return "", name
	}
	if name == "" {
		name = u.GlobalName
	}
	if name == "" {
		name = u.Username
	}
	return u.ID, name
}
