package discord

import (
	"log"

	"github.com/bwmarrin/discordgo"
)

const ephemeralFlag = discordgo.MessageFlagsEphemeral

// SendEphemeral posts an ephemeral message only visible to the user who interacted.
func SendEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) error {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
			Flags:   ephemeralFlag,
		},
	})
	if err != nil {
		log.Printf("SendEphemeral error: %v", err)
	}
	return err
}

// SendEphemeralEmbed responds with an ephemeral embed.
func SendEphemeralEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, emb *discordgo.MessageEmbed) error {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{emb},
			Flags:  ephemeralFlag,
		},
	})
	if err != nil {
		log.Printf("SendEphemeralEmbed error: %v", err)
	}
	return err
}

// DeferEphemeral acknowledges within Discord's 3s window; answer later with EditDeferred.
func DeferEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: ephemeralFlag},
	})
	if err != nil {
		log.Printf("DeferEphemeral error: %v", err)
	}
	return err
}

// EditDeferred fills in the response of a deferred interaction.
func EditDeferred(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) error {
	_, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &msg})
	if err != nil {
		log.Printf("EditDeferred error: %v", err)
	}
	return err
}

// UserOf extracts the effective user from an interaction (guild or DM).
func UserOf(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// SafeName returns a defensively safe username string.
func SafeName(u *discordgo.User) string {
	if u == nil {
		return "unknown"
	}
	return u.Username
}
