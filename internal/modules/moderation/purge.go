package moderation

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	pageSize   = 100
	bulkMaxAge = 14 * 24 * time.Hour
)

type MessageDeleter interface {
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessagesBulkDelete(channelID string, messages []string, options ...discordgo.RequestOption) error
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

// PurgeMessages deletes up to amount of the newest messages in a channel and
// returns how many were removed. Discord only bulk-deletes messages younger
// than two weeks, so older ones are deleted one by one.
func PurgeMessages(ctx context.Context, api MessageDeleter, channelID string, amount int, now time.Time) (int, error) {
	cutoff := now.Add(-bulkMaxAge)
	deleted := 0
	before := ""
	for deleted < amount {
		limit := min(amount-deleted, pageSize)
		page, err := api.ChannelMessages(channelID, limit, before, "", "", discordgo.WithContext(ctx))
		if err != nil {
			return deleted, err
		}
		if len(page) == 0 {
			break
		}
		before = page[len(page)-1].ID

		var recent, old []string
		for _, msg := range page {
			if msg.Timestamp.After(cutoff) {
				recent = append(recent, msg.ID)
			} else {
				old = append(old, msg.ID)
			}
		}

		switch len(recent) {
		case 0:
		case 1:
			old = append(old, recent[0])
		default:
			if err := api.ChannelMessagesBulkDelete(channelID, recent, discordgo.WithContext(ctx)); err != nil {
				return deleted, err
			}
			deleted += len(recent)
		}
		for _, id := range old {
			if err := api.ChannelMessageDelete(channelID, id, discordgo.WithContext(ctx)); err != nil {
				return deleted, err
			}
			deleted++
		}
		if len(page) < limit {
			break
		}
	}
	return deleted, nil
}
