package command

import "errors"

var ErrNotInVoice = errors.New("user not in any voice channel")

// VoiceState is the voice channel a user currently sits in.
type VoiceState struct {
	ChannelID string
	UserID    string
}

// VoiceLocator finds users in voice channels.
type VoiceLocator interface {
	FindUserVoiceState(guildID, userID string) (*VoiceState, error)
}
