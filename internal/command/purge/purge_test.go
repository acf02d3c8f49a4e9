package purge

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, defaultCount, clamp(0))
	assert.Equal(t, 1, clamp(1))
	assert.Equal(t, 42, clamp(42))
	assert.Equal(t, maxCount, clamp(1000))
}

func TestPartitionByAge(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msgs := []*discordgo.Message{
		{ID: "fresh", Timestamp: now.Add(-time.Hour)},
		nil,
		{ID: "old", Timestamp: now.Add(-15 * 24 * time.Hour)},
		{ID: "edge", Timestamp: now.Add(-13 * 24 * time.Hour)},
	}
	bulk, single := partition(msgs, now)
	assert.Equal(t, []string{"fresh", "edge"}, bulk)
	assert.Equal(t, []string{"old"}, single)
}

func TestRequiresManageMessages(t *testing.T) {
	c := &ClearCommand{}
	assert.Equal(t, []int64{discordgo.PermissionManageMessages}, c.UserPermissions())
	def := c.SlashDefinition()
	assert.Equal(t, "clear", def.Name)
	assert.Equal(t, float64(maxCount), def.Options[0].MaxValue)
}
