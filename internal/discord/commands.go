package discord

import (
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/keshon/rbot/internal/command"
	"github.com/keshon/rbot/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

// registerCommands syncs slash commands for a guild with Discord: obsolete
// ones are deleted, new or changed ones are created.
func (b *Bot) registerCommands(guildID string) error {
	appID, err := b.appID()
	if err != nil {
		return err
	}

	remote, err := b.dg.ApplicationCommands(appID, guildID)
	if err != nil {
		return fmt.Errorf("list commands: %w", err)
	}
	remoteByName := make(map[string]*discordgo.ApplicationCommand, len(remote))
	for _, c := range remote {
		remoteByName[c.Name] = c
	}

	local := buildCommandDefinitions(b.commands)
	hashes := b.loadCommandHashes(guildID)

	b.deleteObsoleteCommands(appID, guildID, remoteByName, local, hashes)
	b.upsertChangedCommands(appID, guildID, local, remoteByName, hashes)

	b.saveCommandHashes(guildID, hashes)
	return nil
}

// buildCommandDefinitions returns the definitions of every registered command.
func buildCommandDefinitions(reg *cmd.Registry) []*discordgo.ApplicationCommand {
	var defs []*discordgo.ApplicationCommand
	for _, c := range reg.GetAll() {
		if def := command.Definition(c); def != nil {
			defs = append(defs, def)
		}
	}
	return defs
}

func (b *Bot) deleteObsoleteCommands(appID, guildID string, remote map[string]*discordgo.ApplicationCommand, local []*discordgo.ApplicationCommand, hashes map[string]string) {
	wanted := make(map[string]struct{}, len(local))
	for _, d := range local {
		wanted[d.Name] = struct{}{}
	}
	for name, rc := range remote {
		if _, ok := wanted[name]; ok {
			continue
		}
		log := b.log.With().Str("guild", guildID).Str("command", name).Logger()
		if err := b.dg.ApplicationCommandDelete(appID, guildID, rc.ID); err != nil {
			log.Error().Err(err).Msg("failed to delete obsolete command")
			continue
		}
		delete(hashes, name)
		log.Info().Msg("deleted obsolete command")
	}
}

// upsertChangedCommands creates commands that are missing remotely or whose
// hash differs from the cached one.
func (b *Bot) upsertChangedCommands(appID, guildID string, defs []*discordgo.ApplicationCommand, remote map[string]*discordgo.ApplicationCommand, hashes map[string]string) {
	changed := changedCommands(defs, remote, hashes)
	if len(changed) == 0 {
		return
	}

	b.log.Info().Str("guild", guildID).Int("count", len(changed)).Msg("registering changed commands")
	for _, d := range changed {
		if _, err := b.dg.ApplicationCommandCreate(appID, guildID, d); err != nil {
			b.log.Error().Err(err).Str("guild", guildID).Str("command", d.Name).Msg("failed to register command")
			continue
		}
		hashes[d.Name] = hashCommand(d)
		time.Sleep(25 * time.Millisecond) // stay under the rate limit
	}
}

func changedCommands(defs []*discordgo.ApplicationCommand, remote map[string]*discordgo.ApplicationCommand, hashes map[string]string) []*discordgo.ApplicationCommand {
	var changed []*discordgo.ApplicationCommand
	for _, d := range defs {
		_, exists := remote[d.Name]
		if !exists || hashes[d.Name] != hashCommand(d) {
			changed = append(changed, d)
		}
	}
	return changed
}

func (b *Bot) removeAllCommands(guildID string) {
	appID, err := b.appID()
	if err != nil {
		b.log.Error().Err(err).Msg("failed to resolve app id")
		return
	}
	existing, _ := b.dg.ApplicationCommands(appID, guildID)
	for _, c := range existing {
		if err := b.dg.ApplicationCommandDelete(appID, guildID, c.ID); err != nil {
			b.log.Error().Err(err).Str("guild", guildID).Str("command", c.Name).Msg("failed to delete command")
		}
	}
	b.saveCommandHashes(guildID, map[string]string{})
}

// appID returns the bot's application ID, fetching it when State has none yet.
func (b *Bot) appID() (string, error) {
	if b.dg.State != nil && b.dg.State.User != nil && b.dg.State.User.ID != "" {
		return b.dg.State.User.ID, nil
	}
	u, err := b.dg.User("@me")
	if err != nil {
		return "", fmt.Errorf("failed to fetch bot user: %w", err)
	}
	return u.ID, nil
}

// --- Command hash cache ---

func (b *Bot) commandHashPath(guildID string) string {
	return filepath.Join(b.cfg.DataDir, "commands", guildID+".json")
}

func (b *Bot) loadCommandHashes(guildID string) map[string]string {
	out := make(map[string]string)
	if data, err := os.ReadFile(b.commandHashPath(guildID)); err == nil {
		_ = json.Unmarshal(data, &out)
	}
	return out
}

func (b *Bot) saveCommandHashes(guildID string, hashes map[string]string) {
	path := b.commandHashPath(guildID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		b.log.Warn().Err(err).Msg("failed to create command cache dir")
		return
	}
	data, err := json.MarshalIndent(maps.Clone(hashes), "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		b.log.Warn().Err(err).Str("path", path).Msg("failed to write command cache")
	}
}

// --- Command hashing ---

// hashCommand returns a deterministic SHA-1 of a command's stable fields.
func hashCommand(c *discordgo.ApplicationCommand) string {
	stable := map[string]any{
		"name":        c.Name,
		"description": c.Description,
		"type":        c.Type,
	}
	if len(c.Options) > 0 {
		stable["options"] = normalizeOptions(c.Options)
	}
	data, _ := json.Marshal(stable)
	return fmt.Sprintf("%x", sha1.Sum(data))
}

func normalizeOptions(opts []*discordgo.ApplicationCommandOption) []map[string]any {
	out := make([]map[string]any, len(opts))
	for i, o := range opts {
		entry := map[string]any{
			"name":        o.Name,
			"description": o.Description,
			"type":        o.Type,
			"required":    o.Required,
			"max_value":   o.MaxValue,
		}
		if o.MinValue != nil {
			entry["min_value"] = *o.MinValue
		}
		if len(o.Choices) > 0 {
			choices := make([]map[string]any, len(o.Choices))
			for j, ch := range o.Choices {
				choices[j] = map[string]any{"name": ch.Name, "value": ch.Value}
			}
			entry["choices"] = choices
		}
		if len(o.Options) > 0 {
			entry["options"] = normalizeOptions(o.Options)
		}
		out[i] = entry
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i]["name"].(string) < out[j]["name"].(string)
	})
	return out
}
