package roll

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/keshon/rbot/internal/command"

	"github.com/bwmarrin/discordgo"
)

type RollCommand struct {
	// Rand is used for every roll; nil means a freshly seeded source.
	Rand *rand.Rand
	mu   sync.Mutex
}

func (c *RollCommand) Name() string             { return "roll" }
func (c *RollCommand) Description() string      { return "Roll dice like `2d20+1d6-2`" }
func (c *RollCommand) Group() string            { return "fun" }
func (c *RollCommand) UserPermissions() []int64 { return nil }

func (c *RollCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "formula",
				Description: "Supports `2d6+1d4*2-3` and similar math, defaults to one d6",
			},
		},
	}
}

func (c *RollCommand) Run(_ context.Context, data any) error {
	sc, ok := data.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}
	s, e := sc.Session, sc.Event

	formula := "1d6"
	if o, ok := command.Options(e.ApplicationCommandData().Options)["formula"]; ok && o.StringValue() != "" {
		formula = o.StringValue()
	}

	res, err := c.evaluate(formula)
	if err != nil {
		return command.RespondText(s, e, capitalize(err.Error()))
	}
	return command.RespondEmbed(s, e, &discordgo.MessageEmbed{
		Title:       "🎲 Dice Roll",
		Description: describe(command.DisplayName(e), res),
	})
}

func (c *RollCommand) evaluate(formula string) (Result, error) {
	if c.Rand == nil {
		return Evaluate(formula, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Evaluate(formula, c.Rand)
}

func describe(user string, r Result) string {
	return fmt.Sprintf("**%s** rolls `%s`\n**Calculation**:\t%s\n**Result**:\t**%d**", user, r.Input, r.Calculation, r.Total)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
