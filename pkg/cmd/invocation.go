// Package cmd is the transport-free command core. A command has a name, a
// description and Run; adapters decide how it is exposed and what Data carries.
package cmd

import "context"

// Invocation is the input handed to a command. Data holds the adapter's own
// context value, for Discord an interaction context.
type Invocation struct {
	Args []string
	Data any
}

// Arg returns the i-th argument or "" when absent.
func (inv *Invocation) Arg(i int) string {
	if inv == nil || i < 0 || i >= len(inv.Args) {
		return ""
	}
	return inv.Args[i]
}

// Command is identity plus execution.
type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}
