package realtime

import (
	"context"
	"sort"
)

// Command is work queued for the start of the next tick. now is the tick
// time in ms.
type Command func(ctx context.Context, now float64)

// CommandWithMeta adds sequencing metadata for deterministic ordering
type CommandWithMeta struct {
	Command     Command
	SequenceNum uint64
	Priority    int
}

// sortCommands orders commands deterministically
func sortCommands(cmds []CommandWithMeta) {
	sort.SliceStable(cmds, func(i, j int) bool {
		// Higher priority first
		if cmds[i].Priority != cmds[j].Priority {
			return cmds[i].Priority > cmds[j].Priority
		}
		// FIFO within a priority
		return cmds[i].SequenceNum < cmds[j].SequenceNum
	})
}
