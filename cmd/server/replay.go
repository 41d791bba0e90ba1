package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/PolarJunction/AgentOffice/internal/monitor"
	"github.com/PolarJunction/AgentOffice/internal/session"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	styleHeader  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "30", Dark: "45"})
	styleWorking = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "28", Dark: "40"})
	styleIdle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "242", Dark: "240"})
	styleValue   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "0", Dark: "15"})
	styleHint    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "242", Dark: "240"})
)

var replayColumns = []struct {
	title string
	width int
}{
	{"AGENT", 10}, {"STATE", 9}, {"TASK", 10}, {"DONE", 6}, {"STREAK", 8}, {"BEST", 6}, {"FAVORITE", 10},
}

func newReplayCmd(opts *serverOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <log file>",
		Short: "Run a whole gateway log through the tracker and print a summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath, cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			store, events, err := replayFile(args[0], registry(cfg), time.Now())
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), args[0], events, store)
			return nil
		},
	}
}

// replayFile feeds every line of path, from byte 0, through the extractor
// and a fresh store. It returns the store and the number of events found.
func replayFile(path string, agents []session.Agent, now time.Time) (*session.Store, int, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, 0, fmt.Errorf("replay: %w", err)
	}

	chunk, err := monitor.NewTailer(path).Poll()
	if err != nil {
		return nil, 0, fmt.Errorf("replay: %w", err)
	}

	store := session.NewStore(agents, now)
	events := monitor.Extract(chunk.Data)
	for _, ev := range events {
		store.Apply(ev, now)
	}
	return store, len(events), nil
}

func printSummary(w io.Writer, path string, events int, store *session.Store) {
	fmt.Fprintf(w, "  %s %s\n", styleHeader.Render("replay"), styleValue.Render(path))
	fmt.Fprintf(w, "  %s\n\n", styleHint.Render(strconv.Itoa(events)+" lane events"))

	header := make([]string, len(replayColumns))
	for i, c := range replayColumns {
		header[i] = styleHeader.Width(c.width).Render(c.title)
	}
	fmt.Fprintln(w, "  "+strings.Join(header, " "))

	stats := make(map[string]session.AgentStats)
	for _, st := range store.Stats() {
		stats[st.ID] = st
	}
	for _, a := range store.States() {
		st := stats[a.ID]
		task := "-"
		if a.CurrentTask != nil {
			task = *a.CurrentTask
		}
		fav := st.FavoriteActivity
		if fav == "" {
			fav = "-"
		}
		stateStyle := styleIdle
		if a.IsWorking() {
			stateStyle = styleWorking
		}
		cells := []string{
			styleValue.Width(replayColumns[0].width).Render(a.Name),
			stateStyle.Width(replayColumns[1].width).Render(a.State.String()),
			styleValue.Width(replayColumns[2].width).Render(task),
			styleValue.Width(replayColumns[3].width).Render(strconv.Itoa(st.TasksCompleted)),
			styleValue.Width(replayColumns[4].width).Render(strconv.Itoa(st.CurrentStreak)),
			styleValue.Width(replayColumns[5].width).Render(strconv.Itoa(st.BestStreak)),
			styleValue.Width(replayColumns[6].width).Render(fav),
		}
		fmt.Fprintln(w, "  "+strings.Join(cells, " "))
	}
}
