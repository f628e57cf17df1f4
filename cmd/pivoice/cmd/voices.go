package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/iabetor/pivoice/internal/voice"
)

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "列出可用音色",
	RunE: func(cmd *cobra.Command, _ []string) error {
		renderVoices(cmd.OutOrStdout(), cfg.TTS.Voice)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(voicesCmd)
}

// renderVoices 打印音色目录，selected 所在行高亮。
func renderVoices(w io.Writer, selected string) {
	fmt.Fprintln(w, titleStyle.Render("音色"))
	for _, o := range voice.All() {
		marker := "  "
		name := cellStyle.Width(10).Render(o.Name)
		if o.ID == selected {
			marker = "▸ "
			name = currentStyle.Inherit(cellStyle).Width(10).Render(o.Name)
		}
		row := lipgloss.JoinHorizontal(lipgloss.Top,
			marker,
			name,
			cellStyle.Width(8).Render(string(o.Gender)),
			mutedStyle.Render(o.Accent),
		)
		fmt.Fprintln(w, row)
	}
}
