package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var libraryCmd = &cobra.Command{
	Use:     "library",
	Aliases: []string{"lib"},
	Short:   "管理已保存的音频",
	Long: `列出、导出或删除保存到音频库中的音频。

示例:
  pivoice library list
  pivoice library export <id> ./exports
  pivoice library delete <id>`,
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出已保存的音频",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		lib, closeDB, err := openLibrary(cfg)
		if err != nil {
			return err
		}
		defer closeDB()

		clips, err := lib.List()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(clips) == 0 {
			fmt.Fprintln(out, mutedStyle.Render("音频库为空"))
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\t音色\t大小\t创建时间\t文本")
		for _, c := range clips {
			fmt.Fprintf(tw, "%s\t%s\t%dKB\t%s\t%s\n",
				c.ID, c.VoiceName, c.Size/1024, c.CreatedAt.Format("2006-01-02 15:04"), preview(c.Text, 40))
		}
		return tw.Flush()
	},
}

var libraryExportCmd = &cobra.Command{
	Use:   "export <id> <目录>",
	Short: "导出 WAV 和元数据",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, closeDB, err := openLibrary(cfg)
		if err != nil {
			return err
		}
		defer closeDB()

		path, err := lib.Export(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "已导出 %s\n", path)
		return nil
	},
}

var libraryDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "删除一条音频",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, closeDB, err := openLibrary(cfg)
		if err != nil {
			return err
		}
		defer closeDB()

		if err := lib.Delete(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "已删除 %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(libraryCmd)
	libraryCmd.AddCommand(libraryListCmd, libraryExportCmd, libraryDeleteCmd)
}

// preview 截取前 n 个字符用于列表展示。
func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
