package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iabetor/pivoice/internal/audio"
)

var (
	speakVoice string
	speakOut   string
	speakPlay  bool
	speakSave  bool
)

var speakCmd = &cobra.Command{
	Use:   "speak [文本...]",
	Short: "合成一段文本",
	Long: `合成一段文本并输出 WAV。不给参数时从标准输入读取。

示例:
  pivoice speak "Hello there" --out hello.wav
  echo "Good morning" | pivoice speak --voice Puck --play
  pivoice speak --save "Keep this one"`,
	RunE: runSpeak,
}

func init() {
	rootCmd.AddCommand(speakCmd)

	speakCmd.Flags().StringVar(&speakVoice, "voice", "", "音色 ID（默认取配置）")
	speakCmd.Flags().StringVarP(&speakOut, "out", "o", "", "WAV 输出路径")
	speakCmd.Flags().BoolVar(&speakPlay, "play", false, "合成后立即播放")
	speakCmd.Flags().BoolVar(&speakSave, "save", false, "保存到音频库")
}

func runSpeak(cmd *cobra.Command, args []string) error {
	input := strings.Join(args, " ")
	if input == "" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("读取标准输入失败: %w", err)
		}
		input = string(data)
	}

	app, err := newSession(cfg, speakVoice)
	if err != nil {
		return err
	}
	defer app.Close()

	out := cmd.OutOrStdout()
	item, err := app.Generate(cmd.Context(), input)
	if err != nil {
		// 只展示面向用户的提示，原因已写入日志
		if msg := app.Snapshot().Error; msg != "" {
			return errors.New(msg)
		}
		return err
	}

	pcmLen := len(item.Blob) - audio.HeaderSize
	fmt.Fprintf(out, "%s %s (%s, %.1fs)\n",
		okStyle.Render("✓"), item.ID, item.Voice,
		audio.Duration(pcmLen, audio.Format{SampleRate: item.SampleRate, Channels: audio.Channels, BitsPerSample: audio.BitsPerSample}))

	if speakOut != "" {
		if err := os.WriteFile(speakOut, item.Blob, 0644); err != nil {
			return fmt.Errorf("写入 %s 失败: %w", speakOut, err)
		}
		fmt.Fprintf(out, "已写入 %s\n", speakOut)
	}

	if speakSave {
		lib, closeDB, err := openLibrary(cfg)
		if err != nil {
			return err
		}
		defer closeDB()
		if _, err := lib.Save(*item); err != nil {
			return err
		}
		fmt.Fprintf(out, "已保存到音频库 %s\n", item.ID)
	}

	if speakPlay || cfg.Audio.AutoPlay {
		player, err := openPlayer()
		if err != nil {
			return err
		}
		defer player.Close()
		if err := player.PlayWAV(cmd.Context(), item.Blob); err != nil {
			return fmt.Errorf("播放失败: %w", err)
		}
	}
	return nil
}
