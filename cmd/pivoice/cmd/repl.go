package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/iabetor/pivoice/internal/audio"
	"github.com/iabetor/pivoice/internal/history"
	"github.com/iabetor/pivoice/internal/library"
	"github.com/iabetor/pivoice/internal/logger"
	"github.com/iabetor/pivoice/internal/session"
)

var replVoice string

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "交互式会话",
	Long: `逐行输入文本进行合成，以 ":" 开头的行是命令，输入 :help 查看。
合成在后台进行，期间仍可查看历史或切换音色。`,
	Args: cobra.NoArgs,
	RunE: runREPL,
}

func init() {
	rootCmd.AddCommand(replCmd)
	replCmd.Flags().StringVar(&replVoice, "voice", "", "初始音色 ID")
}

func runREPL(cmd *cobra.Command, _ []string) error {
	app, err := newSession(cfg, replVoice)
	if err != nil {
		return err
	}
	defer app.Close()

	r := newREPL(cmd.Context(), app, cmd.OutOrStdout())
	r.autoPlay = cfg.Audio.AutoPlay

	if lib, closeDB, err := openLibrary(cfg); err != nil {
		logger.Warnf("[repl] 音频库不可用: %v", err)
	} else {
		defer closeDB()
		r.lib = lib
	}
	if p, err := openPlayer(); err != nil {
		logger.Warnf("[repl] 播放不可用: %v", err)
	} else {
		defer p.Close()
		r.player = p
	}

	return r.run(cmd.InOrStdin())
}

// syncWriter 让后台 goroutine 与主循环安全地共用输出。
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

type repl struct {
	ctx      context.Context
	app      *session.App
	lib      *library.Store
	player   wavPlayer
	autoPlay bool
	out      io.Writer

	pending sync.WaitGroup

	playMu   sync.Mutex
	playWG   sync.WaitGroup
	stopPlay context.CancelFunc
}

func newREPL(ctx context.Context, app *session.App, out io.Writer) *repl {
	r := &repl{ctx: ctx, app: app, out: &syncWriter{w: out}}
	app.OnChange(func(_, to session.State) {
		if to == session.StateRequesting {
			r.println(mutedStyle.Render("Generating..."))
		}
	})
	return r
}

func (r *repl) printf(format string, args ...any) { fmt.Fprintf(r.out, format, args...) }
func (r *repl) println(s string)                   { fmt.Fprintln(r.out, s) }

// run 读取输入直到 EOF 或 :quit，退出前等待进行中的请求。
func (r *repl) run(in io.Reader) error {
	r.println(titleStyle.Render("PiVoice") + mutedStyle.Render("  输入文本回车合成，:help 查看命令"))
	r.println(mutedStyle.Render("示例: " + session.DefaultText))

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		r.printf("%s ", promptStyle.Render(r.app.Snapshot().Voice.Name+">"))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ":") {
			if quit := r.command(line); quit {
				break
			}
			continue
		}
		r.generate(func(ctx context.Context) (*history.Item, error) {
			return r.app.Generate(ctx, line)
		})
	}

	r.pending.Wait()
	r.stopPlayback()
	r.playWG.Wait()
	return scanner.Err()
}

// generate 在后台执行合成，主循环继续接受输入。
func (r *repl) generate(fn func(context.Context) (*history.Item, error)) {
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		item, err := fn(r.ctx)
		if err != nil {
			r.println(errorStyle.Render(userMessage(err)))
			return
		}
		r.println(describe(item))
		if r.autoPlay {
			r.play(item.Blob)
		}
	}()
}

// userMessage 把会话错误转为给用户看的提示，不暴露底层原因。
func userMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrEmptyText):
		return session.MsgEmptyText
	case errors.Is(err, session.ErrBusy):
		return "A request is already in progress. Please wait."
	case errors.Is(err, session.ErrNoCurrent):
		return "Nothing to regenerate yet."
	case errors.Is(err, session.ErrNotFound):
		return "No such history entry."
	}
	return session.MsgGenerationFailed
}

func describe(item *history.Item) string {
	f := audio.Format{SampleRate: item.SampleRate, Channels: audio.Channels, BitsPerSample: audio.BitsPerSample}
	secs := audio.Duration(len(item.Blob)-audio.HeaderSize, f)
	return fmt.Sprintf("%s %s  %s  %.1fs  %s",
		okStyle.Render("✓"), item.ID, item.Voice, secs, mutedStyle.Render(item.AudioURL))
}

// command 执行一条冒号命令，返回 true 表示退出。
func (r *repl) command(line string) bool {
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "q", "quit", "exit":
		return true
	case "h", "help":
		r.help()
	case "voices":
		renderVoices(r.out, r.app.Snapshot().Voice.ID)
	case "voice":
		if arg == "" {
			v := r.app.Snapshot().Voice
			r.printf("当前音色: %s (%s)\n", v.Name, v.ID)
			break
		}
		v := r.app.SelectVoice(arg)
		r.printf("音色已切换为 %s\n", v.Name)
	case "regen", "r":
		r.generate(r.app.Regenerate)
	case "history", "ls":
		r.history()
	case "play", "p":
		r.playCommand(arg)
	case "stop":
		r.stopPlayback()
	case "save":
		r.save(arg)
	case "status":
		r.status()
	default:
		r.println(errorStyle.Render("未知命令 :" + name + "，输入 :help 查看"))
	}
	return false
}

func (r *repl) help() {
	r.println(titleStyle.Render("命令"))
	for _, row := range [][2]string{
		{":voice [ID]", "查看或切换音色"},
		{":voices", "列出音色"},
		{":regen", "用当前文本和音色重新合成"},
		{":history", "查看最近 5 条"},
		{":play [ID|序号]", "播放当前或历史中的音频"},
		{":stop", "停止播放"},
		{":save [ID|序号]", "保存到音频库"},
		{":status", "查看会话状态"},
		{":quit", "退出"},
	} {
		r.printf("  %s %s\n", cellStyle.Width(18).Render(row[0]), mutedStyle.Render(row[1]))
	}
}

func (r *repl) history() {
	snap := r.app.Snapshot()
	if len(snap.History) == 0 {
		r.println(mutedStyle.Render("暂无历史"))
		return
	}
	for i, it := range snap.History {
		line := fmt.Sprintf("%d. %s  %s  %s", i+1, it.ID, it.Voice, preview(it.Text, 48))
		if snap.Current != nil && snap.Current.ID == it.ID {
			line = currentStyle.Render("▸ " + line)
		} else {
			line = "  " + line
		}
		r.println(line)
	}
}

func (r *repl) status() {
	snap := r.app.Snapshot()
	r.printf("状态: %s  音色: %s  历史: %d\n", snap.State, snap.Voice.Name, len(snap.History))
	if snap.Current != nil {
		r.printf("当前: %s\n", snap.Current.ID)
	}
	if snap.Error != "" {
		r.println(errorStyle.Render(snap.Error))
	}
}

// resolve 按序号（从 1 开始）或 ID 在历史中查找；arg 为空时返回当前音频。
func (r *repl) resolve(arg string) (history.Item, bool) {
	snap := r.app.Snapshot()
	if arg == "" {
		if snap.Current == nil {
			return history.Item{}, false
		}
		return *snap.Current, true
	}
	if n, err := strconv.Atoi(arg); err == nil && n >= 1 && n <= len(snap.History) {
		return snap.History[n-1], true
	}
	for _, it := range snap.History {
		if it.ID == arg {
			return it, true
		}
	}
	return history.Item{}, false
}

func (r *repl) playCommand(arg string) {
	item, ok := r.resolve(arg)
	if !ok {
		r.println(errorStyle.Render(userMessage(session.ErrNotFound)))
		return
	}
	if _, err := r.app.SelectHistory(item.ID); err != nil {
		r.println(errorStyle.Render(userMessage(err)))
		return
	}
	r.printf("▶ %s\n", item.ID)
	r.play(item.Blob)
}

// play 在后台播放，新的播放会打断旧的。
func (r *repl) play(wav []byte) {
	if r.player == nil {
		r.println(mutedStyle.Render("播放不可用"))
		return
	}
	r.stopPlayback()

	ctx, cancel := context.WithCancel(r.ctx)
	r.playMu.Lock()
	r.stopPlay = cancel
	r.playMu.Unlock()

	r.playWG.Add(1)
	go func() {
		defer r.playWG.Done()
		defer cancel()
		if err := r.player.PlayWAV(ctx, wav); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warnf("[repl] 播放失败: %v", err)
			r.println(errorStyle.Render("播放失败"))
		}
	}()
}

func (r *repl) stopPlayback() {
	r.playMu.Lock()
	defer r.playMu.Unlock()
	if r.stopPlay != nil {
		r.stopPlay()
		r.stopPlay = nil
	}
}

func (r *repl) save(arg string) {
	if r.lib == nil {
		r.println(errorStyle.Render("音频库不可用"))
		return
	}
	item, ok := r.resolve(arg)
	if !ok {
		r.println(errorStyle.Render(userMessage(session.ErrNotFound)))
		return
	}
	if _, err := r.lib.Save(item); err != nil {
		logger.Errorf("[repl] 保存失败: %v", err)
		r.println(errorStyle.Render("保存失败"))
		return
	}
	r.printf("%s 已保存 %s\n", okStyle.Render("✓"), item.ID)
}
