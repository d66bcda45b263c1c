package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iabetor/govoicevox/internal/audio"
	"github.com/iabetor/govoicevox/internal/logger"
)

var (
	outputFile string
	inputFile  string
	useKana    bool
)

var ttsCmd = &cobra.Command{
	Use:   "tts [text]",
	Short: "合成 WAV 文件",
	Long: `将日语文本合成为 WAV 文件。

文本可以作为参数给出，也可以用 -f 从文件读取，"-f -" 表示标准输入。
--kana 表示输入是 AquesTalk 风格的假名，如 "コンニチワ'"。

示例:
  voicevox tts -o hello.wav "こんにちは"
  voicevox tts --style 3 -f script.txt -o out.wav
  voicevox tts --kana -o a.wav "ア'"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if outputFile == "" {
			return fmt.Errorf("需要用 -o 指定输出文件")
		}
		wav, err := synthesize(cmd, args)
		if err != nil {
			return err
		}
		if err := saveToFile(outputFile, wav); err != nil {
			return fmt.Errorf("写入 %s 失败: %w", outputFile, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "已写入 %s (%d 字节)\n", outputFile, len(wav))
		return nil
	},
}

var sayCmd = &cobra.Command{
	Use:   "say [text]",
	Short: "合成并播放",
	Long: `合成日语文本并通过默认扬声器播放。按 Ctrl+C 停止。

示例:
  voicevox say "おはようございます"
  voicevox say --style 1 -o copy.wav "こんばんは"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wav, err := synthesize(cmd, args)
		if err != nil {
			return err
		}
		if outputFile != "" {
			if err := saveToFile(outputFile, wav); err != nil {
				return fmt.Errorf("写入 %s 失败: %w", outputFile, err)
			}
		}

		player, err := audio.NewPlayer()
		if err != nil {
			return err
		}
		defer player.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := player.PlayWAV(ctx, wav); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

// synthesize 读取输入文本并合成 WAV。
func synthesize(cmd *cobra.Command, args []string) ([]byte, error) {
	text, err := readText(args)
	if err != nil {
		return nil, err
	}
	engine, err := openEngine()
	if err != nil {
		return nil, err
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	style := styleFlag(cmd)
	logger.Debugf("[cmd] 合成 %d 个字符，风格=%d kana=%v", len([]rune(text)), style, useKana)
	return engine.SynthesizeWAV(ctx, text, style, useKana)
}

// readText 从参数、文件或标准输入读取文本。
func readText(args []string) (string, error) {
	switch {
	case len(args) == 1 && inputFile != "":
		return "", fmt.Errorf("文本参数和 -f 不能同时使用")
	case len(args) == 1:
		return args[0], nil
	case inputFile == "-":
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("读取标准输入失败: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	case inputFile != "":
		b, err := os.ReadFile(inputFile)
		if err != nil {
			return "", fmt.Errorf("读取 %s 失败: %w", inputFile, err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return "", fmt.Errorf("需要给出文本参数或用 -f 指定输入文件")
}

// saveToFile 保存数据，必要时创建目录。
func saveToFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建目录失败: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}

func addSynthesisFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&inputFile, "file", "f", "", "输入文本文件，- 表示标准输入")
	cmd.Flags().Uint32P("style", "s", 0, "风格 ID，默认使用配置中的 voice_id")
	cmd.Flags().BoolVar(&useKana, "kana", false, "输入为 AquesTalk 风格假名")
}

func init() {
	addSynthesisFlags(ttsCmd)
	ttsCmd.Flags().StringVarP(&outputFile, "output", "o", "", "输出 WAV 文件")
	addSynthesisFlags(sayCmd)
	sayCmd.Flags().StringVarP(&outputFile, "output", "o", "", "同时保存 WAV 到文件")

	rootCmd.AddCommand(ttsCmd, sayCmd)
}
