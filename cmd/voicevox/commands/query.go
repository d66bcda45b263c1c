package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iabetor/govoicevox/pkg/voicevox"
)

var queryInput string

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "输出 AudioQuery JSON",
	Long: `从日语文本（或 --kana 假名）生成 AudioQuery 并以 JSON 输出。

用 --synthesize 读取编辑过的 AudioQuery JSON 文件并合成为 WAV。

示例:
  voicevox query "こんにちは" > q.json
  voicevox query --synthesize q.json -o out.wav`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine()
		if err != nil {
			return err
		}
		defer engine.Close()
		synth := engine.Synthesizer()
		style := styleFlag(cmd)

		if queryInput != "" {
			return synthesizeQuery(cmd, synth, style)
		}

		text, err := readText(args)
		if err != nil {
			return err
		}
		var q *voicevox.AudioQuery
		if useKana {
			q, err = synth.CreateAudioQueryFromKana(text, style)
		} else {
			q, err = synth.CreateAudioQueryAsync(context.Background(), text, style)
		}
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(q)
	},
}

func synthesizeQuery(cmd *cobra.Command, synth *voicevox.Synthesizer, style uint32) error {
	if outputFile == "" {
		return fmt.Errorf("需要用 -o 指定输出文件")
	}
	data, err := os.ReadFile(queryInput)
	if err != nil {
		return fmt.Errorf("读取 %s 失败: %w", queryInput, err)
	}
	var q voicevox.AudioQuery
	if err := json.Unmarshal(data, &q); err != nil {
		return fmt.Errorf("解析 AudioQuery 失败: %w", err)
	}
	wav, err := synth.SynthesisAsync(context.Background(), &q, style, nil)
	if err != nil {
		return err
	}
	if err := saveToFile(outputFile, wav); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", outputFile, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "已写入 %s (%d 字节)\n", outputFile, len(wav))
	return nil
}

func init() {
	addSynthesisFlags(queryCmd)
	queryCmd.Flags().StringVar(&queryInput, "synthesize", "", "合成该 AudioQuery JSON 文件")
	queryCmd.Flags().StringVarP(&outputFile, "output", "o", "", "--synthesize 的输出 WAV 文件")
	rootCmd.AddCommand(queryCmd)
}
