package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iabetor/govoicevox/internal/logger"
	"github.com/iabetor/govoicevox/pkg/voicevox"
)

var (
	dictFile     string
	dictAccent   uint64
	dictPOS      string
	dictPriority uint32
)

var dictCmd = &cobra.Command{
	Use:   "dict",
	Short: "管理用户词典",
	Long: `管理 VOICEVOX 用户词典文件（JSON）。

词典文件默认使用配置中的 core.user_dict，可以用 --file 覆盖。
文件不存在时 add 会新建。

示例:
  voicevox dict add ＶＯＩＣＥＶＯＸ ボイスボックス --accent 4 --pos "proper noun"
  voicevox dict list
  voicevox dict update <uuid> 手札 テフダ --priority 8
  voicevox dict remove <uuid>`,
}

var dictAddCmd = &cobra.Command{
	Use:   "add <surface> <pronunciation>",
	Short: "添加单词",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDict(true, func(d *voicevox.UserDict) (bool, error) {
			id, err := d.AddWord(args[0], args[1], wordOptions(cmd))
			if err != nil {
				return false, err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return true, nil
		})
	},
}

var dictUpdateCmd = &cobra.Command{
	Use:   "update <uuid> <surface> <pronunciation>",
	Short: "更新单词",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDict(false, func(d *voicevox.UserDict) (bool, error) {
			return true, d.UpdateWord(args[0], args[1], args[2], wordOptions(cmd))
		})
	},
}

var dictRemoveCmd = &cobra.Command{
	Use:   "remove <uuid>",
	Short: "删除单词",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDict(false, func(d *voicevox.UserDict) (bool, error) {
			return true, d.RemoveWord(args[0])
		})
	},
}

var dictListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出单词",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDict(false, func(d *voicevox.UserDict) (bool, error) {
			if jsonOutput {
				s, err := d.ToJSON()
				if err != nil {
					return false, err
				}
				fmt.Fprintln(cmd.OutOrStdout(), s)
				return false, nil
			}
			words, err := d.Words()
			if err != nil {
				return false, err
			}
			ids := make([]string, 0, len(words))
			for id := range words {
				ids = append(ids, id)
			}
			sort.Slice(ids, func(i, j int) bool {
				return words[ids[i]].Surface < words[ids[j]].Surface
			})

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "UUID\t表记\t读音\t重音\t词性\t优先级")
			for _, id := range ids {
				wd := words[id]
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%d\n", id, wd.Surface, wd.Pronunciation, wd.AccentType, wd.WordType, wd.Priority)
			}
			return false, w.Flush()
		})
	},
}

// withDict 打开词典文件，执行 fn，fn 返回 true 时写回文件。
func withDict(create bool, fn func(d *voicevox.UserDict) (bool, error)) error {
	path := dictFile
	if path == "" {
		path = globalConfig.Core.UserDict
	}
	if path == "" {
		return fmt.Errorf("未指定词典文件，请使用 --file 或配置 core.user_dict")
	}

	core, err := loadCore()
	if err != nil {
		return err
	}
	defer core.Close()

	dict, err := core.NewUserDict()
	if err != nil {
		return err
	}
	defer dict.Close()

	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		if err := dict.Load(path); err != nil {
			return err
		}
	case errors.Is(statErr, fs.ErrNotExist) && create:
		logger.Infof("[dict] 新建词典 %s", path)
	default:
		return fmt.Errorf("打开词典 %s 失败: %w", path, statErr)
	}

	dirty, err := fn(dict)
	if err != nil || !dirty {
		return err
	}
	if err := dict.Save(path); err != nil {
		return err
	}
	logger.Debugf("[dict] 已保存 %s", path)
	return nil
}

// wordOptions 收集命令行上显式给出的单词属性。
func wordOptions(cmd *cobra.Command) *voicevox.WordOptions {
	opts := &voicevox.WordOptions{PartOfSpeech: voicevox.PartOfSpeech(dictPOS)}
	if cmd.Flags().Changed("accent") {
		opts.AccentType = voicevox.Ptr(dictAccent)
	}
	if cmd.Flags().Changed("priority") {
		opts.Priority = voicevox.Ptr(dictPriority)
	}
	return opts
}

func init() {
	dictCmd.PersistentFlags().StringVar(&dictFile, "file", "", "词典文件，默认使用 core.user_dict")
	for _, c := range []*cobra.Command{dictAddCmd, dictUpdateCmd} {
		c.Flags().Uint64Var(&dictAccent, "accent", 0, "重音核位置")
		c.Flags().StringVar(&dictPOS, "pos", "", `词性: "proper noun", "common noun", "verb", "adjective", "suffix"`)
		c.Flags().Uint32Var(&dictPriority, "priority", 5, "优先级 0-10")
	}
	dictListCmd.Flags().BoolVar(&jsonOutput, "json", false, "输出原始 JSON")

	dictCmd.AddCommand(dictAddCmd, dictUpdateCmd, dictRemoveCmd, dictListCmd)
	rootCmd.AddCommand(dictCmd)
}
