package commands

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/iabetor/govoicevox/internal/config"
	"github.com/iabetor/govoicevox/internal/logger"
	"github.com/iabetor/govoicevox/internal/tts"
	"github.com/iabetor/govoicevox/pkg/voicevox"
)

const defaultConfigPath = "configs/voicevox.yaml"

var (
	configPath string
	verbose    bool

	globalConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "voicevox",
	Short: "VOICEVOX CORE 命令行工具",
	Long: `voicevox - 调用 VOICEVOX CORE 动态库进行日语语音合成。

配置文件默认读取 configs/voicevox.yaml，不存在时使用默认值。
库、词典和模型路径都可以通过配置文件指定，例如:

  core:
    library: /opt/voicevox_core/c_api/lib/libvoicevox_core.so
    dict_dir: /opt/voicevox_core/dict/open_jtalk_dic_utf_8-1.11
    models:
      - /opt/voicevox_core/models/vvms/*.vvm
  synthesizer:
    acceleration: auto
    voice_id: 3

示例:
  voicevox tts -o hello.wav "こんにちは"
  voicevox say --style 1 "ずんだもんなのだ"
  voicevox dict add ＶＯＩＣＥＶＯＸ ボイスボックス --accent 4`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
	PersistentPostRun: func(*cobra.Command, []string) { logger.Close() },
}

// Execute 运行根命令。
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "输出调试日志")
}

func initConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config"):
		cfg = config.Default()
	default:
		return err
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	if err := logger.Init(logger.Config{
		Level:      level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
	}); err != nil {
		return err
	}
	globalConfig = cfg
	return nil
}

// loadCore 只加载原生库，供不需要合成器的命令使用。
func loadCore() (*voicevox.Core, error) {
	core, err := voicevox.Load(globalConfig.Core.Library, voicevox.WithLogger(logger.Named("voicevox")))
	if err != nil {
		return nil, fmt.Errorf("加载 %s 失败: %w", globalConfig.Core.Library, err)
	}
	return core, nil
}

// openEngine 按配置创建完整的合成引擎。
func openEngine() (*tts.VoicevoxEngine, error) {
	if len(globalConfig.Core.Models) == 0 {
		return nil, fmt.Errorf("未配置模型，请在配置文件的 core.models 中指定 VVM 文件")
	}
	return tts.OpenVoicevox(globalConfig)
}

// styleFlag 返回 --style 的值，未指定时使用配置中的 voice_id。
func styleFlag(cmd *cobra.Command) uint32 {
	if cmd.Flags().Changed("style") {
		v, _ := cmd.Flags().GetUint32("style")
		return v
	}
	return globalConfig.Synthesizer.VoiceID
}
