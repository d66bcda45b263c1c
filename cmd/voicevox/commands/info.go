package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iabetor/govoicevox/internal/audio"
	"github.com/iabetor/govoicevox/pkg/voicevox"
)

var jsonOutput bool

var speakersCmd = &cobra.Command{
	Use:   "speakers",
	Short: "列出已载入模型的角色和风格",
	RunE: func(cmd *cobra.Command, _ []string) error {
		engine, err := openEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		metas, err := engine.Synthesizer().Metas()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, metas)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\t角色\t风格\t类型")
		for _, sp := range metas {
			for _, st := range sp.Styles {
				typ := "talk"
				if st.Type != nil {
					typ = *st.Type
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", st.ID, sp.Name, st.Name, typ)
			}
		}
		return w.Flush()
	},
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "列出推理设备和音频输出设备",
	RunE: func(cmd *cobra.Command, _ []string) error {
		core, err := loadCore()
		if err != nil {
			return err
		}
		defer core.Close()

		ort, err := core.LoadOnnxruntime(&voicevox.OnnxruntimeOptions{Filename: globalConfig.Core.Onnxruntime})
		if err != nil {
			return err
		}
		devices, err := ort.SupportedDevices()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, devices)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "CPU:  %v\nCUDA: %v\nDML:  %v\n", devices.CPU, devices.CUDA, devices.DML)

		player, err := audio.NewPlayer()
		if err != nil {
			fmt.Fprintf(out, "\n音频输出: 不可用 (%v)\n", err)
			return nil
		}
		defer player.Close()
		names, err := player.PlaybackDevices()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "\n音频输出:")
		for _, n := range names {
			fmt.Fprintf(out, "  %s\n", n)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示库版本",
	RunE: func(cmd *cobra.Command, _ []string) error {
		core, err := loadCore()
		if err != nil {
			return err
		}
		defer core.Close()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "voicevox_core: %s\n", core.Version())
		versioned, unversioned, err := core.OnnxruntimeLibFilenames()
		switch {
		case err == nil:
			fmt.Fprintf(out, "onnxruntime:   %s (%s)\n", versioned, unversioned)
		case voicevox.IsUnavailable(err):
			fmt.Fprintln(out, "onnxruntime:   由库内置")
		default:
			return err
		}
		return nil
	},
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func init() {
	speakersCmd.Flags().BoolVar(&jsonOutput, "json", false, "以 JSON 输出")
	devicesCmd.Flags().BoolVar(&jsonOutput, "json", false, "以 JSON 输出")
	rootCmd.AddCommand(speakersCmd, devicesCmd, versionCmd)
}
