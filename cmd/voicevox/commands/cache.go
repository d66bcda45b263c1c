package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iabetor/govoicevox/internal/database"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "查看或清空合成缓存",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "显示缓存统计",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCache(func(c *database.SynthesisCache) error {
			st, err := c.Stats()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "路径: %s\n条目: %d / %d\n大小: %d 字节\n命中: %d\n",
				globalConfig.Cache.Path, st.Entries, globalConfig.Cache.MaxEntries, st.Bytes, st.Hits)
			return nil
		})
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "清空缓存",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCache(func(c *database.SynthesisCache) error {
			if err := c.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "缓存已清空")
			return nil
		})
	},
}

func withCache(fn func(c *database.SynthesisCache) error) error {
	db, err := database.Open(globalConfig.Cache.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	c, err := database.NewSynthesisCache(db, globalConfig.Cache.MaxEntries)
	if err != nil {
		return err
	}
	return fn(c)
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
