// Command voicevox 是 VOICEVOX CORE 的命令行前端。
//
// 用法:
//
//	voicevox [flags] <command> [args]
//
// 命令:
//
//	tts       合成 WAV 文件
//	say       合成并直接播放
//	query     输出 AudioQuery JSON
//	speakers  列出已载入模型的角色和风格
//	devices   列出 ONNX Runtime 可用的设备
//	version   显示库版本
//	dict      管理用户词典
//	cache     查看或清空合成缓存
package main

import (
	"fmt"
	"os"

	"github.com/iabetor/govoicevox/cmd/voicevox/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		os.Exit(1)
	}
}
