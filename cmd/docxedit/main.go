package main

import (
	"fmt"
	"os"

	"github.com/nerdneilsfield/go-docx-editor/internal/cli"
)

// Version information
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// 创建根命令
	rootCmd := cli.NewRootCommand(Version, Commit, BuildDate)

	// 执行命令
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error [%s]: %v\n", cli.ErrorKind(err), err)
		os.Exit(cli.ExitCode(err))
	}
}
