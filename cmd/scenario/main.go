package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Scripted scenario execution engine",
	Long: `scenario runs discrete-event scenarios whose behaviour lives in scripted
parts: scripts queue events against each other and the engine pops them in
time order until the queue drains.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
