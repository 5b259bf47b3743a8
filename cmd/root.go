/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "approval-core",
	Short: "Approval and spending-limit enforcement API server",
	Long: `Approval Core is a REST API server for purchase approval routing
and spending-limit enforcement. It evaluates submitted orders against
company rules and limits, routes them through multi-level approval
workflows, and keeps a rolling spending ledger per employee.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// GetRootCmd 返回根命令（用于测试）
func GetRootCmd() *cobra.Command {
	return rootCmd
}
