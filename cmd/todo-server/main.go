// Command todo-server runs the Todo authentication API.
//
//	todo-server serve --env-file .env
//	echo -n 'secret' | todo-server hash-password
//	echo -n 'secret' | todo-server create-user --email alice@example.com --name Alice --role ADMIN
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// flagEnvFile is shared by every subcommand that loads configuration.
	flagEnvFile string

	rootCmd = &cobra.Command{
		Use:   "todo-server",
		Short: "Todo API authentication server",
		Long: `todo-server issues and validates JWT access and refresh tokens for the
Todo API. Sessions and login throttling live in Redis; accounts and audit
records live in MongoDB.`,
		SilenceUsage: true,
	}
)

func main() {
	Execute()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "dotenv file to load before reading the environment")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(hashPasswordCmd)
	rootCmd.AddCommand(createUserCmd)
}
