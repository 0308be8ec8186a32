package commands

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MemoFlux/MemoFluxServer/pkg/auth"
	"github.com/MemoFlux/MemoFluxServer/pkg/cli"
)

var userPassword string

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Register a user in the configured store",
	Long: `Register a user directly in the configured store. Without --password the
password is read from the first line of stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		password := userPassword
		if password == "" {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}

		store, _, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		u, err := auth.New(store, auth.Config{}).Register(cmd.Context(), args[0], password)
		if err != nil {
			return err
		}
		cli.PrintSuccess(cmd.OutOrStdout(), "user %s created", u.Username)
		return nil
	},
}

func init() {
	userAddCmd.Flags().StringVarP(&userPassword, "password", "p", "", "password (default: read stdin)")
	userCmd.AddCommand(userAddCmd)
	rootCmd.AddCommand(userCmd)
}
