package main

import (
	"bufio"
	"fmt"
	"strings"

	"UserService/internal/auth"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

// NewHashCmd creates the hash subcommand. It prints a digest suitable for
// seeding the users table by hand.
func NewHashCmd() *cobra.Command {
	var (
		algorithm string
		cost      int
	)
	cmd := &cobra.Command{
		Use:   "hash [password]",
		Short: "Print a password digest",
		Long:  `Hash a password with the service's hasher. Without an argument the password is read from the first line of stdin.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return oops.Code("INPUT_FAILED").With("operation", "read password").Wrap(err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			digest, err := auth.NewHasher(algorithm, cost).Hash(password)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), digest)
			return err
		},
	}
	cmd.Flags().StringVar(&algorithm, "algorithm", auth.AlgorithmBcrypt, "bcrypt or argon2id")
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}
