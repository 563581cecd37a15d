package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jonathan/perfect-fit/internal/config"
	"github.com/jonathan/perfect-fit/internal/server"
	"github.com/jonathan/perfect-fit/internal/types"
	"github.com/spf13/cobra"
)

var (
	tokenUserID string
	tokenRole   string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for a user",
	Long:  "Mint a signed JWT carrying a user id and role, for operators and local testing. Uses JWT_SECRET, JWT_ISSUER and JWT_EXPIRATION_HOURS.",
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUserID, "user-id", "", "User id to embed (default: a fresh random id)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "", "Role: candidate, employee, hr or admin (required)")

	if err := tokenCmd.MarkFlagRequired("role"); err != nil {
		panic(fmt.Sprintf("failed to mark role flag as required: %v", err))
	}

	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	role, err := types.ParseRole(tokenRole)
	if err != nil {
		return err
	}

	userID := uuid.New()
	if tokenUserID != "" {
		if userID, err = uuid.Parse(tokenUserID); err != nil {
			return fmt.Errorf("invalid --user-id: %w", err)
		}
	}

	jwtConfig, err := config.NewJWTConfig()
	if err != nil {
		return fmt.Errorf("failed to create JWT config: %w", err)
	}

	token, err := server.NewJWTService(jwtConfig).GenerateToken(userID, role)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
