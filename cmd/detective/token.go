package main

import (
	"fmt"

	"github.com/jonathan/claim-detective/internal/config"
	"github.com/jonathan/claim-detective/internal/server"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token <actor-id>",
	Short: "Issue an actor token",
	Long: `Sign a token naming an actor. When the server has JWT_SECRET set, requests
carrying "Authorization: Bearer <token>" are attributed to that actor in the
audit trail, and verifier or responder ids in request bodies are ignored.`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return err
	}

	token, err := server.NewTokenService(jwtCfg).GenerateToken(args[0])
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Expires in %s\n", jwtCfg.TTL())
	return nil
}
