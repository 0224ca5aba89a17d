package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fslongjin/billsync/internal/cli/output"
	billsync "github.com/fslongjin/billsync/sdk/go"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the upstream billing API token",
}

var tokenSetCmd = &cobra.Command{
	Use:   "set [token]",
	Short: "Verify and store a token",
	Long: `Verify a token against the billing API and store it encrypted on the
server. Without an argument the token is read from the terminal without echo,
or from stdin when it is not a terminal.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTokenSet,
}

var tokenVerifyCmd = &cobra.Command{
	Use:   "verify [token]",
	Short: "Check a token without storing it",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTokenVerify,
}

var tokenShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored token, masked",
	Args:  cobra.NoArgs,
	RunE:  runTokenShow,
}

var tokenDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the stored token",
	Args:  cobra.NoArgs,
	RunE:  runTokenDelete,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenSetCmd)
	tokenCmd.AddCommand(tokenVerifyCmd)
	tokenCmd.AddCommand(tokenShowCmd)
	tokenCmd.AddCommand(tokenDeleteCmd)
}

func readToken(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return strings.TrimSpace(args[0]), nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Token: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func runTokenSet(cmd *cobra.Command, args []string) error {
	token, err := readToken(cmd, args)
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("token cannot be empty")
	}

	client := getAPIClient(0)
	ctx, cancel := getContext(cmd)
	defer cancel()

	if err := client.Token.Save(ctx, token); err != nil {
		if billsync.IsBadRequest(err) {
			return fmt.Errorf("token rejected: %w", err)
		}
		return fmt.Errorf("failed to save token: %w", err)
	}
	output.WriteString(cmd.OutOrStdout(), "Token saved")
	return nil
}

func runTokenVerify(cmd *cobra.Command, args []string) error {
	token, err := readToken(cmd, args)
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("token cannot be empty")
	}

	client := getAPIClient(0)
	ctx, cancel := getContext(cmd)
	defer cancel()

	resp, err := client.Token.Verify(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to verify token: %w", err)
	}
	return formatter(output.Col("valid"), output.Col("message")).Write(cmd.OutOrStdout(), resp)
}

func runTokenShow(cmd *cobra.Command, args []string) error {
	client := getAPIClient(0)
	ctx, cancel := getContext(cmd)
	defer cancel()

	info, err := client.Token.Get(ctx)
	if err != nil {
		if billsync.IsNotFound(err) {
			output.WriteString(cmd.OutOrStdout(), "No token configured")
			return nil
		}
		return fmt.Errorf("failed to get token: %w", err)
	}
	return formatter(
		output.Col("provider"),
		output.Col("masked"),
		output.Column{Path: "keyId", Label: "KEY ID"},
		output.Column{Path: "createdAt", Label: "CREATED"},
	).Write(cmd.OutOrStdout(), info)
}

func runTokenDelete(cmd *cobra.Command, args []string) error {
	client := getAPIClient(0)
	ctx, cancel := getContext(cmd)
	defer cancel()

	if err := client.Token.Delete(ctx); err != nil {
		if billsync.IsNotFound(err) {
			output.WriteString(cmd.OutOrStdout(), "No token configured")
			return nil
		}
		return fmt.Errorf("failed to delete token: %w", err)
	}
	output.WriteString(cmd.OutOrStdout(), "Token deleted")
	return nil
}
