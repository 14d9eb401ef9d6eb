package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"reelscraper/pkg/auth"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored session credentials",
	Long: `Manage the persisted session credentials.

Credentials are stored in an encrypted file (AES-256-GCM, key derived via
PBKDF2 from a secret resolved from the environment, the system keychain,
or a generated secret file). Never share your credential file.`,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store session credentials from browser cookies",
	Long: `Store session credentials extracted from a logged-in browser.

You will be prompted for:
  - sessionid cookie value
  - csrftoken cookie value

To get these values:
1. Log in from your browser
2. Open Developer Tools (F12)
3. Go to Application/Storage > Cookies
4. Copy the sessionid and csrftoken values`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Delete stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(configFile)
		if err != nil {
			return err
		}
		defer app.Close()

		if !app.Store.Exists() {
			fmt.Println("No stored credentials.")
			return nil
		}
		if app.Store.Delete() {
			fmt.Println("Credentials deleted.")
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored credentials (sanitized) and probe their validity",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, app *App) error {
			record := app.Sessions.Current()
			if record == nil {
				fmt.Println("No session. Run 'reelscraper auth login' first.")
				return nil
			}

			masked := record.Credentials.Sanitize()
			fmt.Println("Stored credentials:")
			fmt.Printf("  Session ID: %s\n", masked.SessionID)
			fmt.Printf("  CSRF Token: %s\n", masked.CSRFToken)
			fmt.Printf("  User ID:    %s\n", masked.UserID)
			fmt.Printf("  Routing:    %s\n", masked.MachineID)

			result := app.Validator.Validate(ctx, record.Credentials)
			if result.IsValid {
				fmt.Println("\nLive probe: valid")
			} else {
				fmt.Printf("\nLive probe: invalid (%s)\n", result.Reason)
				if result.Terminal {
					fmt.Println("The credentials are rejected; log in again.")
				}
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	app, err := newApp(configFile)
	if err != nil {
		return err
	}
	defer app.Close()

	fmt.Println("Enter your cookie values (input is hidden):")
	fmt.Println()

	sessionID, err := promptSecret("sessionid cookie value: ")
	if err != nil {
		return err
	}
	if len(sessionID) < 20 {
		return fmt.Errorf("that does not look like a valid sessionid (too short)")
	}

	csrfToken, err := promptSecret("csrftoken cookie value: ")
	if err != nil {
		return err
	}
	if len(csrfToken) < 20 || len(csrfToken) > 50 {
		return fmt.Errorf("that does not look like a valid csrftoken (expected ~32 characters)")
	}

	userID := ""
	if id, ok := auth.UserIDFromSessionID(sessionID); ok {
		userID = id
	} else {
		fmt.Print("ds_user_id cookie value: ")
		reader := bufio.NewReader(os.Stdin)
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read user id: %w", err)
		}
		userID = strings.TrimSpace(input)
	}

	creds := auth.New(sessionID, csrfToken, userID, auth.DefaultMachineID)
	if err := creds.Validate(); err != nil {
		return err
	}

	path, err := app.Store.Save(creds)
	if err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}
	app.Sessions.Set(creds)

	fmt.Printf("\nCredentials stored in %s\n", path)
	fmt.Println("\nQuick start:")
	fmt.Println("  reelscraper scrape user <username>")
	fmt.Println("  reelscraper scrape hashtag <tag>")
	return nil
}

// promptSecret reads a value without echoing when stdin is a terminal.
func promptSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	if term.IsTerminal(int(syscall.Stdin)) {
		value, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(value)), nil
		}
	}

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
