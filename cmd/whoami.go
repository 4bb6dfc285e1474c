// ABOUTME: Whoami command for forceapp
// ABOUTME: Prints the current user from the identity endpoint

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/account"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/client"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/config"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	Long:  `Show the current user. Exits 2 when nobody is logged in or the org cannot be reached.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if code := runWhoAmI(ctx, os.Stdout); code != exitOK {
			os.Exit(code)
		}
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}

// identity is the whoami output
type identity struct {
	Username    string `json:"username"`
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	UserID      string `json:"user_id"`
	OrgID       string `json:"org_id"`
	InstanceURL string `json:"instance_url"`
	LoginURL    string `json:"login_url"`
}

// runWhoAmI prints the current user and returns exit code
func runWhoAmI(ctx context.Context, w io.Writer) int {
	return withSession(w, func(_ *config.Config, s session) int {
		acct := s.CurrentAccount()
		if acct == nil {
			fmt.Fprintln(w, "Not logged in. Run \"forceapp login\" first.")
			return exitFailure
		}

		info, err := s.WhoAmI(ctx)
		if err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			return exitFailure
		}

		id := newIdentity(acct, info)
		if IsJSONOutput() {
			fmt.Fprintln(w, formatIdentityJSON(id))
		} else {
			fmt.Fprintln(w, formatIdentityHuman(id))
		}
		return exitOK
	})
}

func newIdentity(acct *account.Account, info *client.UserInfo) identity {
	id := identity{
		Username:    acct.Username,
		Name:        acct.DisplayName,
		UserID:      acct.UserID,
		OrgID:       acct.OrgID,
		InstanceURL: acct.InstanceURL,
		LoginURL:    acct.LoginURL,
	}
	if info != nil {
		if info.PreferredUsername != "" {
			id.Username = info.PreferredUsername
		}
		if info.Name != "" {
			id.Name = info.Name
		}
		id.Email = info.Email
	}
	return id
}

// formatIdentityHuman formats the user for human readability
func formatIdentityHuman(id identity) string {
	name := id.Name
	if name == "" {
		name = "-"
	}
	return fmt.Sprintf(`User:      %s
Name:      %s
User ID:   %s
Org ID:    %s
Instance:  %s
Login:     %s`,
		id.Username,
		name,
		id.UserID,
		id.OrgID,
		id.InstanceURL,
		id.LoginURL)
}

// formatIdentityJSON formats the user as JSON
func formatIdentityJSON(id identity) string {
	data, _ := json.MarshalIndent(id, "", "  ")
	return string(data)
}
