// ABOUTME: Entry point for the forceapp CLI
// ABOUTME: Salesforce contact list with browser login, as a TUI or plain commands

package main

import (
	"fmt"
	"os"

	"github.com/bhariharan/SalesforceMobileSDK-Templates/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
