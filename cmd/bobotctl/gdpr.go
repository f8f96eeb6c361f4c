package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bobotlabs/bobot/pkg/widget"
)

// gdprCmd groups the data-subject self-service actions.
var gdprCmd = &cobra.Command{
	Use:   "gdpr",
	Short: "Exercise data-subject rights for the current session",
}

var gdprViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Show everything the backend stores for this session",
	RunE: func(cmd *cobra.Command, args []string) error {
		handle, openErr := openWidget(cmd.Context())
		if openErr != nil {
			return openErr
		}
		defer handle.Close()

		view := handle.ViewMyData(cmd.Context())
		if !view.Found {
			fmt.Println(noticeStyle.Render(view.Notice))
			printDataController(view)
			return nil
		}

		fmt.Printf("Session: %s\n", handle.SessionID())
		fmt.Printf("Conversation: %s\n", view.Data.ConversationID)
		fmt.Printf("Consent given: %t\n", view.Data.ConsentGiven)
		fmt.Printf("Started: %s\n", view.Data.StartedAt.Format(time.RFC3339))
		fmt.Printf("Messages: %d\n", len(view.Data.Messages))
		for _, storedMessage := range view.Data.Messages {
			fmt.Printf("  [%s] %s\n", storedMessage.Role, storedMessage.Text)
		}
		printDataController(view)
		return nil
	},
}

var gdprDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Erase this session's data and reset the local conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		handle, openErr := openWidget(cmd.Context())
		if openErr != nil {
			return openErr
		}
		defer handle.Close()

		if deleteErr := handle.DeleteMyData(cmd.Context()); deleteErr != nil {
			return deleteErr
		}
		fmt.Println(noticeStyle.Render(handle.Translations().DataDeleted))
		return nil
	},
}

var gdprRevokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Withdraw previously given consent",
	RunE: func(cmd *cobra.Command, args []string) error {
		handle, openErr := openWidget(cmd.Context())
		if openErr != nil {
			return openErr
		}
		defer handle.Close()

		handle.RevokeConsent(cmd.Context())
		fmt.Println(noticeStyle.Render(handle.Translations().ConsentRevoked))
		return nil
	},
}

func printDataController(view widget.MyDataView) {
	if view.DataController == nil {
		return
	}
	fmt.Printf("Data controller: %s <%s>\n", view.DataController.Name, view.DataController.Email)
}

func init() {
	gdprCmd.AddCommand(gdprViewCmd)
	gdprCmd.AddCommand(gdprDeleteCmd)
	gdprCmd.AddCommand(gdprRevokeCmd)
	rootCmd.AddCommand(gdprCmd)
}
