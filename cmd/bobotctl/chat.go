package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/bobotlabs/bobot/pkg/widget"
)

var (
	botLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("135"))

	visitorLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)

	sourceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			PaddingLeft(2)

	lowConfidenceStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("214"))
)

const lowConfidenceThreshold = 50

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Hold an interactive conversation",
	Long: `Start or resume a conversation with the configured tenant's bot.

The transcript persists between runs for a day of inactivity. Inside the
conversation these commands are available:

  /new        start a fresh conversation
  /sources N  toggle the sources shown for message number N
  /up N       mark message number N as helpful
  /down N     mark message number N as not helpful
  /quit       leave the conversation`,
	RunE: func(cmd *cobra.Command, args []string) error {
		handle, openErr := openWidget(cmd.Context())
		if openErr != nil {
			return openErr
		}
		defer handle.Close()

		translations := handle.Translations()
		reader := bufio.NewScanner(os.Stdin)

		for _, message := range handle.Messages() {
			printMessage(handle, message)
		}

		if handle.SuggestedQuestionsVisible() {
			fmt.Println(noticeStyle.Render("Suggested questions:"))
			for _, question := range handle.SuggestedQuestions() {
				fmt.Println(sourceStyle.Render("• " + question))
			}
		}

		if handle.Mode() == widget.ModeConsentBlocked {
			if !runConsentPrompt(handle, reader, translations) {
				return nil
			}
		}

		fmt.Println(noticeStyle.Render(translations.InputHint))

		for {
			fmt.Print("> ")
			if !reader.Scan() {
				return nil
			}
			line := strings.TrimSpace(reader.Text())
			if line == "" {
				continue
			}

			if strings.HasPrefix(line, "/") {
				if quit := runChatCommand(handle, line, translations); quit {
					return nil
				}
				continue
			}

			reply, sendErr := handle.Send(cmd.Context(), line)
			if sendErr != nil {
				fmt.Println(noticeStyle.Render(sendErr.Error()))
				continue
			}
			printMessage(handle, reply)
		}
	},
}

func runConsentPrompt(handle *widget.Widget, reader *bufio.Scanner, translations widget.Translations) bool {
	consentText := translations.ConsentPrompt
	if configuration := handle.Configuration(); configuration != nil && strings.TrimSpace(configuration.ConsentText) != "" {
		consentText = configuration.ConsentText
	}

	fmt.Println(noticeStyle.Render(consentText))
	fmt.Printf("%s / %s [y/n]: ", translations.ConsentAccept, translations.ConsentDecline)
	if !reader.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(reader.Text()))
	if answer != "y" && answer != "yes" {
		handle.DeclineConsent()
		return false
	}
	handle.AcceptConsent()
	return true
}

func runChatCommand(handle *widget.Widget, line string, translations widget.Translations) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/new":
		handle.NewConversation()
		fmt.Println(noticeStyle.Render(translations.NewChatLabel))
		for _, message := range handle.Messages() {
			printMessage(handle, message)
		}
	case "/sources":
		if message, found := messageByNumber(handle, fields); found {
			if handle.ToggleSources(message.ID) {
				printSources(message)
			}
		}
	case "/up", "/down":
		if message, found := messageByNumber(handle, fields); found {
			helpful := fields[0] == "/up"
			if feedbackErr := handle.GiveFeedback(message.ID, helpful); feedbackErr != nil {
				fmt.Println(noticeStyle.Render(feedbackErr.Error()))
			} else {
				fmt.Println(noticeStyle.Render(translations.FeedbackThanks))
			}
		}
	default:
		fmt.Println(noticeStyle.Render("unknown command: " + fields[0]))
	}
	return false
}

func messageByNumber(handle *widget.Widget, fields []string) (widget.Message, bool) {
	messages := handle.Messages()
	if len(fields) < 2 {
		fmt.Println(noticeStyle.Render("message number required"))
		return widget.Message{}, false
	}
	var number int
	if _, scanErr := fmt.Sscanf(fields[1], "%d", &number); scanErr != nil || number < 1 || number > len(messages) {
		fmt.Println(noticeStyle.Render("no such message: " + fields[1]))
		return widget.Message{}, false
	}
	return messages[number-1], true
}

func printMessage(handle *widget.Widget, message widget.Message) {
	label := botLabelStyle.Render("Bot")
	if message.Type == widget.MessageTypeUser {
		label = visitorLabelStyle.Render("You")
	}

	text := message.Text
	if message.Type == widget.MessageTypeBot && message.Confidence < lowConfidenceThreshold {
		text = lowConfidenceStyle.Render(text)
	}

	fmt.Printf("%s %s\n", label, text)

	for _, segment := range widget.SplitSegments(message.Text) {
		if segment.Link != nil {
			fmt.Println(sourceStyle.Render(segment.Link.Label + " → " + segment.Link.URL))
		}
	}

	if handle.SourcesExpanded(message.ID) {
		printSources(message)
	}
}

func printSources(message widget.Message) {
	for _, source := range message.Sources {
		fmt.Println(sourceStyle.Render("• " + source.Question))
	}
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
