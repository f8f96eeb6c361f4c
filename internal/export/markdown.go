package export

import (
	"fmt"
	"io"
	"time"

	"github.com/bobotlabs/bobot/pkg/widget"
)

// MarkdownExporter writes a transcript as a readable Markdown document.
type MarkdownExporter struct{}

// Export writes the transcript to w.
func (e *MarkdownExporter) Export(transcript *Transcript, w io.Writer) error {
	_, _ = fmt.Fprintf(w, "# Conversation %s\n\n", transcript.SessionID)
	_, _ = fmt.Fprintf(w, "**Company:** %s  \n", transcript.CompanyID)
	if transcript.ConversationID != "" {
		_, _ = fmt.Fprintf(w, "**Conversation ID:** %s  \n", transcript.ConversationID)
	}
	_, _ = fmt.Fprintf(w, "**Exported:** %s  \n", transcript.ExportedAt.Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", len(transcript.Messages))

	_, _ = fmt.Fprintf(w, "---\n\n")

	for i, message := range transcript.Messages {
		_, _ = fmt.Fprintf(w, "**%s** (%s)\n\n%s\n\n", actorLabel(message.Type), formatTimestamp(message.Time), message.Text)

		for _, source := range message.Sources {
			_, _ = fmt.Fprintf(w, "> %s\n\n", source.Question)
		}

		if i < len(transcript.Messages)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}

	return nil
}

// Extension returns the file extension for this format.
func (e *MarkdownExporter) Extension() string {
	return "md"
}

func actorLabel(messageType widget.MessageType) string {
	if messageType == widget.MessageTypeUser {
		return "Visitor"
	}
	return "Bot"
}

func formatTimestamp(unixMillis int64) string {
	return time.UnixMilli(unixMillis).UTC().Format(time.RFC3339)
}
