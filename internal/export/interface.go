// Package export renders a saved widget conversation in portable formats so a
// visitor or operator can take a transcript out of Bobot.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/bobotlabs/bobot/pkg/widget"
)

// Transcript is the exportable view of one conversation.
type Transcript struct {
	CompanyID      string           `json:"company_id" yaml:"company_id"`
	SessionID      string           `json:"session_id" yaml:"session_id"`
	ConversationID string           `json:"conversation_id,omitempty" yaml:"conversation_id,omitempty"`
	ExportedAt     time.Time        `json:"exported_at" yaml:"exported_at"`
	Messages       []widget.Message `json:"messages" yaml:"messages"`
}

// Exporter writes a transcript in one output format.
type Exporter interface {
	Export(transcript *Transcript, w io.Writer) error
	Extension() string
}

// NewExporter creates an exporter for the named format.
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "json":
		return &JSONExporter{}, nil
	case "yaml":
		return &YAMLExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: json, yaml, md)", format)
	}
}
