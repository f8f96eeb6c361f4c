package export

import (
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLExporter writes a transcript as YAML.
type YAMLExporter struct{}

// Export writes the transcript to w.
func (e *YAMLExporter) Export(transcript *Transcript, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer func() { _ = enc.Close() }()

	return enc.Encode(transcript)
}

// Extension returns the file extension for this format.
func (e *YAMLExporter) Extension() string {
	return "yaml"
}
