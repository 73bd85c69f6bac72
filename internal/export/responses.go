package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SaveResponses writes the raw model responses of a run as JSON.
func SaveResponses(path string, responses []string) error {
	if len(responses) == 0 {
		return nil
	}
	doc := map[string]any{"response_count": len(responses)}
	if len(responses) == 1 {
		doc["response"] = responses[0]
	} else {
		doc["responses"] = responses
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return writeSidecar(path, data)
}

// SavePrompts writes the rendered prompts of a run as markdown.
func SavePrompts(path string, prompts []string) error {
	if len(prompts) == 0 {
		return nil
	}
	var b strings.Builder
	for i, p := range prompts {
		if len(prompts) > 1 {
			fmt.Fprintf(&b, "# Prompt %d/%d\n\n", i+1, len(prompts))
		}
		b.WriteString("```\n")
		b.WriteString(p)
		b.WriteString("\n```\n")
		if i < len(prompts)-1 {
			b.WriteString("\n---\n\n")
		}
	}
	return writeSidecar(path, []byte(b.String()))
}

// SidecarPath derives a companion file name from the export path, e.g.
// cards.json + ".prompt.md" gives cards.prompt.md.
func SidecarPath(output, suffix string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + suffix
}

func writeSidecar(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
