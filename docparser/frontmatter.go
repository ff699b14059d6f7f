package docparser

import (
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"
)

// FrontMatter holds the optional YAML header of a test file
type FrontMatter struct {
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
	// EnabledIf is a CEL expression; the file is skipped when it evaluates to false.
	EnabledIf string `yaml:"enabled_if"`
}

// parseFrontMatter extracts YAML front matter from the document. It returns the
// remaining content and the number of lines consumed by the front matter.
func parseFrontMatter(content string) (FrontMatter, string, int, error) {
	var frontMatter FrontMatter

	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(normalized, "---\n") {
		return frontMatter, content, 0, nil
	}

	endIndex := strings.Index(normalized[4:], "\n---")
	if endIndex == -1 {
		return frontMatter, "", 0, ErrInvalidFrontMatter
	}

	endIndex += 4

	frontMatterContent := normalized[4:endIndex]
	remaining := normalized[endIndex+4:]

	// Drop the rest of the closing delimiter line
	consumed := strings.Count(normalized[:endIndex+4], "\n")
	if nl := strings.IndexByte(remaining, '\n'); nl >= 0 {
		remaining = remaining[nl+1:]
		consumed++
	} else {
		remaining = ""
	}

	err := yaml.Unmarshal([]byte(frontMatterContent), &frontMatter)
	if err != nil {
		return frontMatter, "", 0, fmt.Errorf("%w: %w", ErrInvalidFrontMatter, err)
	}

	return frontMatter, remaining, consumed, nil
}
