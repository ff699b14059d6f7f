package docparser

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"
)

// Sentinel errors
var (
	ErrInvalidFrontMatter = errors.New("invalid front matter")
	ErrMissingCommand     = errors.New("test block has no command line")
	ErrEmptyQuery         = errors.New("test block has no query text")
	ErrInvalidCondition   = errors.New("invalid enabled_if condition")
)

var (
	headerMarks  = regexp.MustCompile(`^#+`)
	headerPrefix = regexp.MustCompile(`^#+ +`)
)

// Line is a single source line with its 1-based line number
type Line struct {
	Text   string
	Number int
}

// Parse reads a test document: optional YAML front matter followed by headings and
// indented test blocks.
func Parse(reader io.Reader) (*Document, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	frontMatter, body, offset, err := parseFrontMatter(string(content))
	if err != nil {
		return nil, err
	}

	lines := SplitLines(body, offset)
	nodes, _ := ParseLevel(lines, 0, 0)

	return &Document{
		Metadata: frontMatter,
		Nodes:    nodes,
	}, nil
}

// ParseNodes parses document text without front matter handling.
func ParseNodes(text string) []Node {
	nodes, _ := ParseLevel(SplitLines(text, 0), 0, 0)
	return nodes
}

// SplitLines splits text on newlines. Line numbers start at offset+1. A trailing
// carriage return is removed from every line.
func SplitLines(text string, offset int) []Line {
	raw := strings.Split(text, "\n")
	lines := make([]Line, len(raw))

	for i, l := range raw {
		lines[i] = Line{Text: strings.TrimSuffix(l, "\r"), Number: offset + i + 1}
	}

	return lines
}

// ParseLevel parses lines[start:] at the given nesting depth. It returns the parsed
// nodes and the index of the first line it did not consume: either len(lines) or a
// heading whose marker count is not deeper than depth, left for the caller.
func ParseLevel(lines []Line, start, depth int) ([]Node, int) {
	var nodes []Node

	i := start
	for i < len(lines) {
		text := lines[i].Text

		if isIndented(text) {
			block, first, next := collectBlock(lines, i)
			if len(block) > 0 {
				tc := ParseBlock(block)
				tc.Line = first
				nodes = append(nodes, tc)
			}

			i = next

			continue
		}

		if marks := len(headerMarks.FindString(text)); marks > 0 {
			if depth >= marks {
				return nodes, i
			}

			children, next := ParseLevel(lines, i+1, depth+1)
			nodes = append(nodes, &Section{
				Header:   headerPrefix.ReplaceAllString(text, ""),
				Depth:    depth + 1,
				Children: children,
			})
			i = next

			continue
		}

		// prose between blocks
		i++
	}

	return nodes, i
}

// collectBlock gathers the indented run starting at lines[start]. Whitespace-only
// lines are dropped without ending the run.
func collectBlock(lines []Line, start int) (block []string, first int, next int) {
	i := start
	for ; i < len(lines) && isIndented(lines[i].Text); i++ {
		text := lines[i].Text
		if strings.TrimSpace(text) == "" {
			continue
		}

		if first == 0 {
			first = lines[i].Number
		}

		block = append(block, strings.TrimLeftFunc(text, unicode.IsSpace))
	}

	return block, first, i
}

func isIndented(text string) bool {
	return strings.HasPrefix(text, " ") || strings.HasPrefix(text, "\t")
}
