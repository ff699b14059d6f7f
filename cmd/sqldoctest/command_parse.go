package main

import (
	"fmt"
	"os"

	"github.com/shibukawa/sqldoctest/docparser"
	"gopkg.in/yaml.v3"
)

// ParseCmd represents the parse command
type ParseCmd struct {
	File string `arg:"" help:"Test file to parse" type:"existingfile"`
}

type dumpDocument struct {
	Metadata *docparser.FrontMatter `yaml:"metadata,omitempty"`
	Nodes    []dumpNode             `yaml:"nodes"`
}

type dumpNode struct {
	Section  string     `yaml:"section,omitempty"`
	Depth    int        `yaml:"depth,omitempty"`
	Children []dumpNode `yaml:"children,omitempty"`
	Test     *dumpTest  `yaml:"test,omitempty"`
}

type dumpTest struct {
	Name     string   `yaml:"name"`
	Line     int      `yaml:"line"`
	Command  string   `yaml:"command"`
	Args     []string `yaml:"args,flow,omitempty"`
	Query    string   `yaml:"query,omitempty"`
	Expected []string `yaml:"expected,omitempty"`
}

// Run executes the parse command
func (cmd *ParseCmd) Run(ctx *Context) error {
	f, err := os.Open(cmd.File)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	doc, err := docparser.Parse(f)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", cmd.File, err)
	}

	out := dumpDocument{Nodes: dumpNodes(doc.Nodes)}
	if doc.Metadata.Description != "" || len(doc.Metadata.Tags) > 0 || doc.Metadata.EnabledIf != "" {
		out.Metadata = &doc.Metadata
	}

	enc := yaml.NewEncoder(ctx.Stdout)
	enc.SetIndent(2)

	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode parse tree: %w", err)
	}

	return enc.Close()
}

func dumpNodes(nodes []docparser.Node) []dumpNode {
	result := make([]dumpNode, 0, len(nodes))

	for _, n := range nodes {
		switch node := n.(type) {
		case *docparser.Section:
			result = append(result, dumpNode{
				Section:  node.Header,
				Depth:    node.Depth,
				Children: dumpNodes(node.Children),
			})
		case *docparser.TestCase:
			result = append(result, dumpNode{Test: &dumpTest{
				Name:     node.Name,
				Line:     node.Line,
				Command:  string(node.Command),
				Args:     node.Args,
				Query:    node.Query,
				Expected: node.ExpectedResults,
			}})
		}
	}

	return result
}
