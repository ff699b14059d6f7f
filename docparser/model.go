package docparser

// Node is an element of a parsed test document: either *Section or *TestCase.
type Node interface {
	isNode()
}

// Section represents a named grouping introduced by a heading line
type Section struct {
	Header   string
	Depth    int // 1 for top level sections
	Children []Node
}

// Command is the assertion kind of a test case
type Command string

const (
	CommandQuery     Command = "query"
	CommandStatement Command = "statement"
	CommandTodo      Command = "todo"
)

// TestCase represents a single test block
type TestCase struct {
	Name    string
	Command Command
	Args    []string
	Query   string
	// ExpectedResults holds one JSON literal per expected row. It is nil when the
	// block has no dash separator line.
	ExpectedResults []string
	// Line is the 1-based source line of the test name.
	Line int
}

// Document is a parsed test file
type Document struct {
	Metadata FrontMatter
	Nodes    []Node
}

func (*Section) isNode()  {}
func (*TestCase) isNode() {}

// Walk visits every node depth-first in document order. Returning false from fn
// skips the children of a section.
func Walk(nodes []Node, fn func(n Node) bool) {
	for _, n := range nodes {
		if !fn(n) {
			continue
		}

		if s, ok := n.(*Section); ok {
			Walk(s.Children, fn)
		}
	}
}

// CountTests returns the number of test cases below nodes.
func CountTests(nodes []Node) int {
	count := 0

	Walk(nodes, func(n Node) bool {
		if _, ok := n.(*TestCase); ok {
			count++
		}

		return true
	})

	return count
}
