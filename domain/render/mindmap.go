package render

import (
	"encoding/json"
	"fmt"

	"scribe/domain/content"
	"scribe/domain/core/valueobjects"
)

// Node is one mind map topic.
type Node struct {
	Label    string  `json:"label"`
	Children []*Node `json:"children"`
}

// NewNode creates a node with the given children.
func NewNode(label string, children ...*Node) *Node {
	if children == nil {
		children = []*Node{}
	}
	return &Node{Label: label, Children: children}
}

// Add appends child and returns it.
func (n *Node) Add(child *Node) *Node {
	n.Children = append(n.Children, child)
	return child
}

// Equal compares labels and child order recursively. Nil and empty child
// lists are treated alike.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.Label != other.Label || len(n.Children) != len(other.Children) {
		return false
	}
	for i := range n.Children {
		if !n.Children[i].Equal(other.Children[i]) {
			return false
		}
	}
	return true
}

// Depth is the number of levels in the tree, counting the root.
func (n *Node) Depth() int {
	if n == nil {
		return 0
	}
	deepest := 0
	for _, c := range n.Children {
		if d := c.Depth(); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

func (n *Node) normalize() {
	if n.Children == nil {
		n.Children = []*Node{}
	}
	for _, c := range n.Children {
		c.normalize()
	}
}

// EncodeMindmap serializes a tree. Leaves carry an empty children array.
func EncodeMindmap(root *Node) ([]byte, error) {
	if root == nil {
		return nil, fmt.Errorf("mind map root is nil")
	}
	root.normalize()
	return json.MarshalIndent(root, "", "  ")
}

// DecodeMindmap parses a tree written by EncodeMindmap.
func DecodeMindmap(data []byte) (*Node, error) {
	var root Node
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode mind map: %w", err)
	}
	root.normalize()
	return &root, nil
}

// MindmapRenderer writes a JSON topic tree.
type MindmapRenderer struct{}

func NewMindmapRenderer() *MindmapRenderer { return &MindmapRenderer{} }

func (r *MindmapRenderer) Format() valueobjects.ExportFormat { return valueobjects.FormatMindmap }

func (r *MindmapRenderer) Render(doc *Document, opts valueobjects.ExportOptions) (*Artifact, error) {
	data, err := EncodeMindmap(BuildMindmap(doc, opts))
	if err != nil {
		return nil, err
	}
	return artifactFor(valueobjects.FormatMindmap, data), nil
}

// BuildMindmap lays out the document as a tree. The root is the title. With
// one board its sections hang directly off the root; with several, each
// board gets its own branch.
func BuildMindmap(doc *Document, opts valueobjects.ExportOptions) *Node {
	o, ok := opts.(valueobjects.MindmapOptions)
	if !ok {
		o = valueobjects.DefaultExportOptions(valueobjects.FormatMindmap).(valueobjects.MindmapOptions)
	}

	root := NewNode(doc.Title)
	for _, b := range doc.Boards {
		parent := root
		if doc.MultiBoard() {
			label := b.Label()
			if t := b.Content.Title; t != "" {
				label += ": " + t
			}
			parent = root.Add(NewNode(label))
		}
		addBoardBranches(parent, b.Content, o)
	}
	return root
}

func addBoardBranches(parent *Node, c *content.StructuredContent, o valueobjects.MindmapOptions) {
	for _, s := range c.Sections {
		parent.Add(sectionNode(s))
	}

	if o.IncludeTables && len(c.Tables) > 0 {
		branch := parent.Add(NewNode("Tables"))
		for i, t := range c.Tables {
			tn := branch.Add(NewNode(orDefault(t.Title, fmt.Sprintf("Table %d", i+1))))
			for _, h := range t.Headers {
				if h != "" {
					tn.Add(NewNode(h))
				}
			}
		}
	}

	if o.IncludeActions && len(c.ActionItems) > 0 {
		branch := parent.Add(NewNode("Action Items"))
		for _, item := range c.ActionItems {
			label := item.Task
			if item.Assignee != "" {
				label += " (@" + item.Assignee + ")"
			}
			branch.Add(NewNode(label))
		}
	}

	if len(c.KeyPoints) > 0 {
		branch := parent.Add(NewNode("Key Points"))
		for _, p := range c.KeyPoints {
			branch.Add(NewNode(p))
		}
	}
}

func sectionNode(s content.Section) *Node {
	n := NewNode(orDefault(s.Heading, "Section"))
	for _, sub := range s.Subsections {
		n.Add(sectionNode(sub))
	}
	return n
}
