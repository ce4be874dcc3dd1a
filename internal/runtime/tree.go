package runtime

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// Node is one entry of a mount tree. Directories have Children, files
// have Content.
type Node struct {
	Name     string
	Dir      bool
	Content  string
	Children map[string]*Node
}

func newDir(name string) *Node {
	return &Node{Name: name, Dir: true, Children: make(map[string]*Node)}
}

// BuildTree turns a flat path→content map into a directory tree rooted at
// an unnamed directory. Both '/' and '\' separate segments. Intermediate
// segments become directories, the last segment a file.
func BuildTree(files map[string]string) (*Node, error) {
	root := newDir("")

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		segments, err := splitPath(p)
		if err != nil {
			return nil, err
		}

		dir := root
		for _, seg := range segments[:len(segments)-1] {
			child, ok := dir.Children[seg]
			if !ok {
				child = newDir(seg)
				dir.Children[seg] = child
			} else if !child.Dir {
				return nil, fmt.Errorf("%w: %q is a file", ErrMountConflict, seg)
			}
			dir = child
		}

		name := segments[len(segments)-1]
		if existing, ok := dir.Children[name]; ok && existing.Dir {
			return nil, fmt.Errorf("%w: %q is a directory", ErrMountConflict, p)
		}
		dir.Children[name] = &Node{Name: name, Content: files[p]}
	}

	return root, nil
}

func splitPath(p string) ([]string, error) {
	raw := strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' })

	segments := raw[:0]
	for _, seg := range raw {
		switch seg {
		case ".":
			continue
		case "..":
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
		segments = append(segments, seg)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return segments, nil
}

// Lookup finds the node at a slash-separated path relative to n.
func (n *Node) Lookup(p string) (*Node, bool) {
	cur := n
	for _, seg := range strings.Split(path.Clean("/"+p), "/") {
		if seg == "" {
			continue
		}
		if !cur.Dir {
			return nil, false
		}
		next, ok := cur.Children[seg]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Walk visits every node below n in lexical order, parents before children.
func (n *Node) Walk(fn func(p string, node *Node) error) error {
	return n.walk("", fn)
}

func (n *Node) walk(prefix string, fn func(string, *Node) error) error {
	names := make([]string, 0, len(n.Children))
	for name := range n.Children {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		child := n.Children[name]
		p := path.Join(prefix, name)
		if err := fn(p, child); err != nil {
			return err
		}
		if child.Dir {
			if err := child.walk(p, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Files counts file leaves below n.
func (n *Node) Files() int {
	count := 0
	_ = n.Walk(func(_ string, node *Node) error {
		if !node.Dir {
			count++
		}
		return nil
	})
	return count
}
