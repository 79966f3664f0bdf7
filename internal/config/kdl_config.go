package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"

	"github.com/standardbeagle/spanidx/internal/debug"
)

// LoadKDL attempts to load configuration from a .spanidx.kdl file.
// It returns nil, nil when the file does not exist.
func LoadKDL(projectRoot string) (*Config, error) {
	kdlPath := filepath.Join(projectRoot, kdlFileName)

	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %v", kdlFileName, err)
	}

	return parseKDL(string(content))
}

// parseKDL reads a spanidx KDL document on top of the defaults. The
// project root is left empty unless the document sets one.
func parseKDL(content string) (*Config, error) {
	cfg := Default()
	cfg.Project.Root = ""

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, top := range doc.Nodes {
		n := node{top}
		switch n.name() {
		case "version":
			n.setInt(&cfg.Version)
		case "project": // project { root "." id "core" }
			for _, c := range n.children() {
				switch c.name() {
				case "root":
					c.setString(&cfg.Project.Root)
				case "id":
					c.setString(&cfg.Project.ID)
				}
			}
		case "store":
			for _, c := range n.children() {
				switch c.name() {
				case "backend":
					if c.setString(&cfg.Store.Backend) {
						cfg.Store.Backend = strings.ToLower(cfg.Store.Backend)
					}
				case "path":
					c.setString(&cfg.Store.Path)
				case "index":
					c.setString(&cfg.Store.Index)
				}
			}
		case "spans":
			for _, c := range n.children() {
				switch c.name() {
				case "max_content_size":
					if err := c.setSize(&cfg.Spans.MaxContentSize); err != nil {
						return nil, err
					}
				case "line_span_threshold":
					c.setInt(&cfg.Spans.LineSpanThreshold)
				case "expand_on_read":
					c.setBool(&cfg.Spans.ExpandOnRead)
				}
			}
		case "upload":
			for _, c := range n.children() {
				switch c.name() {
				case "concurrency":
					c.setInt(&cfg.Upload.Concurrency)
				case "watch_debounce_ms":
					c.setInt(&cfg.Upload.WatchDebounceMs)
				}
			}
		case "search":
			for _, c := range n.children() {
				switch c.name() {
				case "max_results":
					c.setInt(&cfg.Search.MaxResults)
				case "suggest_threshold":
					c.setFloat(&cfg.Search.SuggestThreshold)
				case "include_hidden":
					c.setBool(&cfg.Search.IncludeHidden)
				}
			}
		case "include":
			cfg.Include = append(cfg.Include, n.stringList()...)
		case "exclude":
			cfg.Exclude = append(cfg.Exclude, n.stringList()...)
		}
	}

	return cfg, nil
}

// node wraps a kdl-go document node with typed accessors for its first
// argument. Setters leave the target untouched and report false when the
// argument is missing or of the wrong type.
type node struct {
	*document.Node
}

func (n node) name() string {
	if n.Node == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func (n node) children() []node {
	out := make([]node, len(n.Children))
	for i, c := range n.Children {
		out[i] = node{c}
	}
	return out
}

func (n node) arg() (any, bool) {
	if n.Node == nil || len(n.Arguments) == 0 {
		return nil, false
	}
	return n.Arguments[0].Value, true
}

func (n node) setString(dst *string) bool {
	v, _ := n.arg()
	s, ok := v.(string)
	if ok {
		*dst = s
	}
	return ok
}

func (n node) setInt(dst *int) bool {
	v, _ := n.arg()
	switch v := v.(type) {
	case int64:
		*dst = int(v)
	case float64:
		*dst = int(v)
	default:
		return false
	}
	return true
}

func (n node) setFloat(dst *float64) bool {
	v, ok := n.arg()
	switch v := v.(type) {
	case float64:
		*dst = v
	case int64:
		*dst = float64(v)
	default:
		if ok {
			debug.Log("CONFIG", "ignoring %s: expected a number, got %T\n", n.name(), v)
		}
		return false
	}
	return true
}

func (n node) setBool(dst *bool) bool {
	v, _ := n.arg()
	switch v := v.(type) {
	case bool:
		*dst = v
	case string:
		*dst = parseBool(v)
	default:
		return false
	}
	return true
}

// setSize accepts either a byte count or a size string such as "4MB".
func (n node) setSize(dst *int64) error {
	v, _ := n.arg()
	switch v := v.(type) {
	case int64:
		*dst = v
	case float64:
		*dst = int64(v)
	case string:
		sz, err := parseSize(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", n.name(), v, err)
		}
		*dst = sz
	}
	return nil
}

// stringList collects string arguments, either inline (exclude "a" "b") or
// as a block of child nodes (exclude { "a"; "b" }).
func (n node) stringList() []string {
	var out []string
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, c := range n.children() {
		var s string
		if c.setString(&s) {
			out = append(out, s)
		} else if c.Name != nil {
			if name, ok := c.Name.Value.(string); ok {
				out = append(out, name)
			}
		}
	}
	return out
}

var sizeUnits = []struct {
	suffix string
	factor int64
}{
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
	{"B", 1},
}

// parseSize handles size strings like "10MB", "500KB", "1GB". Units are
// binary.
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	factor := int64(1)
	for _, u := range sizeUnits {
		if strings.HasSuffix(s, u.suffix) {
			s, factor = strings.TrimSuffix(s, u.suffix), u.factor
			break
		}
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, err
	}
	return n * factor, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		return true
	}
	return false
}
