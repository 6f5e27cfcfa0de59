package splitquery

import (
	"fmt"
	"strings"
	"sync"
)

// CommandDescriptor is a resolved, executable command: its text, the bound
// arguments, and the expected column layout.
type CommandDescriptor struct {
	Text    string
	Args    []Arg
	Columns []string
}

type Arg struct {
	Name  string
	Value any
}

func (d *CommandDescriptor) String() string {
	var b strings.Builder
	b.WriteString(d.Text)
	if len(d.Args) > 0 {
		b.WriteString(" [")
		for i, a := range d.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", a.Name, a.Value)
		}
		b.WriteString("]")
	}
	return b.String()
}

// CommandCache resolves the command to execute for a parameter snapshot.
// Resolve must be pure: equal snapshots resolve to the same descriptor.
type CommandCache interface {
	Resolve(params map[string]any) (*CommandDescriptor, error)
}

type CacheFunc func(params map[string]any) (*CommandDescriptor, error)

func (f CacheFunc) Resolve(params map[string]any) (*CommandDescriptor, error) {
	return f(params)
}

// MemoCache memoizes resolved descriptors by parameter snapshot, keyed with
// ParamsKey. The build function runs once per distinct snapshot for the
// lifetime of the compiled query.
type MemoCache struct {
	build CacheFunc
	mu    sync.Mutex
	byKey map[string]*CommandDescriptor
}

func NewMemoCache(build CacheFunc) *MemoCache {
	return &MemoCache{
		build: build,
		byKey: make(map[string]*CommandDescriptor),
	}
}

func (c *MemoCache) Resolve(params map[string]any) (*CommandDescriptor, error) {
	key, err := ParamsKey(params)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.byKey[key]; ok {
		return d, nil
	}
	d, err := c.build(params)
	if err != nil {
		return nil, err
	}
	c.byKey[key] = d
	return d, nil
}
