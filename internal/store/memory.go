package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// Memory is an in-process KV used by tests and by deployments that run
// without a database. Namespaces share one mutex; the game mutates state
// strictly between rounds so contention is not a concern.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]string)}
}

// Namespace returns the KV bucket for the given name, creating it lazily.
func (m *Memory) Namespace(name string) KV {
	return &memoryNamespace{parent: m, name: name}
}

type memoryNamespace struct {
	parent *Memory
	name   string
}

func (n *memoryNamespace) bucket() map[string]string {
	b, ok := n.parent.data[n.name]
	if !ok {
		b = make(map[string]string)
		n.parent.data[n.name] = b
	}
	return b
}

func (n *memoryNamespace) Get(ctx context.Context, key string) (string, bool, error) {
	n.parent.mu.RLock()
	defer n.parent.mu.RUnlock()
	v, ok := n.parent.data[n.name][key]
	return v, ok, nil
}

func (n *memoryNamespace) Set(ctx context.Context, key, value string) error {
	n.parent.mu.Lock()
	defer n.parent.mu.Unlock()
	n.bucket()[key] = value
	return nil
}

func (n *memoryNamespace) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	n.parent.mu.Lock()
	defer n.parent.mu.Unlock()
	b := n.bucket()
	current := int64(0)
	if raw, ok := b[key]; ok {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("increment non-integer value %q for key %s: %w", raw, key, err)
		}
		current = parsed
	}
	current += delta
	b[key] = strconv.FormatInt(current, 10)
	return current, nil
}

func (n *memoryNamespace) Delete(ctx context.Context, key string) error {
	n.parent.mu.Lock()
	defer n.parent.mu.Unlock()
	delete(n.parent.data[n.name], key)
	return nil
}

func (n *memoryNamespace) Clear(ctx context.Context) error {
	n.parent.mu.Lock()
	defer n.parent.mu.Unlock()
	delete(n.parent.data, n.name)
	return nil
}

func (n *memoryNamespace) ToMap(ctx context.Context) (map[string]string, error) {
	n.parent.mu.RLock()
	defer n.parent.mu.RUnlock()
	out := make(map[string]string, len(n.parent.data[n.name]))
	for k, v := range n.parent.data[n.name] {
		out[k] = v
	}
	return out, nil
}
