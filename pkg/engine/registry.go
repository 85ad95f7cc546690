package engine

import (
	"fmt"
	"sort"
)

// Node is one cache-resident filesystem entry.
//
// The reference count is owned by the Registry; callers change it only
// through Registry.Get and Registry.Put.
type Node struct {
	Nid  uint64
	Pnid uint64
	Name string
	Dir  bool

	// Unlinked is set once the node's directory entry is gone. The node is
	// evicted as soon as its last reference is dropped.
	Unlinked bool

	refs int
}

// Refs returns the current reference count.
func (n *Node) Refs() int {
	return n.refs
}

// IsDirectory reports whether the node is a directory.
func (n *Node) IsDirectory() bool {
	return n.Dir
}

// Registry is an arena of live nodes indexed by nid.
//
// A node is never evicted while its reference count is above zero.
// Reference underflow and operations on unknown nids are programming
// errors and panic.
type Registry struct {
	nodes    map[uint64]*Node
	children map[uint64]map[uint64]struct{}

	// onEvict runs after a node leaves the arena.
	onEvict func(*Node)
}

// NewRegistry creates an empty registry. onEvict may be nil.
func NewRegistry(onEvict func(*Node)) *Registry {
	return &Registry{
		nodes:    make(map[uint64]*Node),
		children: make(map[uint64]map[uint64]struct{}),
		onEvict:  onEvict,
	}
}

// Insert adds a node with a zero reference count.
func (r *Registry) Insert(n *Node) {
	if _, exists := r.nodes[n.Nid]; exists {
		panic(fmt.Sprintf("registry: nid %d inserted twice", n.Nid))
	}
	n.refs = 0
	r.nodes[n.Nid] = n
	if n.Pnid != n.Nid {
		r.link(n.Pnid, n.Nid)
	}
}

// Lookup returns the resident node for nid.
func (r *Registry) Lookup(nid uint64) (*Node, bool) {
	n, ok := r.nodes[nid]
	return n, ok
}

// Len returns the number of resident nodes.
func (r *Registry) Len() int {
	return len(r.nodes)
}

// Get takes a reference on a resident node.
func (r *Registry) Get(nid uint64) {
	n := r.mustLookup(nid, "get")
	n.refs++
}

// Put drops a reference. An unlinked node is evicted when its count
// reaches zero.
func (r *Registry) Put(nid uint64) {
	n := r.mustLookup(nid, "put")
	if n.refs <= 0 {
		panic(fmt.Sprintf("registry: put on nid %d with refs %d", nid, n.refs))
	}
	n.refs--
	if n.refs == 0 && n.Unlinked {
		r.evict(n)
	}
}

// Move re-parents a node after a rename.
func (r *Registry) Move(nid, newPnid uint64, newName string) {
	n := r.mustLookup(nid, "move")
	r.unlink(n.Pnid, nid)
	n.Pnid = newPnid
	n.Name = newName
	r.link(newPnid, nid)
}

// Detach removes the node from its parent's child set and marks it
// unlinked. It is evicted immediately when nothing references it.
func (r *Registry) Detach(nid uint64) {
	n := r.mustLookup(nid, "detach")
	r.unlink(n.Pnid, nid)
	n.Unlinked = true
	if n.refs == 0 {
		r.evict(n)
	}
}

// Evict removes an unreferenced node that has no resident children.
// It reports whether the node was evicted.
func (r *Registry) Evict(nid uint64) bool {
	n, ok := r.nodes[nid]
	if !ok || n.refs > 0 || len(r.children[nid]) > 0 {
		return false
	}
	r.evict(n)
	return true
}

// Children returns the resident children of pnid ordered by nid.
func (r *Registry) Children(pnid uint64) []uint64 {
	set := r.children[pnid]
	out := make([]uint64, 0, len(set))
	for nid := range set {
		out = append(out, nid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Each calls fn for every resident node.
func (r *Registry) Each(fn func(*Node)) {
	for _, n := range r.nodes {
		fn(n)
	}
}

func (r *Registry) mustLookup(nid uint64, op string) *Node {
	n, ok := r.nodes[nid]
	if !ok {
		panic(fmt.Sprintf("registry: %s on unknown nid %d", op, nid))
	}
	return n
}

func (r *Registry) evict(n *Node) {
	if !n.Unlinked {
		r.unlink(n.Pnid, n.Nid)
	}
	delete(r.nodes, n.Nid)
	delete(r.children, n.Nid)
	if r.onEvict != nil {
		r.onEvict(n)
	}
}

func (r *Registry) link(pnid, nid uint64) {
	set, ok := r.children[pnid]
	if !ok {
		set = make(map[uint64]struct{})
		r.children[pnid] = set
	}
	set[nid] = struct{}{}
}

func (r *Registry) unlink(pnid, nid uint64) {
	if set, ok := r.children[pnid]; ok {
		delete(set, nid)
		if len(set) == 0 {
			delete(r.children, pnid)
		}
	}
}
