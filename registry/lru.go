package registry

// lruNode is one path in the recency list.
type lruNode struct {
	path string
	prev *lruNode
	next *lruNode
}

// lru orders paths by last access. head is the most recently used.
// Not safe for concurrent use.
type lru struct {
	nodes map[string]*lruNode
	head  *lruNode
	tail  *lruNode
}

func newLRU() *lru {
	return &lru{nodes: make(map[string]*lruNode)}
}

// touch marks path as most recently used, adding it if needed.
func (l *lru) touch(path string) {
	if n, ok := l.nodes[path]; ok {
		l.unlink(n)
		l.addFront(n)
		return
	}
	n := &lruNode{path: path}
	l.nodes[path] = n
	l.addFront(n)
}

// evict removes and returns the least recently used path, or "" when empty.
func (l *lru) evict() string {
	if l.tail == nil {
		return ""
	}
	p := l.tail.path
	l.unlink(l.tail)
	delete(l.nodes, p)
	return p
}

func (l *lru) remove(path string) {
	if n, ok := l.nodes[path]; ok {
		l.unlink(n)
		delete(l.nodes, path)
	}
}

func (l *lru) addFront(n *lruNode) {
	n.prev = nil
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
}

func (l *lru) unlink(n *lruNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next = nil, nil
}
