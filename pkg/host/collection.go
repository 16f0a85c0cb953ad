package host

import "sync"

// ChangeKind describes a structural change of a JointCollection.
type ChangeKind int

const (
	// ChangeReset means the collection was cleared and rebuilt.
	ChangeReset ChangeKind = iota
)

// Change is delivered to subscribers after the collection changed shape.
type Change struct {
	Kind ChangeKind
	Len  int
}

// JointCollection is the live, observable list of joints.
// In-place updates through Update do not notify subscribers; Replace does.
type JointCollection struct {
	mu     sync.RWMutex
	joints []TrackedJoint

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Change)
}

// NewJointCollection returns an empty collection.
func NewJointCollection() *JointCollection {
	return &JointCollection{subs: make(map[int]func(Change))}
}

// Len returns the number of joints.
func (c *JointCollection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.joints)
}

// At returns a copy of the joint at index i.
func (c *JointCollection) At(i int) (TrackedJoint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i < 0 || i >= len(c.joints) {
		return TrackedJoint{}, false
	}
	return c.joints[i], true
}

// Snapshot returns a copy of all joints.
func (c *JointCollection) Snapshot() []TrackedJoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]TrackedJoint(nil), c.joints...)
}

// Update mutates the joint at index i in place. It reports false if i is out of range.
func (c *JointCollection) Update(i int, fn func(j *TrackedJoint)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.joints) {
		return false
	}
	fn(&c.joints[i])
	return true
}

// Replace swaps the whole collection and notifies subscribers, even when the
// new contents equal the old ones.
func (c *JointCollection) Replace(joints []TrackedJoint) {
	c.mu.Lock()
	c.joints = append(c.joints[:0:0], joints...)
	n := len(c.joints)
	c.mu.Unlock()

	c.notify(Change{Kind: ChangeReset, Len: n})
}

// AnyTracked reports whether at least one joint is tracked.
func (c *JointCollection) AnyTracked() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, j := range c.joints {
		if j.State == Tracked {
			return true
		}
	}
	return false
}

// Subscribe registers fn for structural changes and returns a function that removes it.
// fn runs synchronously on the goroutine making the change; the adapter holds
// the host update lock at that point.
func (c *JointCollection) Subscribe(fn func(Change)) (unsubscribe func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs, id)
	}
}

func (c *JointCollection) notify(ch Change) {
	c.subMu.Lock()
	fns := make([]func(Change), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(ch)
	}
}
