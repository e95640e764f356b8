package pool

import (
	"errors"
	"fmt"
	"iter"
)

var (
	ErrDuplicateIdentity = errors.New("identity already in pool")
	ErrFrozen            = errors.New("pool already built")
)

// IndexSet is the fixed set of selector indexes the registry assigns to an oracle.
type IndexSet [3]uint8

// Contains reports whether i is one of the assigned indexes.
func (s IndexSet) Contains(i uint8) bool {
	for _, v := range s {
		if v == i {
			return true
		}
	}
	return false
}

func (s IndexSet) String() string {
	return fmt.Sprintf("{%d,%d,%d}", s[0], s[1], s[2])
}

// Identity is a registered oracle account and its index assignment.
type Identity struct {
	Address string
	Indexes IndexSet
}

// Pool is the read-only set of provisioned identities. It has no mutators,
// so concurrent readers need no locking.
type Pool struct {
	identities []Identity
	byAddress  map[string]int
}

// Len returns the number of identities in the pool.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.identities)
}

// Get looks up an identity by address.
func (p *Pool) Get(address string) (Identity, bool) {
	if p == nil {
		return Identity{}, false
	}
	i, ok := p.byAddress[address]
	if !ok {
		return Identity{}, false
	}
	return p.identities[i], true
}

// All yields identities in registration order.
func (p *Pool) All() iter.Seq[Identity] {
	return func(yield func(Identity) bool) {
		if p == nil {
			return
		}
		for _, id := range p.identities {
			if !yield(id) {
				return
			}
		}
	}
}

// Addresses returns the pool's addresses in registration order.
func (p *Pool) Addresses() []string {
	out := make([]string, 0, p.Len())
	for id := range p.All() {
		out = append(out, id.Address)
	}
	return out
}

// Builder collects identities during provisioning. It is not safe for
// concurrent use; once Build is called it rejects further writes.
type Builder struct {
	identities []Identity
	seen       map[string]struct{}
	frozen     bool
}

func NewBuilder() *Builder {
	return &Builder{seen: make(map[string]struct{})}
}

// Add records a successfully registered identity.
func (b *Builder) Add(id Identity) error {
	if b.frozen {
		return ErrFrozen
	}
	if _, ok := b.seen[id.Address]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateIdentity, id.Address)
	}
	b.seen[id.Address] = struct{}{}
	b.identities = append(b.identities, id)
	return nil
}

// Len returns the number of identities added so far.
func (b *Builder) Len() int {
	return len(b.identities)
}

// Build freezes the builder and returns the read-only pool.
func (b *Builder) Build() *Pool {
	b.frozen = true
	ids := make([]Identity, len(b.identities))
	copy(ids, b.identities)
	idx := make(map[string]int, len(ids))
	for i, id := range ids {
		idx[id.Address] = i
	}
	return &Pool{identities: ids, byAddress: idx}
}
