package property

import (
	"errors"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-anim/common"
)

// Kind is the type of driver animating a property.
type Kind int

const (
	KindNone Kind = iota
	KindSpring
	KindTween
)

func (k Kind) String() string {
	switch k {
	case KindSpring:
		return "spring"
	case KindTween:
		return "tween"
	default:
		return "none"
	}
}

// ErrMixedDrivers is returned when a driver is added to a property already driven by a different kind,
// or a second spring is added to a property.
var ErrMixedDrivers = errors.New("property already driven by an incompatible animation")

// record is the driver bookkeeping of one property.
type record struct {
	kind Kind
	// ids lists the live animations in registration order.
	ids []common.AnimationID
	// target is the absolute value the whole chain converges to.
	target common.Vec4
}

// manager is the implementation of the Manager interface.
type manager struct {
	mu *sync.RWMutex

	records map[common.PropertyKey]*record
	// names indexes the animated property names of each object.
	names map[common.ObjectID]map[string]struct{}
}

// Manager tracks which animations drive each property of each object. A property has no drivers,
// exactly one spring, or an ordered chain of tweens composing additively toward one absolute target.
//
// Manager does not own any slot storage; callers use the returned IDs to free slots and fire
// completions.
type Manager interface {
	// Add records id as a driver of key. A spring may only be added to a property with no drivers.
	// A tween may be added to a property with no drivers or an existing tween chain, in which case
	// it is appended and the chain target replaced.
	//
	// Parameters:
	//   - key: the property
	//   - id: the animation driving it
	//   - kind: KindSpring or KindTween
	//   - target: the absolute target the property converges to
	//
	// Returns:
	//   - error: ErrMixedDrivers if the property is driven by an incompatible animation
	Add(key common.PropertyKey, id common.AnimationID, kind Kind, target common.Vec4) error

	// Remove drops the records of the named properties of obj, or every property of obj when no
	// names are given. Absent properties are ignored.
	//
	// Parameters:
	//   - obj: the object
	//   - names: the property names, empty for all
	//
	// Returns:
	//   - []common.AnimationID: the IDs that were driving the removed properties
	Remove(obj common.ObjectID, names ...string) []common.AnimationID

	// List returns the live IDs of the named properties of obj, or of every property when no names are given.
	// Properties are visited in name order and each chain in registration order.
	//
	// Parameters:
	//   - obj: the object
	//   - names: the property names, empty for all
	//
	// Returns:
	//   - []common.AnimationID: the IDs
	List(obj common.ObjectID, names ...string) []common.AnimationID

	// IDs returns the driver chain of key in registration order.
	//
	// Parameters:
	//   - key: the property
	//
	// Returns:
	//   - []common.AnimationID: a copy of the chain, nil if key has no drivers
	IDs(key common.PropertyKey) []common.AnimationID

	// SpringID returns the spring driving key.
	//
	// Parameters:
	//   - key: the property
	//
	// Returns:
	//   - common.AnimationID: the spring's ID
	//   - bool: false if key is not driven by a spring
	SpringID(key common.PropertyKey) (common.AnimationID, bool)

	// Target returns the absolute target of the driver chain of key.
	//
	// Parameters:
	//   - key: the property
	//
	// Returns:
	//   - common.Vec4: the target
	//   - bool: false if key has no drivers
	Target(key common.PropertyKey) (common.Vec4, bool)

	// SetTarget replaces the absolute target of the driver chain of key.
	//
	// Parameters:
	//   - key: the property
	//   - target: the new chain target
	//
	// Returns:
	//   - bool: false if key has no drivers
	SetTarget(key common.PropertyKey, target common.Vec4) bool

	// Kind returns the kind of driver animating key, KindNone if there is none.
	//
	// Parameters:
	//   - key: the property
	//
	// Returns:
	//   - Kind: the driver kind
	Kind(key common.PropertyKey) Kind

	// Prune drops the IDs of key for which alive returns false and returns the number left.
	// The record is deleted when none are left.
	//
	// Parameters:
	//   - key: the property
	//   - alive: reports whether an animation still has a slot
	//
	// Returns:
	//   - int: the number of live drivers
	Prune(key common.PropertyKey, alive func(common.AnimationID) bool) int

	// AnimationDone removes a single finished or cancelled animation from key's chain.
	// The record is deleted once the chain is empty.
	//
	// Parameters:
	//   - key: the property
	//   - id: the animation
	//
	// Returns:
	//   - bool: true if id was part of the chain
	AnimationDone(key common.PropertyKey, id common.AnimationID) bool

	// Keys returns the animated properties of obj in name order.
	//
	// Parameters:
	//   - obj: the object
	//
	// Returns:
	//   - []common.PropertyKey: the keys
	Keys(obj common.ObjectID) []common.PropertyKey

	// Len returns the number of properties with at least one driver.
	Len() int

	// Clear drops every record.
	Clear()
}

var _ Manager = &manager{}

// NewManager creates an empty Manager.
//
// Returns:
//   - Manager: the new manager
func NewManager() Manager {
	return &manager{
		mu:      &sync.RWMutex{},
		records: make(map[common.PropertyKey]*record),
		names:   make(map[common.ObjectID]map[string]struct{}),
	}
}

func (m *manager) Add(key common.PropertyKey, id common.AnimationID, kind Kind, target common.Vec4) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if kind != KindSpring && kind != KindTween {
		return errors.New("unknown driver kind")
	}

	r, ok := m.records[key]
	if ok && (r.kind != kind || kind == KindSpring) {
		return ErrMixedDrivers
	}
	if !ok {
		r = &record{kind: kind}
		m.records[key] = r
		if m.names[key.Object] == nil {
			m.names[key.Object] = make(map[string]struct{})
		}
		m.names[key.Object][key.Name] = struct{}{}
	}
	r.ids = append(r.ids, id)
	r.target = target
	return nil
}

func (m *manager) Remove(obj common.ObjectID, names ...string) []common.AnimationID {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []common.AnimationID
	for _, key := range m.selectKeys(obj, names) {
		r, ok := m.records[key]
		if !ok {
			continue
		}
		removed = append(removed, r.ids...)
		m.deleteRecord(key)
	}
	return removed
}

func (m *manager) List(obj common.ObjectID, names ...string) []common.AnimationID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []common.AnimationID
	for _, key := range m.selectKeys(obj, names) {
		if r, ok := m.records[key]; ok {
			ids = append(ids, r.ids...)
		}
	}
	return ids
}

func (m *manager) IDs(key common.PropertyKey) []common.AnimationID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[key]
	if !ok {
		return nil
	}
	return slices.Clone(r.ids)
}

func (m *manager) SpringID(key common.PropertyKey) (common.AnimationID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[key]
	if !ok || r.kind != KindSpring || len(r.ids) == 0 {
		return 0, false
	}
	return r.ids[0], true
}

func (m *manager) Target(key common.PropertyKey) (common.Vec4, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[key]
	if !ok {
		return common.Vec4{}, false
	}
	return r.target, true
}

func (m *manager) SetTarget(key common.PropertyKey, target common.Vec4) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[key]
	if !ok {
		return false
	}
	r.target = target
	return true
}

func (m *manager) Kind(key common.PropertyKey) Kind {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if r, ok := m.records[key]; ok {
		return r.kind
	}
	return KindNone
}

func (m *manager) Prune(key common.PropertyKey, alive func(common.AnimationID) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[key]
	if !ok {
		return 0
	}
	r.ids = slices.DeleteFunc(r.ids, func(id common.AnimationID) bool {
		return !alive(id)
	})
	if len(r.ids) == 0 {
		m.deleteRecord(key)
		return 0
	}
	return len(r.ids)
}

func (m *manager) AnimationDone(key common.PropertyKey, id common.AnimationID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[key]
	if !ok {
		return false
	}
	i := slices.Index(r.ids, id)
	if i < 0 {
		return false
	}
	r.ids = slices.Delete(r.ids, i, i+1)
	if len(r.ids) == 0 {
		m.deleteRecord(key)
	}
	return true
}

func (m *manager) Keys(obj common.ObjectID) []common.PropertyKey {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selectKeys(obj, nil)
}

func (m *manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.records)
	clear(m.names)
}

// selectKeys returns the keys of obj matching names, or all of obj's keys when names is empty, in name order.
func (m *manager) selectKeys(obj common.ObjectID, names []string) []common.PropertyKey {
	if len(names) == 0 {
		for name := range m.names[obj] {
			names = append(names, name)
		}
	} else {
		names = slices.Clone(names)
	}
	slices.Sort(names)
	names = slices.Compact(names)

	keys := make([]common.PropertyKey, 0, len(names))
	for _, name := range names {
		keys = append(keys, common.PropertyKey{Object: obj, Name: name})
	}
	return keys
}

func (m *manager) deleteRecord(key common.PropertyKey) {
	delete(m.records, key)
	if names, ok := m.names[key.Object]; ok {
		delete(names, key.Name)
		if len(names) == 0 {
			delete(m.names, key.Object)
		}
	}
}
