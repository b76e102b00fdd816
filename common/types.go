// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import "sync/atomic"

// AnimationID is the process-unique handle of a single registered animation.
// IDs increase monotonically and are never reused within a process.
type AnimationID uint64

// ObjectID identifies one logical animatable object. Binding layers mint one per object with NewObjectID
// and use it for every property of that object.
type ObjectID uint64

var (
	lastAnimationID atomic.Uint64
	lastObjectID    atomic.Uint64
)

// NextAnimationID mints a new AnimationID.
//
// Returns:
//   - AnimationID: an ID greater than every previously minted ID
func NextAnimationID() AnimationID {
	return AnimationID(lastAnimationID.Add(1))
}

// NewObjectID mints a new ObjectID that is unique for the lifetime of the process.
//
// Returns:
//   - ObjectID: a fresh object identifier, never zero
func NewObjectID() ObjectID {
	return ObjectID(lastObjectID.Add(1))
}

// PropertyKey addresses a single animatable property on a single object.
type PropertyKey struct {
	Object ObjectID
	Name   string
}

// Getter reads the live value of a property.
type Getter func() Vec4

// Setter writes a new absolute value to a property.
type Setter func(Vec4)

// Completion is invoked once when an animation ends. finished is true when the animation ran to completion
// and false when it was cancelled or replaced.
type Completion func(finished bool)
