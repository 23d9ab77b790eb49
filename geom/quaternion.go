package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

type Quaternion struct {
	X Element
	Y Element
	Z Element
	W Element
}

func NewQuaternion(x, y, z, w Element) *Quaternion {
	return &Quaternion{X: x, Y: y, Z: z, W: w}
}

// NewQuaternionFromArray reads a quaternion stored as (x, y, z, w).
// An all-zero array is treated as the identity rotation.
func NewQuaternionFromArray(arr [4]float32) *Quaternion {
	if arr == [4]float32{} {
		return NewQuaternion(0, 0, 0, 1)
	}
	return &Quaternion{X: Element(arr[0]), Y: Element(arr[1]), Z: Element(arr[2]), W: Element(arr[3])}
}

func newQuaternionFromMgl(q mgl64.Quat) *Quaternion {
	return &Quaternion{X: q.V[0], Y: q.V[1], Z: q.V[2], W: q.W}
}

// Mgl converts to the w-first mathgl representation.
func (q *Quaternion) Mgl() mgl64.Quat {
	return mgl64.Quat{W: q.W, V: mgl64.Vec3{q.X, q.Y, q.Z}}
}

func (q *Quaternion) Dot(q2 *Quaternion) Element {
	return q.X*q2.X + q.Y*q2.Y + q.Z*q2.Z + q.W*q2.W
}

func (q *Quaternion) Len() Element {
	return math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
}

func (q *Quaternion) Normalize() *Quaternion {
	l := q.Len()
	if l > 0 {
		q.X /= l
		q.Y /= l
		q.Z /= l
		q.W /= l
	} else {
		q.W = 1
	}
	return q
}

// Returns Hamilton product
func (a *Quaternion) Mul(b *Quaternion) *Quaternion {
	return newQuaternionFromMgl(a.Mgl().Mul(b.Mgl()))
}

func (q *Quaternion) ApplyTo(v *Vector3) *Vector3 {
	r := q.Mgl().Rotate(mgl64.Vec3{v.X, v.Y, v.Z})
	return &Vector3{X: r[0], Y: r[1], Z: r[2]}
}

// SameRotation reports whether q and q2 describe the same rotation within eps.
// q and -q are equivalent.
func (q *Quaternion) SameRotation(q2 *Quaternion, eps Element) bool {
	return math.Abs(math.Abs(q.Dot(q2))-1) <= eps
}
