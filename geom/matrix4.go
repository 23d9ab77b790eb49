package geom

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"
)

// column-major matrix
type Matrix4 [16]Element

func NewMatrix4() *Matrix4 {
	return &Matrix4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

func NewMatrix4FromSlice(a []Element) *Matrix4 {
	m := &Matrix4{}
	copy(m[:], a[:])
	return m
}

func NewMatrix4FromArray(a [16]float32) *Matrix4 {
	m := &Matrix4{}
	for i, v := range a {
		m[i] = Element(v)
	}
	return m
}

func NewScaleMatrix4(x, y, z Element) *Matrix4 {
	return &Matrix4{
		x, 0, 0, 0,
		0, y, 0, 0,
		0, 0, z, 0,
		0, 0, 0, 1,
	}
}

func NewTranslateMatrix4(x, y, z Element) *Matrix4 {
	return &Matrix4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		x, y, z, 1,
	}
}

// NewRotationMatrix4FromQuaternion builds the rotation through the w-first mathgl quaternion.
func NewRotationMatrix4FromQuaternion(q *Quaternion) *Matrix4 {
	m := Matrix4(q.Mgl().Normalize().Mat4())
	return &m
}

// NewTRSMatrix4 returns T * R * S: geometry is scaled, then rotated, then translated.
func NewTRSMatrix4(t *Vector3, r *Quaternion, s *Vector3) *Matrix4 {
	return NewTranslateMatrix4(t.X, t.Y, t.Z).
		Mul(NewRotationMatrix4FromQuaternion(r)).
		Mul(NewScaleMatrix4(s.X, s.Y, s.Z))
}

func (b *Matrix4) Mul(a *Matrix4) *Matrix4 {
	r := &Matrix4{}

	r[0] = a[0]*b[0] + a[1]*b[4] + a[2]*b[8] + a[3]*b[12]
	r[1] = a[0]*b[1] + a[1]*b[5] + a[2]*b[9] + a[3]*b[13]
	r[2] = a[0]*b[2] + a[1]*b[6] + a[2]*b[10] + a[3]*b[14]
	r[3] = a[0]*b[3] + a[1]*b[7] + a[2]*b[11] + a[3]*b[15]

	r[4] = a[4]*b[0] + a[5]*b[4] + a[6]*b[8] + a[7]*b[12]
	r[5] = a[4]*b[1] + a[5]*b[5] + a[6]*b[9] + a[7]*b[13]
	r[6] = a[4]*b[2] + a[5]*b[6] + a[6]*b[10] + a[7]*b[14]
	r[7] = a[4]*b[3] + a[5]*b[7] + a[6]*b[11] + a[7]*b[15]

	r[8] = a[8]*b[0] + a[9]*b[4] + a[10]*b[8] + a[11]*b[12]
	r[9] = a[8]*b[1] + a[9]*b[5] + a[10]*b[9] + a[11]*b[13]
	r[10] = a[8]*b[2] + a[9]*b[6] + a[10]*b[10] + a[11]*b[14]
	r[11] = a[8]*b[3] + a[9]*b[7] + a[10]*b[11] + a[11]*b[15]

	r[12] = a[12]*b[0] + a[13]*b[4] + a[14]*b[8] + a[15]*b[12]
	r[13] = a[12]*b[1] + a[13]*b[5] + a[14]*b[9] + a[15]*b[13]
	r[14] = a[12]*b[2] + a[13]*b[6] + a[14]*b[10] + a[15]*b[14]
	r[15] = a[12]*b[3] + a[13]*b[7] + a[14]*b[11] + a[15]*b[15]
	return r
}

// Inverse fails for singular matrices instead of returning garbage.
func (m *Matrix4) Inverse() (*Matrix4, error) {
	// Loading the column-major data row-major yields the transpose; inverting and reading
	// back in the same order cancels it out.
	src := mat.NewDense(4, 4, append([]float64(nil), m[:]...))
	var inv mat.Dense
	if err := inv.Inverse(src); err != nil {
		return nil, fmt.Errorf("matrix is not invertible: %w", err)
	}
	r := &Matrix4{}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			r[i*4+j] = inv.At(i, j)
		}
	}
	return r, nil
}

func (m *Matrix4) Translation() *Vector3 {
	return &Vector3{X: m[12], Y: m[13], Z: m[14]}
}

func (m *Matrix4) IsIdentity() bool {
	return *m == *NewMatrix4()
}

func (m *Matrix4) ApproxEqual(m2 *Matrix4, eps Element) bool {
	for i := range m {
		if math.Abs(m[i]-m2[i]) > eps {
			return false
		}
	}
	return true
}

// Decompose splits an affine matrix into translation, rotation and scale so that
// NewTRSMatrix4(Decompose()) reproduces it. Shear is lost.
func (m *Matrix4) Decompose() (*Vector3, *Quaternion, *Vector3) {
	pos := m.Translation()
	sx := NewVector3(m[0], m[1], m[2]).Len()
	sy := NewVector3(m[4], m[5], m[6]).Len()
	sz := NewVector3(m[8], m[9], m[10]).Len()
	det := NewVector3(m[0], m[1], m[2]).Cross(NewVector3(m[4], m[5], m[6])).Dot(NewVector3(m[8], m[9], m[10]))
	if det < 0 {
		sx = -sx
	}
	scale := NewVector3(sx, sy, sz)

	rot := mgl64.Ident4()
	for i := 0; i < 3; i++ {
		s := [3]Element{sx, sy, sz}[i]
		if s == 0 {
			continue
		}
		for j := 0; j < 3; j++ {
			rot[i*4+j] = m[i*4+j] / s
		}
	}
	q := newQuaternionFromMgl(mgl64.Mat4ToQuat(rot).Normalize())
	if q.W < 0 {
		q = &Quaternion{X: -q.X, Y: -q.Y, Z: -q.Z, W: -q.W}
	}
	return pos, q, scale
}

