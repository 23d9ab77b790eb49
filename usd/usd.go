package usd

import (
	"strings"
)

// Value types. Plain float64 is written as double, the named float types are
// written with single precision.
type (
	Token    string
	Asset    string
	Float    float64
	Float2   [2]float64
	Float3   [3]float64
	Float4   [4]float64
	Double3  [3]float64
	Quatf    [4]float64 // w, x, y, z
	Matrix4d [16]float64
)

type TimeSample struct {
	Time  float64
	Value any
}

// Property is an attribute, or a relationship when Relationship is set.
type Property struct {
	Name     string
	TypeName string
	Uniform  bool

	Value       any
	Connection  string
	TimeSamples []TimeSample

	Relationship bool
	Targets      []string

	Interpolation string
	ElementSize   int
}

type Prim struct {
	Name       string
	TypeName   string
	Path       string
	APISchemas []string
	Properties []*Property
	Children   []*Prim

	parent   *Prim
	children map[string]*Prim
}

func newPrim(parent *Prim, name, typeName string) *Prim {
	path := "/" + name
	if parent != nil && parent.Path != "/" {
		path = parent.Path + "/" + name
	}
	if name == "" {
		path = "/"
	}
	return &Prim{Name: name, TypeName: typeName, Path: path, parent: parent, children: map[string]*Prim{}}
}

func (p *Prim) Parent() *Prim {
	return p.parent
}

func (p *Prim) Child(name string) *Prim {
	return p.children[name]
}

func (p *Prim) Property(name string) *Property {
	for _, a := range p.Properties {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// SetAttribute creates or replaces the default value of an attribute.
func (p *Prim) SetAttribute(name, typeName string, value any) *Property {
	a := p.Property(name)
	if a == nil {
		a = &Property{Name: name}
		p.Properties = append(p.Properties, a)
	}
	a.TypeName = typeName
	a.Value = value
	return a
}

func (p *Prim) SetUniform(name, typeName string, value any) *Property {
	a := p.SetAttribute(name, typeName, value)
	a.Uniform = true
	return a
}

func (p *Prim) SetRelationship(name string, targets ...string) *Property {
	r := p.Property(name)
	if r == nil {
		r = &Property{Name: name, Relationship: true}
		p.Properties = append(p.Properties, r)
	}
	r.Targets = targets
	return r
}

// Connect makes the named attribute read from source, keeping any default value.
func (p *Prim) Connect(name, typeName, source string) *Property {
	a := p.Property(name)
	if a == nil {
		a = &Property{Name: name, TypeName: typeName}
		p.Properties = append(p.Properties, a)
	}
	a.Connection = source
	return a
}

func (p *Prim) RemoveProperty(name string) {
	for i, a := range p.Properties {
		if a.Name == name {
			p.Properties = append(p.Properties[:i], p.Properties[i+1:]...)
			return
		}
	}
}

func (p *Prim) AddAPISchema(name string) {
	for _, s := range p.APISchemas {
		if s == name {
			return
		}
	}
	p.APISchemas = append(p.APISchemas, name)
}

func (p *Prim) addChild(c *Prim) {
	p.children[c.Name] = c
	p.Children = append(p.Children, c)
}

// Walk calls f for p and every descendant in depth-first order.
func (p *Prim) Walk(f func(*Prim)) {
	f(p)
	for _, c := range p.Children {
		c.Walk(f)
	}
}

// ParentPath returns the path of the parent prim, "/" for top-level prims.
func ParentPath(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i <= 0 {
		return "/"
	}
	return path[:i]
}
