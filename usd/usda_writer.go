package usd

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type usdaWriter struct {
	w      *bufio.Writer
	indent int
}

func (w *usdaWriter) line(format string, args ...any) {
	w.w.WriteString(strings.Repeat("    ", w.indent))
	fmt.Fprintf(w.w, format, args...)
	w.w.WriteString("\n")
}

// WriteUSDA writes the stage as a USD text layer.
func WriteUSDA(stage *Stage, ww io.Writer) error {
	w := &usdaWriter{w: bufio.NewWriter(ww)}
	w.line("#usda 1.0")
	w.line("(")
	w.indent++
	if stage.DefaultPrim != "" {
		w.line("defaultPrim = %s", strconv.Quote(stage.DefaultPrim))
	}
	w.line("endTimeCode = %s", formatDouble(stage.EndTimeCode))
	w.line("startTimeCode = %s", formatDouble(stage.StartTimeCode))
	w.line("timeCodesPerSecond = %s", formatDouble(stage.TimeCodesPerSecond))
	if stage.UpAxis != "" {
		w.line("upAxis = %s", strconv.Quote(stage.UpAxis))
	}
	w.indent--
	w.line(")")

	for _, p := range stage.Root().Children {
		w.line("")
		if err := w.prim(p); err != nil {
			return err
		}
	}
	return w.w.Flush()
}

// Save writes the stage to a .usda file.
func Save(stage *Stage, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := WriteUSDA(stage, f); err != nil {
		return errors.Wrap(err, path)
	}
	return f.Close()
}

func (w *usdaWriter) prim(p *Prim) error {
	head := "def"
	if p.TypeName != "" {
		head += " " + p.TypeName
	}
	head += " " + strconv.Quote(p.Name)
	if len(p.APISchemas) > 0 {
		schemas := make([]string, len(p.APISchemas))
		for i, s := range p.APISchemas {
			schemas[i] = strconv.Quote(s)
		}
		w.line("%s (", head)
		w.indent++
		w.line("prepend apiSchemas = [%s]", strings.Join(schemas, ", "))
		w.indent--
		w.line(")")
	} else {
		w.line("%s", head)
	}
	w.line("{")
	w.indent++
	for _, a := range p.Properties {
		if err := w.property(a); err != nil {
			return errors.Wrapf(err, "%s.%s", p.Path, a.Name)
		}
	}
	for i, c := range p.Children {
		if i > 0 || len(p.Properties) > 0 {
			w.line("")
		}
		if err := w.prim(c); err != nil {
			return err
		}
	}
	w.indent--
	w.line("}")
	return nil
}

func (w *usdaWriter) property(a *Property) error {
	if a.Relationship {
		targets := make([]string, len(a.Targets))
		for i, t := range a.Targets {
			targets[i] = "<" + t + ">"
		}
		if len(targets) == 1 {
			w.line("rel %s = %s", a.Name, targets[0])
		} else {
			w.line("rel %s = [%s]", a.Name, strings.Join(targets, ", "))
		}
		return nil
	}

	decl := a.TypeName + " " + a.Name
	if a.Uniform {
		decl = "uniform " + decl
	}
	meta := a.metadata()
	written := false
	if a.Value != nil {
		v, err := formatValue(a.Value)
		if err != nil {
			return err
		}
		w.attribute(decl+" = "+v, meta)
		written = true
	}
	if a.Connection != "" {
		w.line("%s.connect = <%s>", decl, a.Connection)
		written = true
	}
	if len(a.TimeSamples) > 0 {
		w.line("%s.timeSamples = {", decl)
		w.indent++
		for _, s := range a.TimeSamples {
			v, err := formatValue(s.Value)
			if err != nil {
				return err
			}
			w.line("%s: %s,", formatDouble(s.Time), v)
		}
		w.indent--
		w.line("}")
		written = true
	}
	if !written {
		w.attribute(decl, meta)
	}
	return nil
}

func (a *Property) metadata() []string {
	var meta []string
	if a.ElementSize > 0 {
		meta = append(meta, fmt.Sprintf("elementSize = %d", a.ElementSize))
	}
	if a.Interpolation != "" {
		meta = append(meta, "interpolation = "+strconv.Quote(a.Interpolation))
	}
	return meta
}

func (w *usdaWriter) attribute(decl string, meta []string) {
	if len(meta) == 0 {
		w.line("%s", decl)
		return
	}
	w.line("%s (", decl)
	w.indent++
	for _, m := range meta {
		w.line("%s", m)
	}
	w.indent--
	w.line(")")
}

// nonFinite spells infinities and NaN the way the USDA parser reads them.
func nonFinite(v float64) (string, bool) {
	switch {
	case math.IsNaN(v):
		return "nan", true
	case math.IsInf(v, 1):
		return "inf", true
	case math.IsInf(v, -1):
		return "-inf", true
	}
	return "", false
}

func formatDouble(v float64) string {
	if s, ok := nonFinite(v); ok {
		return s
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatFloat(v float64) string {
	f := float64(float32(v))
	if s, ok := nonFinite(f); ok {
		return s
	}
	return strconv.FormatFloat(f, 'g', -1, 32)
}

func tuple(vs []float64, f func(float64) string) string {
	s := make([]string, len(vs))
	for i, v := range vs {
		s[i] = f(v)
	}
	return "(" + strings.Join(s, ", ") + ")"
}

// matrix writes the columns of a column-major matrix as the rows of a USD matrix,
// which is the transposed (row-vector) convention USD uses.
func matrix(m Matrix4d) string {
	rows := make([]string, 4)
	for i := range rows {
		rows[i] = tuple(m[i*4:i*4+4], formatDouble)
	}
	return "(" + strings.Join(rows, ", ") + ")"
}

func array[T any](vs []T, f func(T) string) string {
	s := make([]string, len(vs))
	for i, v := range vs {
		s[i] = f(v)
	}
	return "[" + strings.Join(s, ", ") + "]"
}

func formatValue(v any) (string, error) {
	switch v := v.(type) {
	case bool:
		if v {
			return "1", nil
		}
		return "0", nil
	case int:
		return strconv.Itoa(v), nil
	case float64:
		return formatDouble(v), nil
	case Float:
		return formatFloat(float64(v)), nil
	case string:
		return strconv.Quote(v), nil
	case Token:
		return strconv.Quote(string(v)), nil
	case Asset:
		return "@" + string(v) + "@", nil
	case Float2:
		return tuple(v[:], formatFloat), nil
	case Float3:
		return tuple(v[:], formatFloat), nil
	case Float4:
		return tuple(v[:], formatFloat), nil
	case Quatf:
		return tuple(v[:], formatFloat), nil
	case Double3:
		return tuple(v[:], formatDouble), nil
	case Matrix4d:
		return matrix(v), nil
	case []int:
		return array(v, strconv.Itoa), nil
	case []Float:
		return array(v, func(f Float) string { return formatFloat(float64(f)) }), nil
	case []Token:
		return array(v, func(t Token) string { return strconv.Quote(string(t)) }), nil
	case []Float2:
		return array(v, func(f Float2) string { return tuple(f[:], formatFloat) }), nil
	case []Float3:
		return array(v, func(f Float3) string { return tuple(f[:], formatFloat) }), nil
	case []Matrix4d:
		return array(v, matrix), nil
	}
	return "", errors.Errorf("unsupported value type %T", v)
}
