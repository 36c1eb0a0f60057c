package likemod

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ParamValue is a typed module parameter value.
//
// Implementations are [Bool], [Int], [Str] and [Array]. The set is closed:
// values are serialized exactly the way the kernel parses them in
// kernel/params.c, so arbitrary implementations are not accepted.
type ParamValue interface {
	// String returns the kernel textual form of the value.
	String() string

	isParamValue()
}

// Bool is a boolean parameter, serialized as "true" or "false".
type Bool bool

// Int is a signed 64-bit integer parameter, serialized in decimal.
type Int int64

// Str is a string parameter, passed to the kernel verbatim.
// No quoting or escaping is applied.
type Str string

// Array is a comma separated list of parameter values.
type Array []ParamValue

func (b Bool) String() string { return strconv.FormatBool(bool(b)) }
func (i Int) String() string  { return strconv.FormatInt(int64(i), 10) }
func (s Str) String() string  { return string(s) }

func (a Array) String() string {
	var b strings.Builder
	for i, v := range a {
		if i > 0 {
			b.WriteByte(',')
		}
		if v != nil {
			b.WriteString(v.String())
		}
	}
	return b.String()
}

func (Bool) isParamValue()  {}
func (Int) isParamValue()   {}
func (Str) isParamValue()   {}
func (Array) isParamValue() {}

// Params maps parameter names to values.
//
// Serialization walks names in sorted order, so the same entries always
// produce the same string regardless of how the map was populated.
type Params map[string]ParamValue

// Set stores v under name and returns p for chaining.
// A nil Params is allocated on first use.
func (p Params) Set(name string, v ParamValue) Params {
	if p == nil {
		p = make(Params)
	}
	p[name] = v
	return p
}

// Names returns the parameter names in serialization order.
func (p Params) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// String returns the parameter string passed to finit_module(2):
// space separated entries, each "name" or "name=value".
// A value that serializes to the empty string yields a bare name.
func (p Params) String() string {
	var b strings.Builder
	for i, name := range p.Names() {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(name)

		var text string
		if v := p[name]; v != nil {
			text = v.String()
		}
		if text != "" {
			b.WriteByte('=')
			b.WriteString(text)
		}
	}
	return b.String()
}

// ParseParam parses a "name=value" or bare "name" assignment as given on
// a modprobe command line. The value is typed with [ParseParamValue].
// A bare name is stored as an empty [Str], which serializes back to the bare name.
func ParseParam(s string) (string, ParamValue, error) {
	name, text, hasValue := strings.Cut(strings.TrimSpace(s), "=")
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil, fmt.Errorf("parse param %q: empty name", s)
	}
	if strings.ContainsAny(name, " \t\n") {
		return "", nil, fmt.Errorf("parse param %q: name contains whitespace", s)
	}
	if !hasValue {
		return name, Str(""), nil
	}
	return name, ParseParamValue(text), nil
}

// ParseParamValue infers the type of a textual value.
//
// Comma separated text becomes an [Array] of recursively parsed elements,
// "true"/"false" become [Bool], canonical decimal integers become [Int] and
// everything else is kept as [Str]. Text such as "010" or "+5" stays a
// [Str]: the kernel reads int parameters with base 0, so "010" is octal.
func ParseParamValue(text string) ParamValue {
	if strings.Contains(text, ",") {
		parts := strings.Split(text, ",")
		arr := make(Array, 0, len(parts))
		for _, part := range parts {
			arr = append(arr, ParseParamValue(part))
		}
		return arr
	}
	switch text {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil && strconv.FormatInt(n, 10) == text {
		return Int(n)
	}
	return Str(text)
}
