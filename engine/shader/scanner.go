package shader

import (
	"fmt"
	"strconv"
	"strings"
	"text/scanner"
)

// token is one lexical unit of WGSL source.
type token struct {
	kind rune
	text string
	line int
}

func (t token) is(text string) bool {
	return t.kind == scanner.Ident && t.text == text
}

// typeRef is a parsed WGSL type expression such as f32, vec4<f32> or array<SpringState, 4>.
type typeRef struct {
	name   string
	params []typeRef
	// count is the element count of a fixed-size array, zero when runtime-sized.
	count uint64
}

func (t typeRef) String() string {
	if len(t.params) == 0 {
		return t.name
	}
	parts := make([]string, 0, len(t.params)+1)
	for _, p := range t.params {
		parts = append(parts, p.String())
	}
	if t.count > 0 {
		parts = append(parts, strconv.FormatUint(t.count, 10))
	}
	return t.name + "<" + strings.Join(parts, ", ") + ">"
}

type structField struct {
	name    string
	typ     typeRef
	builtin bool
}

// Binding is a resource variable declared with @group and @binding.
type Binding struct {
	Group int
	Index int
	Name  string
	// Space is the var<> qualifier, e.g. "uniform" or "storage, read_write".
	Space string
	Type  string

	typ typeRef
}

// kernelLayout is everything the scanner extracts from a compute kernel.
type kernelLayout struct {
	entryPoint string
	workgroup  [3]uint32
	structs    map[string][]structField
	bindings   []Binding
}

// attributes collects the attributes seen since the last declaration.
type attributes struct {
	group     int
	binding   int
	compute   bool
	workgroup [3]uint32
}

func noAttributes() attributes {
	return attributes{group: -1, binding: -1, workgroup: [3]uint32{1, 1, 1}}
}

// lex splits WGSL source into tokens, dropping comments.
func lex(source string) ([]token, error) {
	var s scanner.Scanner
	s.Init(strings.NewReader(source))
	s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats | scanner.ScanComments | scanner.SkipComments
	var lexErr error
	s.Error = func(s *scanner.Scanner, msg string) {
		if lexErr == nil {
			lexErr = fmt.Errorf("line %d: %s", s.Position.Line, msg)
		}
	}

	var toks []token
	for r := s.Scan(); r != scanner.EOF; r = s.Scan() {
		text := s.TokenText()
		if r == scanner.Int || r == scanner.Float {
			// literal suffix: 64u, 1i, 0.5f, 1h
			if p := s.Peek(); p == 'u' || p == 'i' || p == 'f' || p == 'h' {
				text += string(s.Next())
			}
		}
		toks = append(toks, token{kind: r, text: text, line: s.Position.Line})
	}
	return toks, lexErr
}

// cursor walks a token slice.
type cursor struct {
	toks []token
	pos  int
}

func (c *cursor) done() bool {
	return c.pos >= len(c.toks)
}

func (c *cursor) peek() token {
	if c.done() {
		return token{kind: scanner.EOF}
	}
	return c.toks[c.pos]
}

func (c *cursor) next() token {
	t := c.peek()
	if !c.done() {
		c.pos++
	}
	return t
}

func (c *cursor) accept(kind rune) bool {
	if c.peek().kind == kind {
		c.pos++
		return true
	}
	return false
}

func (c *cursor) expect(kind rune) error {
	t := c.next()
	if t.kind != kind {
		return fmt.Errorf("line %d: expected %s, found %q", t.line, scanner.TokenString(kind), t.text)
	}
	return nil
}

func (c *cursor) ident() (string, error) {
	t := c.next()
	if t.kind != scanner.Ident {
		return "", fmt.Errorf("line %d: expected identifier, found %q", t.line, t.text)
	}
	return t.text, nil
}

// scanKernel extracts the entry point, workgroup size, struct definitions and resource bindings
// from WGSL compute source. Only module-scope declarations are interpreted; function bodies are skipped
// token by token.
func scanKernel(source string) (*kernelLayout, error) {
	toks, err := lex(source)
	if err != nil {
		return nil, err
	}
	k := &kernelLayout{
		workgroup: [3]uint32{1, 1, 1},
		structs:   make(map[string][]structField),
	}
	c := &cursor{toks: toks}
	attrs := noAttributes()

	for !c.done() {
		t := c.next()
		switch {
		case t.kind == '@':
			if err := c.attribute(&attrs); err != nil {
				return nil, err
			}
		case t.is("struct"):
			name, fields, err := c.structDecl()
			if err != nil {
				return nil, err
			}
			k.structs[name] = fields
			attrs = noAttributes()
		case t.is("var") && attrs.group >= 0:
			if attrs.binding < 0 {
				return nil, fmt.Errorf("line %d: @group without @binding", t.line)
			}
			b, err := c.varDecl(attrs.group, attrs.binding)
			if err != nil {
				return nil, err
			}
			k.bindings = append(k.bindings, b)
			attrs = noAttributes()
		case t.is("fn"):
			name, err := c.ident()
			if err != nil {
				return nil, err
			}
			if attrs.compute && k.entryPoint == "" {
				k.entryPoint = name
				k.workgroup = attrs.workgroup
			}
			attrs = noAttributes()
		case t.kind == scanner.Ident:
			attrs = noAttributes()
		}
	}
	return k, nil
}

// attribute consumes the name and arguments of an attribute whose @ was already read.
func (c *cursor) attribute(attrs *attributes) error {
	name, err := c.ident()
	if err != nil {
		return err
	}
	var args []string
	if c.accept('(') {
		for depth := 1; depth > 0; {
			t := c.next()
			switch t.kind {
			case scanner.EOF:
				return fmt.Errorf("unterminated @%s attribute", name)
			case '(':
				depth++
			case ')':
				depth--
			case ',':
			default:
				if depth == 1 {
					args = append(args, t.text)
				}
			}
		}
	}

	switch name {
	case "group", "binding":
		if len(args) != 1 {
			return fmt.Errorf("@%s takes one argument", name)
		}
		v, err := strconv.Atoi(strings.TrimRight(args[0], "ui"))
		if err != nil {
			return fmt.Errorf("invalid @%s index %q", name, args[0])
		}
		if name == "group" {
			attrs.group = v
		} else {
			attrs.binding = v
		}
	case "compute":
		attrs.compute = true
	case "workgroup_size":
		if len(args) == 0 || len(args) > 3 {
			return fmt.Errorf("@workgroup_size takes one to three dimensions")
		}
		for i, a := range args {
			v, err := strconv.ParseUint(strings.TrimRight(a, "ui"), 10, 32)
			if err != nil || v == 0 {
				return fmt.Errorf("invalid @workgroup_size dimension %q", a)
			}
			attrs.workgroup[i] = uint32(v)
		}
	}
	return nil
}

func (c *cursor) structDecl() (string, []structField, error) {
	name, err := c.ident()
	if err != nil {
		return "", nil, err
	}
	if err := c.expect('{'); err != nil {
		return "", nil, err
	}

	var fields []structField
	for !c.accept('}') {
		if c.done() {
			return "", nil, fmt.Errorf("struct %s is not closed", name)
		}
		var f structField
		for c.accept('@') {
			attrs := noAttributes()
			if c.peek().is("builtin") {
				f.builtin = true
			}
			if err := c.attribute(&attrs); err != nil {
				return "", nil, err
			}
		}
		if f.name, err = c.ident(); err != nil {
			return "", nil, err
		}
		if err := c.expect(':'); err != nil {
			return "", nil, err
		}
		if f.typ, err = c.typeExpr(); err != nil {
			return "", nil, err
		}
		fields = append(fields, f)
		c.accept(',')
	}
	return name, fields, nil
}

// varDecl parses the rest of a resource declaration after the var keyword.
func (c *cursor) varDecl(group, index int) (Binding, error) {
	b := Binding{Group: group, Index: index}
	if c.accept('<') {
		var space []string
		for !c.accept('>') {
			t := c.next()
			switch t.kind {
			case scanner.Ident:
				space = append(space, t.text)
			case ',':
			default:
				return Binding{}, fmt.Errorf("line %d: unexpected %q in address space", t.line, t.text)
			}
		}
		b.Space = strings.Join(space, ", ")
	}

	var err error
	if b.Name, err = c.ident(); err != nil {
		return Binding{}, err
	}
	if err := c.expect(':'); err != nil {
		return Binding{}, err
	}
	if b.typ, err = c.typeExpr(); err != nil {
		return Binding{}, err
	}
	b.Type = b.typ.String()
	return b, c.expect(';')
}

func (c *cursor) typeExpr() (typeRef, error) {
	name, err := c.ident()
	if err != nil {
		return typeRef{}, err
	}
	t := typeRef{name: name}
	if !c.accept('<') {
		return t, nil
	}
	for {
		if p := c.peek(); p.kind == scanner.Int {
			c.next()
			if t.count, err = strconv.ParseUint(strings.TrimRight(p.text, "ui"), 10, 64); err != nil {
				return typeRef{}, fmt.Errorf("line %d: invalid array length %q", p.line, p.text)
			}
		} else {
			param, err := c.typeExpr()
			if err != nil {
				return typeRef{}, err
			}
			t.params = append(t.params, param)
		}
		if c.accept('>') {
			return t, nil
		}
		if err := c.expect(','); err != nil {
			return typeRef{}, err
		}
	}
}
