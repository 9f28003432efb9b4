package cad

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	apperrors "github.com/facasdxf/complexity-engine/internal/pkg/errors"
)

type token struct {
	code  int
	value string
}

// unsupportedVersions are $ACADVER header values the reader refuses, mostly
// pre-R2000 releases whose group-code layout this reader was never built
// against. internal/worker retries AC1014 once by rewriting the header to
// AC1015 before giving up; the other versions here are not retried.
var unsupportedVersions = map[string]bool{
	"AC1006": true, // R10
	"AC1009": true, // R11/R12
	"AC1012": true, // R13
	"AC1014": true, // R14
}

// insUnitsNames maps the $INSUNITS header code to the unit name
// internal/units.Resolve expects. Codes this reader does not recognize
// resolve to "" (unitless), same as an absent header.
var insUnitsNames = map[int]string{
	0:  "",
	1:  "in",
	2:  "ft",
	3:  "mi",
	4:  "mm",
	5:  "cm",
	6:  "m",
	7:  "km",
	8:  "uin",
	9:  "mil",
	10: "yd",
	12: "nm",
	13: "um",
	14: "dm",
	15: "dam",
	16: "hm",
}

// ParseFile reads and parses the DXF file at path.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.FileMissingError(path)
		}
		return nil, apperrors.InternalError("failed to open CAD file", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads an ASCII DXF stream and builds a Document.
func Parse(r io.Reader) (*Document, error) {
	tokens, err := tokenize(r)
	if err != nil {
		return nil, apperrors.UnsupportedCadError("failed to tokenize CAD stream", err)
	}

	p := &parser{tokens: tokens}
	return p.run()
}

func tokenize(r io.Reader) ([]token, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r\n \t"))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(lines)%2 != 0 {
		// Tolerate a trailing blank line rather than fail outright.
		if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
			lines = lines[:len(lines)-1]
		}
	}

	tokens := make([]token, 0, len(lines)/2)
	for i := 0; i+1 < len(lines); i += 2 {
		code, err := strconv.Atoi(strings.TrimSpace(lines[i]))
		if err != nil {
			return nil, fmt.Errorf("invalid group code %q at line %d", lines[i], i+1)
		}
		tokens = append(tokens, token{code: code, value: strings.TrimSpace(lines[i+1])})
	}
	return tokens, nil
}

type parser struct {
	tokens []token
	pos    int
	doc    Document
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) next() (token, bool) {
	t, ok := p.peek()
	if ok {
		p.pos++
	}
	return t, ok
}

func (p *parser) run() (*Document, error) {
	section := ""
	for {
		t, ok := p.next()
		if !ok {
			break
		}

		switch {
		case t.code == 0 && t.value == "EOF":
			return &p.doc, nil
		case t.code == 0 && t.value == "SECTION":
			section = p.readSectionName()
		case t.code == 0 && t.value == "ENDSEC":
			section = ""
		case section == "HEADER" && t.code == 9:
			if err := p.readHeaderVar(t.value); err != nil {
				return nil, err
			}
		case section == "ENTITIES" && t.code == 0:
			if err := p.readEntity(t.value); err != nil {
				return nil, err
			}
		case section == "BLOCKS" && t.code == 0 && t.value == "BLOCK":
			p.readBlock()
		}
	}
	return &p.doc, nil
}

func (p *parser) readSectionName() string {
	t, ok := p.peek()
	if !ok || t.code != 2 {
		return ""
	}
	p.next()
	return t.value
}

func (p *parser) readHeaderVar(name string) error {
	switch name {
	case "$ACADVER":
		t, ok := p.peek()
		if ok && t.code == 1 {
			p.next()
			if unsupportedVersions[t.value] {
				return apperrors.UnsupportedCadError("unsupported CAD version: "+t.value, nil)
			}
		}
	case "$INSUNITS":
		t, ok := p.peek()
		if ok && t.code == 70 {
			p.next()
			n, err := strconv.Atoi(t.value)
			if err == nil {
				p.doc.DeclaredUnit = insUnitsNames[n]
			}
		}
	}
	return nil
}

// readEntityGroups collects group codes for the current entity up to (but
// not including) the next code-0 token, since code 0 both starts and ends an
// entity's group-code run.
func (p *parser) readEntityGroups() []token {
	var groups []token
	for {
		t, ok := p.peek()
		if !ok || t.code == 0 {
			break
		}
		p.next()
		groups = append(groups, t)
	}
	return groups
}

func findStr(groups []token, code int) (string, bool) {
	for _, g := range groups {
		if g.code == code {
			return g.value, true
		}
	}
	return "", false
}

func findFloat(groups []token, code int) (float64, bool) {
	s, ok := findStr(groups, code)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func findInt(groups []token, code int) (int, bool) {
	s, ok := findStr(groups, code)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

func layerOf(groups []token) string {
	l, _ := findStr(groups, 8)
	return l
}

func (p *parser) readEntity(kind string) error {
	switch kind {
	case "LINE":
		g := p.readEntityGroups()
		x1, _ := findFloat(g, 10)
		y1, _ := findFloat(g, 20)
		z1, _ := findFloat(g, 30)
		x2, _ := findFloat(g, 11)
		y2, _ := findFloat(g, 21)
		z2, _ := findFloat(g, 31)
		p.doc.Lines = append(p.doc.Lines, Line{
			Layer: layerOf(g),
			Start: Point{x1, y1, z1},
			End:   Point{x2, y2, z2},
		})
	case "CIRCLE":
		g := p.readEntityGroups()
		x, _ := findFloat(g, 10)
		y, _ := findFloat(g, 20)
		z, _ := findFloat(g, 30)
		r, _ := findFloat(g, 40)
		p.doc.Circles = append(p.doc.Circles, Circle{
			Layer: layerOf(g), Center: Point{x, y, z}, Radius: r,
		})
	case "ARC":
		g := p.readEntityGroups()
		x, _ := findFloat(g, 10)
		y, _ := findFloat(g, 20)
		z, _ := findFloat(g, 30)
		r, _ := findFloat(g, 40)
		a1, _ := findFloat(g, 50)
		a2, _ := findFloat(g, 51)
		p.doc.Arcs = append(p.doc.Arcs, Arc{
			Layer: layerOf(g), Center: Point{x, y, z}, Radius: r,
			StartAngleDeg: a1, EndAngleDeg: a2,
		})
	case "LWPOLYLINE":
		p.readLWPolyline()
	case "POLYLINE":
		p.readPolyline()
	case "SPLINE":
		p.readSpline()
	case "ELLIPSE":
		g := p.readEntityGroups()
		cx, _ := findFloat(g, 10)
		cy, _ := findFloat(g, 20)
		cz, _ := findFloat(g, 30)
		mx, _ := findFloat(g, 11)
		my, _ := findFloat(g, 21)
		mz, _ := findFloat(g, 31)
		ratio, _ := findFloat(g, 40)
		start, _ := findFloat(g, 41)
		end, _ := findFloat(g, 42)
		p.doc.Ellipses = append(p.doc.Ellipses, Ellipse{
			Layer:             layerOf(g),
			Center:            Point{cx, cy, cz},
			MajorAxisEndpoint: Point{mx, my, mz},
			RatioMinorToMajor: ratio,
			StartParam:        start,
			EndParam:          end,
		})
	case "INSERT":
		p.readInsert()
	case "TEXT":
		g := p.readEntityGroups()
		v, _ := findStr(g, 1)
		p.doc.Texts = append(p.doc.Texts, Text{Layer: layerOf(g), Value: v})
	case "MTEXT":
		p.readMText()
	default:
		// Unhandled entity kinds (DIMENSION, HATCH, LEADER, ...) are
		// skipped: consume their groups and move on.
		p.readEntityGroups()
	}
	return nil
}

// readLWPolyline interprets the repeated (10,20,[42]) group runs a
// LWPOLYLINE carries: a 42 bulge value applies to the vertex immediately
// preceding it.
func (p *parser) readLWPolyline() {
	layer := ""
	closed := false
	var verts []Vertex2D

	for {
		t, ok := p.peek()
		if !ok || t.code == 0 {
			break
		}
		p.next()
		switch t.code {
		case 8:
			layer = t.value
		case 70:
			if n, err := strconv.Atoi(t.value); err == nil {
				closed = n&1 != 0
			}
		case 10:
			x, _ := strconv.ParseFloat(t.value, 64)
			verts = append(verts, Vertex2D{X: x})
		case 20:
			if len(verts) > 0 {
				y, _ := strconv.ParseFloat(t.value, 64)
				verts[len(verts)-1].Y = y
			}
		case 42:
			if len(verts) > 0 {
				b, _ := strconv.ParseFloat(t.value, 64)
				verts[len(verts)-1].Bulge = b
			}
		}
	}

	p.doc.Polylines = append(p.doc.Polylines, Polyline{
		Layer: layer, Vertices: verts, Closed: closed,
	})
}

// readPolyline handles the old-style POLYLINE/VERTEX/SEQEND entity group: a
// POLYLINE header followed by zero or more VERTEX entities, terminated by
// SEQEND. Flag bit 0x8 marks a 3-D polyline; bulge on individual VERTEX
// entities is folded into a 2-D Polyline when the 3-D bit is unset.
func (p *parser) readPolyline() {
	header := p.readEntityGroups()
	layer := layerOf(header)
	flags, _ := findInt(header, 70)
	closed := flags&1 != 0
	is3D := flags&8 != 0

	var verts2D []Vertex2D
	var verts3D []Point

	for {
		t, ok := p.peek()
		if !ok {
			break
		}
		if t.code != 0 {
			// Defensive: shouldn't happen between entities.
			p.next()
			continue
		}
		if t.value == "SEQEND" {
			p.next()
			p.readEntityGroups()
			break
		}
		if t.value != "VERTEX" {
			break
		}
		p.next()
		vg := p.readEntityGroups()
		x, _ := findFloat(vg, 10)
		y, _ := findFloat(vg, 20)
		z, _ := findFloat(vg, 30)
		bulge, _ := findFloat(vg, 42)
		if is3D {
			verts3D = append(verts3D, Point{x, y, z})
		} else {
			verts2D = append(verts2D, Vertex2D{X: x, Y: y, Bulge: bulge})
		}
	}

	if is3D {
		p.doc.Polylines3D = append(p.doc.Polylines3D, Polyline3D{
			Layer: layer, Vertices: verts3D, Closed: closed,
		})
	} else {
		p.doc.Polylines = append(p.doc.Polylines, Polyline{
			Layer: layer, Vertices: verts2D, Closed: closed,
		})
	}
}

func (p *parser) readSpline() {
	layer := ""
	closed := false
	var points []Point
	var cur Point
	haveXY := false

	for {
		t, ok := p.peek()
		if !ok || t.code == 0 {
			break
		}
		p.next()
		switch t.code {
		case 8:
			layer = t.value
		case 70:
			if n, err := strconv.Atoi(t.value); err == nil {
				closed = n&1 != 0
			}
		case 10:
			if haveXY {
				points = append(points, cur)
			}
			cur = Point{}
			x, _ := strconv.ParseFloat(t.value, 64)
			cur.X = x
			haveXY = true
		case 20:
			y, _ := strconv.ParseFloat(t.value, 64)
			cur.Y = y
		case 30:
			z, _ := strconv.ParseFloat(t.value, 64)
			cur.Z = z
		}
	}
	if haveXY {
		points = append(points, cur)
	}

	p.doc.Splines = append(p.doc.Splines, Spline{
		Layer: layer, ControlPoints: points, Closed: closed,
	})
}

func (p *parser) readInsert() {
	header := p.readEntityGroups()
	layer := layerOf(header)
	block, _ := findStr(header, 2)
	x, _ := findFloat(header, 10)
	y, _ := findFloat(header, 20)
	z, _ := findFloat(header, 30)
	hasAttribs, _ := findInt(header, 66)

	insert := Insert{Layer: layer, BlockName: block, Position: Point{x, y, z}}

	if hasAttribs == 1 {
		for {
			t, ok := p.peek()
			if !ok {
				break
			}
			if t.code != 0 {
				p.next()
				continue
			}
			if t.value == "SEQEND" {
				p.next()
				p.readEntityGroups()
				break
			}
			if t.value != "ATTRIB" {
				break
			}
			p.next()
			ag := p.readEntityGroups()
			tag, _ := findStr(ag, 2)
			val, _ := findStr(ag, 1)
			insert.Attributes = append(insert.Attributes, Attribute{Tag: tag, Value: val})
		}
	}

	p.doc.Inserts = append(p.doc.Inserts, insert)
}

// readBlock reads one BLOCK...ENDBLK group: a header carrying the block
// name (group 2) followed by the block's own entities, parsed with the same
// per-kind readers as the ENTITIES section. Entities are captured into a
// scratch Document so readEntity needs no separate block-aware path, then
// moved into a cad.Block keyed by name.
func (p *parser) readBlock() {
	header := p.readEntityGroups()
	name, _ := findStr(header, 2)

	saved := p.doc
	p.doc = Document{}

	for {
		t, ok := p.peek()
		if !ok || (t.code == 0 && t.value == "ENDSEC") {
			break
		}
		p.next()
		if t.code != 0 {
			continue
		}
		if t.value == "ENDBLK" {
			p.readEntityGroups()
			break
		}
		p.readEntity(t.value)
	}

	block := &Block{
		Name:        name,
		Lines:       p.doc.Lines,
		Arcs:        p.doc.Arcs,
		Circles:     p.doc.Circles,
		Polylines:   p.doc.Polylines,
		Polylines3D: p.doc.Polylines3D,
		Splines:     p.doc.Splines,
		Ellipses:    p.doc.Ellipses,
		Inserts:     p.doc.Inserts,
	}
	p.doc = saved
	if name != "" {
		if p.doc.Blocks == nil {
			p.doc.Blocks = make(map[string]*Block)
		}
		p.doc.Blocks[name] = block
	}
}

// readMText concatenates the code-3 continuation strings with the final
// code-1 string, in document order.
func (p *parser) readMText() {
	layer := ""
	var b strings.Builder
	for {
		t, ok := p.peek()
		if !ok || t.code == 0 {
			break
		}
		p.next()
		switch t.code {
		case 8:
			layer = t.value
		case 1, 3:
			b.WriteString(t.value)
		}
	}
	p.doc.Texts = append(p.doc.Texts, Text{Layer: layer, Value: b.String(), IsMText: true})
}
