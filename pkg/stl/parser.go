package stl

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/philipparndt/canalview/pkg/geometry"
)

const (
	binaryHeaderSize   = 80
	binaryTriangleSize = 50
)

// ParseError reports bytes that could not be decoded as STL
type ParseError struct {
	Format string // "ascii" or "binary"
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stl: malformed %s data: %s: %v", e.Format, e.Reason, e.Err)
	}
	return fmt.Sprintf("stl: malformed %s data: %s", e.Format, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Loader parses raw STL bytes. It satisfies the mesh loader used by viewports.
type Loader struct{}

// Parse decodes data into a Model
func (Loader) Parse(data []byte) (*Model, error) {
	return ParseBytes(data)
}

// Supported reports whether a file name has an extension this package can parse
func Supported(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".stl")
}

// Parse reads an STL file and returns a Model
// It automatically detects whether the file is ASCII or binary format
func Parse(filename string) (*Model, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return ParseBytes(data)
}

// ParseBytes decodes an in-memory STL file in either format
func ParseBytes(data []byte) (*Model, error) {
	if isASCII(data) {
		return parseASCII(bytes.NewReader(data))
	}
	return parseBinary(data)
}

// isASCII checks the "solid" keyword. Some binary exporters also start their
// header with "solid", so a size that matches the binary layout wins.
func isASCII(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if !bytes.HasPrefix(trimmed, []byte("solid")) {
		return false
	}
	if len(data) >= binaryHeaderSize+4 {
		count := binary.LittleEndian.Uint32(data[binaryHeaderSize:])
		if int64(len(data)) == binaryHeaderSize+4+int64(count)*binaryTriangleSize {
			return false
		}
	}
	return true
}

// parseASCII parses an ASCII STL file
func parseASCII(reader io.Reader) (*Model, error) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	model := NewModel("")

	var currentNormal geometry.Vector3
	var vertices []geometry.Vector3
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "solid":
			if len(fields) > 1 {
				model.Name = strings.Join(fields[1:], " ")
			}

		case "facet":
			currentNormal = geometry.Vector3{}
			if len(fields) >= 5 && fields[1] == "normal" {
				v, err := parseVector(fields[2:5])
				if err != nil {
					return nil, &ParseError{Format: "ascii", Reason: fmt.Sprintf("line %d: bad normal", lineNo), Err: err}
				}
				if v.IsFinite() {
					currentNormal = v
				}
			}

		case "vertex":
			if len(fields) < 4 {
				return nil, &ParseError{Format: "ascii", Reason: fmt.Sprintf("line %d: vertex needs 3 coordinates", lineNo)}
			}
			v, err := parseVector(fields[1:4])
			if err != nil {
				return nil, &ParseError{Format: "ascii", Reason: fmt.Sprintf("line %d: bad vertex", lineNo), Err: err}
			}
			if !v.IsFinite() {
				return nil, &ParseError{Format: "ascii", Reason: fmt.Sprintf("line %d: vertex is not finite", lineNo)}
			}
			vertices = append(vertices, v)

		case "endfacet":
			if len(vertices) != 3 {
				return nil, &ParseError{Format: "ascii", Reason: fmt.Sprintf("line %d: facet has %d vertices", lineNo, len(vertices))}
			}
			model.AddTriangle(geometry.NewTriangle(currentNormal, vertices[0], vertices[1], vertices[2]))
			vertices = vertices[:0]
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Format: "ascii", Reason: "read failed", Err: err}
	}

	return model, nil
}

func parseVector(fields []string) (geometry.Vector3, error) {
	var c [3]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return geometry.Vector3{}, err
		}
		c[i] = v
	}
	return geometry.NewVector3(c[0], c[1], c[2]), nil
}

// parseBinary parses a binary STL file
func parseBinary(data []byte) (*Model, error) {
	if len(data) < binaryHeaderSize+4 {
		return nil, &ParseError{Format: "binary", Reason: fmt.Sprintf("file too short (%d bytes)", len(data))}
	}

	model := NewModel(strings.TrimSpace(string(bytes.TrimRight(data[:binaryHeaderSize], "\x00"))))

	triangleCount := binary.LittleEndian.Uint32(data[binaryHeaderSize:])
	body := data[binaryHeaderSize+4:]
	if int64(len(body)) < int64(triangleCount)*binaryTriangleSize {
		return nil, &ParseError{
			Format: "binary",
			Reason: fmt.Sprintf("header declares %d triangles but only %d bytes follow", triangleCount, len(body)),
		}
	}

	model.Triangles = make([]geometry.Triangle, 0, triangleCount)
	for i := uint32(0); i < triangleCount; i++ {
		rec := body[int(i)*binaryTriangleSize:]

		// normal, v1, v2, v3; the trailing attribute byte count is ignored
		var vecs [4]geometry.Vector3
		for j := range vecs {
			vecs[j] = readVector(rec[j*12:])
		}
		for _, v := range vecs[1:] {
			if !v.IsFinite() {
				return nil, &ParseError{Format: "binary", Reason: fmt.Sprintf("triangle %d: vertex is not finite", i)}
			}
		}
		if !vecs[0].IsFinite() {
			vecs[0] = geometry.Vector3{}
		}
		model.AddTriangle(geometry.NewTriangle(vecs[0], vecs[1], vecs[2], vecs[3]))
	}

	return model, nil
}

func readVector(b []byte) geometry.Vector3 {
	x := math.Float32frombits(binary.LittleEndian.Uint32(b[0:]))
	y := math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))
	z := math.Float32frombits(binary.LittleEndian.Uint32(b[8:]))
	return geometry.NewVector3(float64(x), float64(y), float64(z))
}
