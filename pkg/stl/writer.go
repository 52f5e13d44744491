package stl

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/philipparndt/canalview/pkg/geometry"
)

// WriteBinary encodes the model in binary STL format
func WriteBinary(w io.Writer, m *Model) error {
	header := make([]byte, binaryHeaderSize)
	copy(header, m.Name)
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(m.Triangles))); err != nil {
		return fmt.Errorf("failed to write triangle count: %w", err)
	}

	rec := make([]byte, binaryTriangleSize)
	for i, tri := range m.Triangles {
		for j, v := range [4]geometry.Vector3{tri.Normal, tri.V1, tri.V2, tri.V3} {
			putVector(rec[j*12:], v)
		}
		if _, err := w.Write(rec); err != nil {
			return fmt.Errorf("failed to write triangle %d: %w", i, err)
		}
	}
	return nil
}

// EncodeBinary returns the binary STL encoding of the model
func EncodeBinary(m *Model) []byte {
	var buf bytes.Buffer
	// bytes.Buffer writes never fail
	_ = WriteBinary(&buf, m)
	return buf.Bytes()
}

// WriteASCII encodes the model in ASCII STL format
func WriteASCII(w io.Writer, m *Model) error {
	if _, err := fmt.Fprintf(w, "solid %s\n", m.Name); err != nil {
		return err
	}
	for _, tri := range m.Triangles {
		n := tri.Normal
		fmt.Fprintf(w, "  facet normal %g %g %g\n    outer loop\n", n.X, n.Y, n.Z)
		for _, v := range tri.Vertices() {
			fmt.Fprintf(w, "      vertex %g %g %g\n", v.X, v.Y, v.Z)
		}
		fmt.Fprintf(w, "    endloop\n  endfacet\n")
	}
	_, err := fmt.Fprintf(w, "endsolid %s\n", m.Name)
	return err
}

func putVector(b []byte, v geometry.Vector3) {
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(float32(v.X)))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(float32(v.Y)))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(float32(v.Z)))
}

// Box returns a closed axis-aligned box made of 12 triangles with outward
// winding and zero facet normals, as many exporters write them.
func Box(name string, min, max geometry.Vector3) *Model {
	c := [8]geometry.Vector3{
		{X: min.X, Y: min.Y, Z: min.Z}, {X: max.X, Y: min.Y, Z: min.Z},
		{X: max.X, Y: max.Y, Z: min.Z}, {X: min.X, Y: max.Y, Z: min.Z},
		{X: min.X, Y: min.Y, Z: max.Z}, {X: max.X, Y: min.Y, Z: max.Z},
		{X: max.X, Y: max.Y, Z: max.Z}, {X: min.X, Y: max.Y, Z: max.Z},
	}
	faces := [12][3]int{
		{0, 2, 1}, {0, 3, 2}, // bottom
		{4, 5, 6}, {4, 6, 7}, // top
		{0, 1, 5}, {0, 5, 4}, // front
		{2, 3, 7}, {2, 7, 6}, // back
		{1, 2, 6}, {1, 6, 5}, // right
		{0, 4, 7}, {0, 7, 3}, // left
	}

	m := NewModel(name)
	for _, f := range faces {
		m.AddTriangle(geometry.NewTriangle(geometry.Vector3{}, c[f[0]], c[f[1]], c[f[2]]))
	}
	return m
}
