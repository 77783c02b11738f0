package model

import (
	"bytes"
	"fmt"
)

// Path represents a file system path.
type Path string

// File is a project file as delivered by the project reader.
// Name is relative to the project root and uses forward slashes.
type File struct {
	Name    string
	Content []byte
	Mutate  bool
}

// Position is a 0-based line/column pair. Columns count bytes.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Location is a half-open range [Start, End) inside a file.
type Location struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Before reports whether p comes strictly before other.
func (p Position) Before(other Position) bool {
	if p.Line != other.Line {
		return p.Line < other.Line
	}

	return p.Column < other.Column
}

// Offset converts the position to a byte offset into content.
func (p Position) Offset(content []byte) (int, error) {
	line := 0
	lineStart := 0

	for i := 0; i < len(content) && line < p.Line; i++ {
		if content[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}

	if line != p.Line {
		return 0, fmt.Errorf("line %d out of range (file has %d lines)", p.Line, line+1)
	}

	lineEnd := len(content)
	if i := bytes.IndexByte(content[lineStart:], '\n'); i >= 0 {
		lineEnd = lineStart + i
	}

	// A column may point at the line break, not past it.
	offset := lineStart + p.Column
	if p.Column < 0 || offset > lineEnd {
		return 0, fmt.Errorf("column %d out of range on line %d (line has %d columns)", p.Column, p.Line, lineEnd-lineStart)
	}

	return offset, nil
}

// Offsets converts the location to byte offsets into content.
func (l Location) Offsets(content []byte) (int, int, error) {
	start, err := l.Start.Offset(content)
	if err != nil {
		return 0, 0, fmt.Errorf("start: %w", err)
	}

	end, err := l.End.Offset(content)
	if err != nil {
		return 0, 0, fmt.Errorf("end: %w", err)
	}

	if end < start {
		return 0, 0, fmt.Errorf("end %d before start %d", end, start)
	}

	return start, end, nil
}

// PositionAt converts a byte offset back into a position.
func PositionAt(content []byte, offset int) Position {
	pos := Position{}

	for i := 0; i < offset && i < len(content); i++ {
		if content[i] == '\n' {
			pos.Line++
			pos.Column = 0

			continue
		}

		pos.Column++
	}

	return pos
}
