package parser

import (
	"sort"
	"unicode/utf8"

	"blockext/internal/models"
)

// lineIndex maps byte offsets to zero-based line/character positions.
type lineIndex struct {
	code        []byte
	lineOffsets []int
}

func newLineIndex(code []byte) *lineIndex {
	return &lineIndex{code: code, lineOffsets: buildLineOffsets(code)}
}

func buildLineOffsets(code []byte) []int {
	offsets := []int{0}
	for i, b := range code {
		if b == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

func (x *lineIndex) lineForOffset(offset int) int {
	if offset <= 0 {
		return 0
	}
	idx := sort.Search(len(x.lineOffsets), func(i int) bool {
		return x.lineOffsets[i] > offset
	})
	return idx - 1
}

func (x *lineIndex) position(offset int) models.Position {
	if offset > len(x.code) {
		offset = len(x.code)
	}
	line := x.lineForOffset(offset)
	start := x.lineOffsets[line]
	return models.Position{Line: line, Column: utf8.RuneCount(x.code[start:offset])}
}

func (x *lineIndex) location(startByte, endByte int) models.Location {
	return models.Location{Start: x.position(startByte), End: x.position(endByte)}
}
