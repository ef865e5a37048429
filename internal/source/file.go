// Package source tracks the text inputs a strict decode reads from, so that
// diagnostics can point at a line and column.
package source

import (
	"fmt"

	"fortio.org/safecast"
)

type (
	// FileID identifies a file within a FileSet.
	FileID uint32
	// FileFlags records how the content was obtained.
	FileFlags uint8
)

// NoFileID marks spans that do not point into any file.
const NoFileID FileID = 0

const (
	// FileVirtual marks content added from memory (stdin, tests).
	FileVirtual FileFlags = 1 << iota
	FileHadBOM
	FileNormalizedCRLF
)

// File is a loaded input with its newline index.
type File struct {
	ID      FileID
	Path    string
	Content []byte
	LineIdx []uint32 // offsets of '\n'
	Hash    [32]byte
	Flags   FileFlags
}

// LineCol is a 1-based position.
type LineCol struct {
	Line uint32
	Col  uint32
}

func (lc LineCol) String() string {
	return fmt.Sprintf("%d:%d", lc.Line, lc.Col)
}

// LineCount reports the number of lines, counting an unterminated tail.
func (f *File) LineCount() int {
	n := len(f.LineIdx)
	if len(f.Content) > 0 && (n == 0 || int(f.LineIdx[n-1]) != len(f.Content)-1) {
		n++
	}
	return n
}

// GetLine returns line lineNum (1-based) without its newline, or "".
func (f *File) GetLine(lineNum uint32) string {
	start, end, ok := f.lineBounds(lineNum)
	if !ok {
		return ""
	}
	return string(f.Content[start:end])
}

// LineSpan returns the span covering line lineNum without its newline.
func (f *File) LineSpan(lineNum uint32) Span {
	start, end, _ := f.lineBounds(lineNum)
	return Span{File: f.ID, Start: start, End: end}
}

func (f *File) lineBounds(lineNum uint32) (start, end uint32, ok bool) {
	if lineNum == 0 {
		return 0, 0, false
	}
	lenLineIdx, err := safecast.Conv[uint32](len(f.LineIdx))
	if err != nil {
		panic(fmt.Errorf("line index length overflow: %w", err))
	}
	lenContent, err := safecast.Conv[uint32](len(f.Content))
	if err != nil {
		panic(fmt.Errorf("content length overflow: %w", err))
	}
	switch {
	case lineNum == 1:
		start = 0
	case lineNum-2 < lenLineIdx:
		start = f.LineIdx[lineNum-2] + 1
	default:
		return 0, 0, false
	}
	if lineNum-1 < lenLineIdx {
		end = f.LineIdx[lineNum-1]
	} else {
		end = lenContent
	}
	if start > lenContent {
		return 0, 0, false
	}
	return start, end, true
}
