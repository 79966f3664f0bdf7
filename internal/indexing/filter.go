package indexing

import (
	"bytes"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// SkipReason says why a file was not packed.
type SkipReason string

const (
	SkipNone     SkipReason = ""
	SkipExcluded SkipReason = "excluded"
	SkipNotIncl  SkipReason = "not_included"
	SkipBinary   SkipReason = "binary"
)

// binaryExtensions lists formats whose content is never span-indexed.
var binaryExtensions = map[string]bool{
	".woff": true, ".woff2": true, ".ttf": true, ".otf": true, ".eot": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".ico": true, ".webp": true, ".tiff": true, ".tif": true,
	".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".xz": true,
	".7z": true, ".rar": true, ".jar": true, ".nupkg": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".a": true,
	".o": true, ".obj": true, ".bin": true, ".pdb": true,
	".mp3": true, ".mp4": true, ".wav": true, ".ogg": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".db": true, ".sqlite": true, ".sqlite3": true,
	".pyc": true, ".class": true,
}

// binaryMagic holds file signatures checked against the start of content.
var binaryMagic = [][]byte{
	{0x1F, 0x8B},             // gzip
	{0x50, 0x4B, 0x03, 0x04}, // zip
	{0x89, 0x50, 0x4E, 0x47}, // png
	{0xFF, 0xD8, 0xFF},       // jpeg
	{0x47, 0x49, 0x46, 0x38}, // gif
	{0x25, 0x50, 0x44, 0x46}, // pdf
	{0x7F, 0x45, 0x4C, 0x46}, // elf
	{0x4D, 0x5A},             // pe
	{0xCA, 0xFE, 0xBA, 0xBE}, // mach-o
}

// PathFilter decides which files an upload packs. Paths are matched in
// slash form against doublestar include and exclude patterns.
type PathFilter struct {
	include []string
	exclude []string
}

// NewPathFilter builds a filter. Invalid patterns never match.
func NewPathFilter(include, exclude []string) *PathFilter {
	return &PathFilter{include: include, exclude: exclude}
}

// Check returns why the file should be skipped, or SkipNone.
func (f *PathFilter) Check(filePath, content string) SkipReason {
	p := strings.ReplaceAll(filePath, "\\", "/")
	if f.excluded(p) {
		return SkipExcluded
	}
	if !f.included(p) {
		return SkipNotIncl
	}
	if isBinary(p, content) {
		return SkipBinary
	}
	return SkipNone
}

func (f *PathFilter) excluded(p string) bool {
	for _, pattern := range f.exclude {
		if matched, err := doublestar.Match(pattern, p); err == nil && matched {
			return true
		}
	}
	return false
}

func (f *PathFilter) included(p string) bool {
	if len(f.include) == 0 {
		return true
	}
	for _, pattern := range f.include {
		if matched, err := doublestar.Match(pattern, p); err == nil && matched {
			return true
		}
	}
	return false
}

// isBinary checks the extension first, then the first 512 bytes of content
// for a known signature or a run of control bytes.
func isBinary(p, content string) bool {
	if binaryExtensions[strings.ToLower(path.Ext(p))] {
		return true
	}
	if content == "" {
		return false
	}

	sample := []byte(content[:min(len(content), 512)])
	for _, magic := range binaryMagic {
		if bytes.HasPrefix(sample, magic) {
			return true
		}
	}

	nulls, control := 0, 0
	for _, b := range sample {
		if b == 0 {
			nulls++
		}
		if b < 0x20 && b != '\t' && b != '\n' && b != '\r' {
			control++
		}
	}
	// more than 1% NULs or 30% control bytes
	return nulls > len(sample)/100 || control > len(sample)*30/100
}
