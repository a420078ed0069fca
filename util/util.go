package util

import (
	"path/filepath"
	"strings"
)

func IsNumber(b byte) bool {
	return b >= '0' && b <= '9'
}

func IsUnderScore(b byte) bool {
	return b == '_'
}

func IsLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func IsLetterOrUnderscoreOrNumber(b byte) bool {
	return IsLetter(b) || IsUnderScore(b) || IsNumber(b)
}

func IsSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == '\v'
}

// IsKnightCodeFile reports whether the file name carries one of the source suffixes.
func IsKnightCodeFile(fileName string) bool {
	ext := strings.ToLower(filepath.Ext(fileName))
	return ext == ".kc" || ext == ".kcc"
}
