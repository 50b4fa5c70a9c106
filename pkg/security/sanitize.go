package security

import (
	"path"
	"regexp"
	"strings"
	"unicode"
)

// MaxFilenameLength bounds stored original file names.
const MaxFilenameLength = 255

var (
	invalidFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._\-]`)
	whitespaceRegex      = regexp.MustCompile(`[ \t]+`)
)

// SanitizeFilename reduces an uploaded file name to a safe base name. Path
// components are dropped and anything outside [a-zA-Z0-9._-] becomes "_".
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = path.Base(strings.TrimSpace(filename))
	if filename == "." || filename == "/" {
		return ""
	}
	filename = strings.ReplaceAll(filename, "..", "")
	filename = invalidFilenameChars.ReplaceAllString(filename, "_")
	return TruncateString(filename, MaxFilenameLength)
}

// SanitizeText cleans free text such as review remarks: control characters
// other than newlines are removed, runs of spaces collapse, and the result is
// trimmed and cut to maxLength runes when maxLength is positive.
func SanitizeText(input string, maxLength int) string {
	input = strings.ReplaceAll(input, "\x00", "")
	input = removeControlCharacters(input)
	input = whitespaceRegex.ReplaceAllString(input, " ")
	input = strings.TrimSpace(input)
	if maxLength > 0 {
		input = TruncateString(input, maxLength)
	}
	return input
}

// TruncateString cuts input to at most maxLength runes.
func TruncateString(input string, maxLength int) string {
	runes := []rune(input)
	if len(runes) <= maxLength {
		return input
	}
	return string(runes[:maxLength])
}

func removeControlCharacters(input string) string {
	var result strings.Builder
	for _, r := range input {
		if unicode.IsPrint(r) || r == '\n' {
			result.WriteRune(r)
		} else if r == '\t' {
			result.WriteRune(' ')
		}
	}
	return result.String()
}
