// Package dotenv reads and splices KEY=VALUE files in the format godotenv
// understands.
package dotenv

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// plainValue matches values that need no quoting in a dotenv file.
var plainValue = regexp.MustCompile(`^[A-Za-z0-9_\-.:/+=@,]*$`)

// Parse decodes dotenv content.
func Parse(data []byte) (map[string]string, error) {
	env, err := godotenv.UnmarshalBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse env content: %w", err)
	}
	return env, nil
}

// Splice returns data with every assignment of key replaced by key=value.
// Comments, blank lines, ordering and line endings of other lines are
// preserved. If key is not assigned anywhere the assignment is appended.
func Splice(data []byte, key, value string) ([]byte, error) {
	if !keyPattern.MatchString(key) {
		return nil, fmt.Errorf("invalid key %q", key)
	}
	formatted, err := formatValue(value)
	if err != nil {
		return nil, err
	}
	assignment := key + "=" + formatted

	if len(data) == 0 {
		return []byte(assignment + "\n"), nil
	}

	lines := bytes.SplitAfter(data, []byte("\n"))
	replaced := false
	for i, line := range lines {
		content, ending := splitLineEnding(line)
		prefix, ok := assignmentPrefix(content, key)
		if !ok {
			continue
		}
		lines[i] = append([]byte(prefix+assignment), ending...)
		replaced = true
	}

	out := bytes.Join(lines, nil)
	if replaced {
		return out, nil
	}

	if !bytes.HasSuffix(out, []byte("\n")) {
		out = append(out, detectNewline(data)...)
	}
	out = append(out, assignment...)
	out = append(out, detectNewline(data)...)
	return out, nil
}

// assignmentPrefix reports whether line assigns key, returning the leading
// whitespace and optional "export " to keep.
func assignmentPrefix(line []byte, key string) (string, bool) {
	s := string(line)
	trimmed := strings.TrimLeft(s, " \t")
	indent := s[:len(s)-len(trimmed)]

	if rest, ok := strings.CutPrefix(trimmed, "export "); ok {
		indent += "export "
		trimmed = strings.TrimLeft(rest, " \t")
	}

	rest, ok := strings.CutPrefix(trimmed, key)
	if !ok {
		return "", false
	}
	rest = strings.TrimLeft(rest, " \t")
	if !strings.HasPrefix(rest, "=") && !strings.HasPrefix(rest, ":") {
		return "", false
	}
	return indent, true
}

func splitLineEnding(line []byte) ([]byte, []byte) {
	switch {
	case bytes.HasSuffix(line, []byte("\r\n")):
		return line[:len(line)-2], []byte("\r\n")
	case bytes.HasSuffix(line, []byte("\n")):
		return line[:len(line)-1], []byte("\n")
	default:
		return line, nil
	}
}

func detectNewline(data []byte) []byte {
	if bytes.Contains(data, []byte("\r\n")) {
		return []byte("\r\n")
	}
	return []byte("\n")
}

// formatValue quotes value so that godotenv reads it back unchanged.
func formatValue(value string) (string, error) {
	if plainValue.MatchString(value) {
		return value, nil
	}
	if strings.ContainsAny(value, "\r\n") {
		return "", fmt.Errorf("multi-line values are not supported")
	}
	if !strings.Contains(value, "'") && !strings.HasSuffix(value, `\`) {
		return "'" + value + "'", nil
	}
	return "", fmt.Errorf("value cannot be stored literally in a dotenv file")
}
