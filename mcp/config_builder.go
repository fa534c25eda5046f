package mcp

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// LookupFunc resolves a variable name; os.LookupEnv is used when nil.
type LookupFunc func(name string) (string, bool)

var refPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandRefs replaces ${NAME} references with their values. Unresolved
// references are left in place so the server sees what was configured.
func ExpandRefs(value string, lookup LookupFunc) string {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return refPattern.ReplaceAllStringFunc(value, func(match string) string {
		name := refPattern.FindStringSubmatch(match)[1]
		if v, ok := lookup(name); ok {
			return v
		}
		return match
	})
}

// SubstituteArgs expands ${NAME} references in every argument.
func SubstituteArgs(args []string, lookup LookupFunc) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = ExpandRefs(arg, lookup)
	}
	return out
}

// ExpandHeaders expands ${NAME} references in header values.
func ExpandHeaders(headers map[string]string, lookup LookupFunc) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[k] = ExpandRefs(v, lookup)
	}
	return out
}

// BuildEnv starts from the current process environment, to preserve PATH
// and other system variables, and appends the server's variables in key
// order so later entries override.
func BuildEnv(envMap map[string]string, lookup LookupFunc) []string {
	env := os.Environ()

	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, ExpandRefs(envMap[k], lookup)))
	}
	return env
}

// SplitArgs splits a command line into arguments. Single and double quotes
// group words; a backslash escapes the next character outside single quotes.
func SplitArgs(line string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	for _, r := range line {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t' || r == '\n':
			if inWord {
				args = append(args, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(r)
			inWord = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote in %q", quote, line)
	}
	if escaped {
		return nil, fmt.Errorf("trailing backslash in %q", line)
	}
	if inWord {
		args = append(args, current.String())
	}
	return args, nil
}
