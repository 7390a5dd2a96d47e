package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

var reFence = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)```")

// StripFences returns the body of the first markdown code fence, or the
// trimmed text when there is none.
func StripFences(text string) string {
	if m := reFence.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

// ExtractObject decodes the single top-level JSON object in text. Numbers are
// kept as json.Number. Prose around the object may contain brackets or braces;
// a leading array or a second decodable object is rejected.
func ExtractObject(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "[") {
		return nil, errors.New("top-level value is not an object")
	}

	var firstErr error
	for start := 0; ; start++ {
		i := strings.IndexByte(text[start:], '{')
		if i < 0 {
			break
		}
		start += i

		m, n, err := decodeObject(text[start:])
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if hasObject(text[start+n:]) {
			return nil, errors.New("unexpected JSON after the object")
		}
		return m, nil
	}

	if firstErr == nil {
		return nil, errors.New("no JSON object found")
	}
	return nil, fmt.Errorf("invalid JSON: %w", firstErr)
}

// decodeObject reads one JSON object from the start of s and reports how many
// bytes it consumed.
func decodeObject(s string) (map[string]any, int, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, 0, err
	}
	return m, int(dec.InputOffset()), nil
}

// hasObject reports whether any '{' in s starts a well-formed JSON object.
func hasObject(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		if _, _, err := decodeObject(s[i:]); err == nil {
			return true
		}
	}
	return false
}

// dropUnknownKeys removes top-level keys that are not schema fields and
// returns the dropped names, sorted.
func (s *Schema) dropUnknownKeys(m map[string]any) []string {
	var dropped []string
	for k := range m {
		if _, ok := s.index[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k)
		}
	}
	slices.Sort(dropped)
	return dropped
}

// validate checks m against the compiled JSON schema.
func (s *Schema) validate(m map[string]any) error {
	if err := s.compiled.Validate(m); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

func reencode(m map[string]any, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(m); err != nil {
		return err
	}
	return json.Unmarshal(buf.Bytes(), out)
}
