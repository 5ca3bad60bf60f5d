package messages

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeSubmission parses a JSON message tree of the form
// {path: {lang: {key: value}}} and validates its shape.
func DecodeSubmission(raw []byte) (Submission, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Submission{}, nil
	}

	var tree map[string]map[string]map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &tree); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}

	submission := make(Submission, len(tree))
	for path, langs := range tree {
		decoded := make(LanguageMessages, len(langs))
		for lang, entries := range langs {
			values := make(KeyValues, len(entries))
			for key, rawValue := range entries {
				var value string
				if err := json.Unmarshal(rawValue, &value); err != nil {
					return nil, fmt.Errorf("%w: %s/%s/%s is not a string", ErrInvalidSubmission, path, lang, key)
				}
				values[key] = value
			}
			decoded[lang] = values
		}
		submission[path] = decoded
	}

	if err := submission.Validate(); err != nil {
		return nil, err
	}
	return submission, nil
}

// Validate checks language identifiers and keys.
func (submission Submission) Validate() error {
	for _, path := range submission.SortedPaths() {
		for _, lang := range submission[path].SortedLanguages() {
			if err := ValidateLanguage(lang); err != nil {
				return fmt.Errorf("%w: path %s: %v", ErrInvalidSubmission, path, err)
			}
			for key := range submission[path][lang] {
				if strings.TrimSpace(key) == "" {
					return fmt.Errorf("%w: path %s: empty key under %s", ErrInvalidSubmission, path, lang)
				}
			}
		}
	}
	return nil
}
