package messages

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

const (
	// DefaultBaseLanguage is the source locale whose key set decides which messages exist.
	DefaultBaseLanguage = "zh-CN"
	// DefaultMaintainer is recorded when a sync request omits the maintainer.
	DefaultMaintainer = "unknown"
	// DefaultUntranslatedLanguage is listed when an untranslated lookup names no language.
	DefaultUntranslatedLanguage = "en-US"

	maxIdentifierLength = 190
)

var (
	// ErrMissingProjectName indicates that a request did not name a project.
	ErrMissingProjectName = errors.New("messages: project name is required")
	// ErrInvalidProjectName indicates that a project name exceeds storage bounds.
	ErrInvalidProjectName = errors.New("messages: invalid project name")
	// ErrInvalidLanguage indicates that a language identifier is not a valid BCP 47 tag.
	ErrInvalidLanguage = errors.New("messages: invalid language")
	// ErrInvalidSubmission indicates that a submitted message tree is malformed.
	ErrInvalidSubmission = errors.New("messages: invalid submission")
	// ErrMissingBaseLanguage indicates that a submission carries no base-language messages.
	ErrMissingBaseLanguage = errors.New("messages: submission has no base language messages")
	// ErrProjectNotFound indicates that no project matches the lookup.
	ErrProjectNotFound = errors.New("messages: project not found")
	// ErrMessageNotFound indicates that no message matches the lookup.
	ErrMessageNotFound = errors.New("messages: message not found")
	// ErrMissingIdentifier indicates that an operation requires a record identifier.
	ErrMissingIdentifier = errors.New("messages: identifier is required")
	// ErrMissingValue indicates that an edit supplied no value.
	ErrMissingValue = errors.New("messages: value is required")
)

// ProjectName represents a validated project name.
type ProjectName string

// NewProjectName validates raw input and returns a ProjectName.
func NewProjectName(rawInput string) (ProjectName, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", ErrMissingProjectName
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidProjectName, maxIdentifierLength)
	}
	return ProjectName(trimmed), nil
}

// String returns the underlying project name.
func (name ProjectName) String() string {
	return string(name)
}

// ValidateLanguage checks that lang is a well-formed BCP 47 tag. The identifier is
// kept verbatim because stored records are keyed by the exact submitted string.
func ValidateLanguage(lang string) error {
	if strings.TrimSpace(lang) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidLanguage)
	}
	if _, err := language.Parse(lang); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLanguage, lang)
	}
	return nil
}

// ParseLanguageList splits a comma separated language list, dropping blanks.
func ParseLanguageList(raw string) ([]string, error) {
	var langs []string
	for _, segment := range strings.Split(raw, ",") {
		lang := strings.TrimSpace(segment)
		if lang == "" {
			continue
		}
		if err := ValidateLanguage(lang); err != nil {
			return nil, err
		}
		langs = append(langs, lang)
	}
	return langs, nil
}

// Project is a software project whose messages are managed together.
type Project struct {
	ID         string `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	Name       string `gorm:"column:name;size:190;not null;uniqueIndex:idx_projects_name" json:"name"`
	Maintainer string `gorm:"column:maintainer;size:190;not null;default:''" json:"maintainer"`
}

// TableName provides the explicit table binding for GORM.
func (Project) TableName() string {
	return "projects"
}

// Message is one localized value of a key within a project.
type Message struct {
	ID         string   `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	ProjectID  string   `gorm:"column:from_proj;size:190;not null;uniqueIndex:idx_messages_proj_lang_key,priority:1;index:idx_messages_proj_lang,priority:1" json:"from_proj"`
	Lang       string   `gorm:"column:lang;size:64;not null;uniqueIndex:idx_messages_proj_lang_key,priority:2;index:idx_messages_proj_lang,priority:2" json:"lang"`
	Key        string   `gorm:"column:message_key;size:190;not null;uniqueIndex:idx_messages_proj_lang_key,priority:3" json:"key"`
	Value      string   `gorm:"column:value;type:text;not null" json:"value"`
	Translated bool     `gorm:"column:translated;not null;default:false" json:"translated"`
	Editor     []string `gorm:"column:editor;type:text;serializer:json" json:"editor"`
}

// TableName provides the explicit table binding for GORM.
func (Message) TableName() string {
	return "messages"
}

// KeyValues maps message keys to values for one language.
type KeyValues map[string]string

// SortedKeys returns the keys in lexical order.
func (values KeyValues) SortedKeys() []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns an independent copy.
func (values KeyValues) Clone() KeyValues {
	copied := make(KeyValues, len(values))
	for key, value := range values {
		copied[key] = value
	}
	return copied
}

// LanguageMessages maps language identifiers to their key/value sets.
type LanguageMessages map[string]KeyValues

// SortedLanguages returns the languages in lexical order.
func (langs LanguageMessages) SortedLanguages() []string {
	names := make([]string, 0, len(langs))
	for lang := range langs {
		names = append(names, lang)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy.
func (langs LanguageMessages) Clone() LanguageMessages {
	copied := make(LanguageMessages, len(langs))
	for lang, values := range langs {
		copied[lang] = values.Clone()
	}
	return copied
}

// Submission groups pushed messages by source path, then language.
type Submission map[string]LanguageMessages

// SortedPaths returns the source paths in lexical order.
func (submission Submission) SortedPaths() []string {
	paths := make([]string, 0, len(submission))
	for path := range submission {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Clone returns a deep copy so callers never observe mutations of the original.
func (submission Submission) Clone() Submission {
	copied := make(Submission, len(submission))
	for path, langs := range submission {
		copied[path] = langs.Clone()
	}
	return copied
}

// HasLanguage reports whether any path carries messages for lang.
func (submission Submission) HasLanguage(lang string) bool {
	for _, langs := range submission {
		if _, ok := langs[lang]; ok {
			return true
		}
	}
	return false
}

// LanguageMergeResult splits one language's folded messages by translation state.
type LanguageMergeResult struct {
	Messages     KeyValues
	Untranslated KeyValues
}

// PathConflict records a key submitted with different values under the same
// language by two paths. The value from Path replaced the one from PreviousPath.
type PathConflict struct {
	Lang         string `json:"lang"`
	Key          string `json:"key"`
	Path         string `json:"path"`
	PreviousPath string `json:"previous_path"`
}

// SyncRequest describes one push from a source tree.
type SyncRequest struct {
	Name       string
	Maintainer string
	Messages   Submission
}

// SyncResult carries the reconciled message set returned to the caller.
type SyncResult struct {
	Project   Project
	Messages  Submission
	Conflicts []PathConflict
}

// ImportResult summarizes an ImportTranslations call.
type ImportResult struct {
	Project Project
	Applied int
	Skipped []string
}
