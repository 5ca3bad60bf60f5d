package messages

import (
	"errors"
	"strings"
	"testing"
)

func TestNewProjectName(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "trimmed", input: "  storefront  ", want: "storefront"},
		{name: "empty", input: "   ", wantErr: ErrMissingProjectName},
		{name: "too-long", input: strings.Repeat("a", maxIdentifierLength+1), wantErr: ErrInvalidProjectName},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			name, err := NewProjectName(testCase.input)
			if testCase.wantErr != nil {
				if !errors.Is(err, testCase.wantErr) {
					t.Fatalf("expected %v, got %v", testCase.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if name.String() != testCase.want {
				t.Fatalf("expected %q, got %q", testCase.want, name)
			}
		})
	}
}

func TestValidateLanguage(t *testing.T) {
	for _, lang := range []string{"zh-CN", "en-US", "ja", "pt-BR", "zh-Hant-TW"} {
		if err := ValidateLanguage(lang); err != nil {
			t.Fatalf("expected %s to be valid, got %v", lang, err)
		}
	}
	for _, lang := range []string{"", "  ", "not a language", "averyverylongtag"} {
		if err := ValidateLanguage(lang); !errors.Is(err, ErrInvalidLanguage) {
			t.Fatalf("expected %q to be rejected, got %v", lang, err)
		}
	}
}

func TestParseLanguageList(t *testing.T) {
	langs, err := ParseLanguageList(" en-US, ,ja-JP,")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(langs) != 2 || langs[0] != "en-US" || langs[1] != "ja-JP" {
		t.Fatalf("unexpected languages: %v", langs)
	}

	empty, err := ParseLanguageList("")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected no languages, got %v (%v)", empty, err)
	}

	if _, err := ParseLanguageList("en-US,bad lang"); !errors.Is(err, ErrInvalidLanguage) {
		t.Fatalf("expected invalid language error, got %v", err)
	}
}

func TestSubmissionCloneIsIndependent(t *testing.T) {
	original := Submission{
		"src/app.js": {"zh-CN": {"hello": "你好"}},
	}
	copied := original.Clone()
	copied["src/app.js"]["zh-CN"]["hello"] = "changed"
	copied["src/app.js"]["en-US"] = KeyValues{"hello": "Hello"}
	copied["src/other.js"] = LanguageMessages{}

	if original["src/app.js"]["zh-CN"]["hello"] != "你好" {
		t.Fatalf("expected original value to be untouched")
	}
	if _, ok := original["src/app.js"]["en-US"]; ok {
		t.Fatalf("expected original languages to be untouched")
	}
	if len(original) != 1 {
		t.Fatalf("expected original paths to be untouched")
	}
}

func TestSubmissionHasLanguage(t *testing.T) {
	submission := Submission{
		"a.js": {"en-US": {"hello": "Hello"}},
		"b.js": {"zh-CN": {}},
	}
	if !submission.HasLanguage("zh-CN") {
		t.Fatalf("expected zh-CN to be present")
	}
	if submission.HasLanguage("ja-JP") {
		t.Fatalf("expected ja-JP to be absent")
	}
}
