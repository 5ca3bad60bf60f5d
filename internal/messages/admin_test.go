package messages

import (
	"context"
	"errors"
	"testing"
)

func seedStorefront(t *testing.T, service *Service) SyncResult {
	t.Helper()
	return mustSync(t, service, "storefront", Submission{
		"src/app.js": {
			"zh-CN": {"hello": "你好", "bye": "再见"},
			"en-US": {"hello": "Hello", "bye": "再见"},
			"ja-JP": {"hello": "你好", "bye": "再见"},
		},
	})
}

func TestListProjectsOrdersByName(t *testing.T) {
	service, _ := newTestService(t)
	mustSync(t, service, "zeta", Submission{})
	mustSync(t, service, "alpha", Submission{})

	projects, err := service.ListProjects(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(projects) != 2 || projects[0].Name != "alpha" || projects[1].Name != "zeta" {
		t.Fatalf("unexpected projects: %#v", projects)
	}
}

func TestDeleteProjectRemovesMessages(t *testing.T) {
	service, db := newTestService(t)
	seeded := seedStorefront(t, service)
	mustSync(t, service, "backoffice", Submission{"src/app.js": {"zh-CN": {"hello": "你好"}}})

	if err := service.DeleteProject(context.Background(), seeded.Project.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var remaining []Message
	if err := db.Find(&remaining).Error; err != nil {
		t.Fatalf("failed to load messages: %v", err)
	}
	for _, record := range remaining {
		if record.ProjectID == seeded.Project.ID {
			t.Fatalf("expected project messages to be removed, found %#v", record)
		}
	}
	if len(remaining) != 1 {
		t.Fatalf("expected other project messages to remain, got %d", len(remaining))
	}

	err := service.DeleteProject(context.Background(), seeded.Project.ID)
	if !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("expected project not found, got %v", err)
	}
	if err := service.DeleteProject(context.Background(), " "); !errors.Is(err, ErrMissingIdentifier) {
		t.Fatalf("expected missing identifier, got %v", err)
	}
}

func TestClearProjectMessagesKeepsProject(t *testing.T) {
	service, db := newTestService(t)
	seeded := seedStorefront(t, service)

	if err := service.ClearProjectMessages(context.Background(), seeded.Project.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(storedMessages(t, db, "storefront")) != 0 {
		t.Fatalf("expected no messages after clear")
	}
	projects, err := service.ListProjects(context.Background())
	if err != nil || len(projects) != 1 {
		t.Fatalf("expected project to remain, got %#v (%v)", projects, err)
	}
}

func TestListMessagesDefaultsToBaseLanguage(t *testing.T) {
	service, _ := newTestService(t)
	seeded := seedStorefront(t, service)
	mustSync(t, service, "backoffice", Submission{"src/app.js": {"zh-CN": {"menu": "菜单"}}})

	all, err := service.ListMessages(context.Background(), "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected base messages of every project, got %#v", all)
	}
	for _, record := range all {
		if record.Lang != DefaultBaseLanguage {
			t.Fatalf("expected base language records, got %#v", record)
		}
	}

	scoped, err := service.ListMessages(context.Background(), "en-US", seeded.Project.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scoped) != 2 || scoped[0].Key != "bye" || scoped[1].Key != "hello" {
		t.Fatalf("unexpected scoped messages: %#v", scoped)
	}

	if _, err := service.ListMessages(context.Background(), "bad lang", ""); !errors.Is(err, ErrInvalidLanguage) {
		t.Fatalf("expected invalid language, got %v", err)
	}
}

func TestFindProjectMessages(t *testing.T) {
	service, _ := newTestService(t)
	seedStorefront(t, service)
	name := mustProjectName(t, "storefront")

	all, err := service.FindProjectMessages(context.Background(), name, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 6 {
		t.Fatalf("expected every message, got %d", len(all))
	}

	filtered, err := service.FindProjectMessages(context.Background(), name, []string{"ja-JP", "en-US"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(filtered) != 4 {
		t.Fatalf("expected two languages of messages, got %d", len(filtered))
	}

	_, err = service.FindProjectMessages(context.Background(), mustProjectName(t, "missing"), nil)
	if !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("expected project not found, got %v", err)
	}
}

func TestListUntranslated(t *testing.T) {
	service, _ := newTestService(t)
	seedStorefront(t, service)
	name := mustProjectName(t, "storefront")

	english, err := service.ListUntranslated(context.Background(), name, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(english) != 1 || english[0].Key != "bye" || english[0].Lang != DefaultUntranslatedLanguage {
		t.Fatalf("unexpected untranslated messages: %#v", english)
	}

	japanese, err := service.ListUntranslated(context.Background(), name, []string{"ja-JP"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(japanese) != 2 {
		t.Fatalf("expected both ja-JP placeholders, got %#v", japanese)
	}
}

func TestEditMessageConfirmsTranslation(t *testing.T) {
	service, db := newTestService(t)
	seedStorefront(t, service)
	placeholder := storedMessages(t, db, "storefront")["en-US"]["bye"]

	edited, err := service.EditMessage(context.Background(), placeholder.ID, "Goodbye", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if edited.Value != "Goodbye" || !edited.Translated {
		t.Fatalf("unexpected edited message: %#v", edited)
	}
	if _, err := service.EditMessage(context.Background(), placeholder.ID, "Bye!", "bob"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := storedMessages(t, db, "storefront")["en-US"]["bye"]
	if stored.Value != "Bye!" || !stored.Translated {
		t.Fatalf("unexpected stored message: %#v", stored)
	}
	if len(stored.Editor) != 2 || stored.Editor[0] != "alice" || stored.Editor[1] != "bob" {
		t.Fatalf("expected editors to accumulate, got %#v", stored.Editor)
	}

	seedStorefront(t, service)
	resynced := storedMessages(t, db, "storefront")["en-US"]["bye"]
	if resynced.Value != "Bye!" || !resynced.Translated {
		t.Fatalf("expected edited translation to survive a placeholder sync, got %#v", resynced)
	}
}

func TestEditMessageValidation(t *testing.T) {
	service, _ := newTestService(t)
	testCases := []struct {
		name    string
		id      string
		value   string
		wantErr error
	}{
		{name: "missing-id", id: "", value: "x", wantErr: ErrMissingIdentifier},
		{name: "missing-value", id: "m-1", value: "", wantErr: ErrMissingValue},
		{name: "unknown-id", id: "m-1", value: "x", wantErr: ErrMessageNotFound},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := service.EditMessage(context.Background(), testCase.id, testCase.value, "")
			if !errors.Is(err, testCase.wantErr) {
				t.Fatalf("expected %v, got %v", testCase.wantErr, err)
			}
		})
	}
}

func TestDeleteMessages(t *testing.T) {
	service, db := newTestService(t)
	seedStorefront(t, service)
	stored := storedMessages(t, db, "storefront")

	ids := []string{stored["en-US"]["hello"].ID, " ", stored["ja-JP"]["bye"].ID}
	removed, err := service.DeleteMessages(context.Background(), ids)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(removed) != 2 || removed[0].Key != "hello" || removed[1].Key != "bye" {
		t.Fatalf("unexpected removed records: %#v", removed)
	}

	remaining := storedMessages(t, db, "storefront")
	if _, ok := remaining["en-US"]["hello"]; ok {
		t.Fatalf("expected en-US hello to be deleted")
	}
	if _, ok := remaining["ja-JP"]["bye"]; ok {
		t.Fatalf("expected ja-JP bye to be deleted")
	}
	if _, ok := remaining["zh-CN"]["hello"]; !ok {
		t.Fatalf("expected other messages to remain")
	}

	if _, err := service.DeleteMessages(context.Background(), []string{"", " "}); !errors.Is(err, ErrMissingIdentifier) {
		t.Fatalf("expected missing identifier, got %v", err)
	}
}

func TestImportTranslationsSkipsUndeclaredKeys(t *testing.T) {
	service, db := newTestService(t)
	seedStorefront(t, service)

	result, err := service.ImportTranslations(context.Background(), ImportRequest{
		ProjectName: "storefront",
		Lang:        "ja-JP",
		Messages:    KeyValues{"hello": "こんにちは", "unknown": "不明"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Applied != 1 || len(result.Skipped) != 1 || result.Skipped[0] != "unknown" {
		t.Fatalf("unexpected import result: %#v", result)
	}

	japanese := storedMessages(t, db, "storefront")["ja-JP"]
	if record := japanese["hello"]; record.Value != "こんにちは" || !record.Translated {
		t.Fatalf("unexpected imported record: %#v", record)
	}
	if _, ok := japanese["unknown"]; ok {
		t.Fatalf("expected undeclared key to be skipped")
	}
	if record := japanese["bye"]; record.Translated {
		t.Fatalf("expected untouched placeholder to remain, got %#v", record)
	}
}

func TestImportTranslationsByProjectID(t *testing.T) {
	service, db := newTestService(t)
	seeded := seedStorefront(t, service)

	result, err := service.ImportTranslations(context.Background(), ImportRequest{
		ProjectID: seeded.Project.ID,
		Lang:      "fr-FR",
		Messages:  KeyValues{"bye": "Au revoir"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Project.ID != seeded.Project.ID || result.Applied != 1 {
		t.Fatalf("unexpected import result: %#v", result)
	}
	if storedMessages(t, db, "storefront")["fr-FR"]["bye"].Value != "Au revoir" {
		t.Fatalf("expected imported fr-FR message")
	}
}

func TestImportTranslationsValidation(t *testing.T) {
	service, _ := newTestService(t)
	testCases := []struct {
		name    string
		request ImportRequest
		wantErr error
	}{
		{name: "invalid-language", request: ImportRequest{ProjectName: "storefront", Lang: "bad lang"}, wantErr: ErrInvalidLanguage},
		{name: "missing-project", request: ImportRequest{Lang: "en-US"}, wantErr: ErrMissingIdentifier},
		{name: "unknown-project", request: ImportRequest{ProjectName: "ghost", Lang: "en-US"}, wantErr: ErrProjectNotFound},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := service.ImportTranslations(context.Background(), testCase.request)
			if !errors.Is(err, testCase.wantErr) {
				t.Fatalf("expected %v, got %v", testCase.wantErr, err)
			}
		})
	}
}
