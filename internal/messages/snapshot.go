package messages

import (
	"context"

	"go.uber.org/zap"
)

// rebuildSnapshot reshapes a copy of the submission into the response message
// set: base keys propagate into every language, undeclared keys are dropped and
// values are read back from the Store. It must run after the merge committed.
func (s *Service) rebuildSnapshot(ctx context.Context, projectID string, submission Submission) (Submission, error) {
	snapshot := submission.Clone()

	declared := KeyValues{}
	for _, path := range snapshot.SortedPaths() {
		for key, value := range snapshot[path][s.baseLanguage] {
			declared[key] = value
		}
	}

	lookups := map[string]KeyValues{}
	for _, path := range snapshot.SortedPaths() {
		langs := snapshot[path]
		base, hasBase := langs[s.baseLanguage]
		if hasBase {
			base = base.Clone()
		}

		for _, lang := range langs.SortedLanguages() {
			stored, err := s.storedValues(ctx, projectID, lang, lookups)
			if err != nil {
				return nil, err
			}

			entries := langs[lang]
			if entries == nil {
				entries = KeyValues{}
				langs[lang] = entries
			}
			if hasBase {
				for key, value := range base {
					if _, ok := entries[key]; !ok {
						entries[key] = value
					}
				}
			}

			for _, key := range entries.SortedKeys() {
				scope := declared
				if hasBase {
					scope = base
				}
				if _, ok := scope[key]; !ok {
					delete(entries, key)
					continue
				}
				if value, ok := stored[key]; ok {
					entries[key] = value
				}
			}
		}
	}
	return snapshot, nil
}

func (s *Service) storedValues(ctx context.Context, projectID, lang string, lookups map[string]KeyValues) (KeyValues, error) {
	if values, ok := lookups[lang]; ok {
		return values, nil
	}
	records, err := s.store.FindMessages(ctx, MessageFilter{ProjectID: projectID, Langs: []string{lang}})
	if err != nil {
		s.logError(opRebuildSnapshot, "message_select_failed", err,
			zap.String("project_id", projectID), zap.String("lang", lang))
		return nil, newServiceError(opRebuildSnapshot, "message_select_failed", err)
	}
	values := make(KeyValues, len(records))
	for _, record := range records {
		values[record.Key] = record.Value
	}
	lookups[lang] = values
	return values, nil
}
