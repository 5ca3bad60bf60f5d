package messages

import (
	"context"

	"go.uber.org/zap"
)

// foldSubmission merges every path's language maps into one map per language.
// Paths are applied in lexical order, so the lexically last path wins a duplicate
// key; duplicates with differing values are reported as conflicts.
func foldSubmission(submission Submission) (LanguageMessages, []PathConflict) {
	folded := LanguageMessages{}
	origins := map[string]map[string]string{}
	var conflicts []PathConflict

	for _, path := range submission.SortedPaths() {
		langs := submission[path]
		for _, lang := range langs.SortedLanguages() {
			target, ok := folded[lang]
			if !ok {
				target = KeyValues{}
				folded[lang] = target
				origins[lang] = map[string]string{}
			}
			entries := langs[lang]
			for _, key := range entries.SortedKeys() {
				value := entries[key]
				if previous, seen := target[key]; seen && previous != value {
					conflicts = append(conflicts, PathConflict{
						Lang:         lang,
						Key:          key,
						Path:         path,
						PreviousPath: origins[lang][key],
					})
				}
				target[key] = value
				origins[lang][key] = path
			}
		}
	}
	return folded, conflicts
}

// classifyLanguage splits a non-base language into translated and untranslated
// entries. A value equal to the base value is a placeholder unless confirmed
// holds a translation for the key, in which case the confirmed value is kept.
// Keys the base language does not declare are dropped.
func classifyLanguage(entries, base KeyValues, confirmed KeyValues) LanguageMergeResult {
	result := LanguageMergeResult{Messages: KeyValues{}, Untranslated: KeyValues{}}
	for key, value := range entries {
		baseValue, declared := base[key]
		if !declared {
			continue
		}
		if value != baseValue {
			result.Messages[key] = value
			continue
		}
		if confirmedValue, ok := confirmed[key]; ok {
			result.Messages[key] = confirmedValue
			continue
		}
		result.Untranslated[key] = value
	}
	return result
}

// mergeSubmission folds, classifies and persists a submission for one project,
// then removes stored keys the base language no longer declares.
func (s *Service) mergeSubmission(ctx context.Context, projectID string, submission Submission) ([]PathConflict, error) {
	if len(submission) == 0 {
		return nil, nil
	}

	folded, conflicts := foldSubmission(submission)
	for _, conflict := range conflicts {
		s.logger.Warn("conflicting message values across paths",
			zap.String("project_id", projectID),
			zap.String("lang", conflict.Lang),
			zap.String("key", conflict.Key),
			zap.String("path", conflict.Path),
			zap.String("previous_path", conflict.PreviousPath))
	}

	base := folded[s.baseLanguage]
	for _, lang := range folded.SortedLanguages() {
		var result LanguageMergeResult
		if lang == s.baseLanguage {
			result = LanguageMergeResult{Messages: base.Clone(), Untranslated: KeyValues{}}
		} else {
			confirmed, err := s.confirmedTranslations(ctx, projectID, lang)
			if err != nil {
				s.logError(opMergeSubmission, "confirmed_select_failed", err,
					zap.String("project_id", projectID), zap.String("lang", lang))
				return nil, newServiceError(opMergeSubmission, "confirmed_select_failed", err)
			}
			result = classifyLanguage(folded[lang], base, confirmed)
		}

		if err := s.writeLanguageDiff(ctx, projectID, lang, result); err != nil {
			return nil, err
		}
	}

	if err := s.pruneUndeclaredKeys(ctx, projectID, base); err != nil {
		return nil, err
	}
	return conflicts, nil
}

// confirmedTranslations returns the confirmed values for lang. The project's own
// records win; with shared translations enabled, other projects fill the gaps.
func (s *Service) confirmedTranslations(ctx context.Context, projectID, lang string) (KeyValues, error) {
	translated := true
	filter := MessageFilter{Langs: []string{lang}, Translated: &translated}
	if !s.sharedTranslations {
		filter.ProjectID = projectID
	}

	records, err := s.store.FindMessages(ctx, filter)
	if err != nil {
		return nil, err
	}

	confirmed := make(KeyValues, len(records))
	for _, record := range records {
		if record.ProjectID == projectID {
			confirmed[record.Key] = record.Value
		}
	}
	for _, record := range records {
		if _, ok := confirmed[record.Key]; !ok {
			confirmed[record.Key] = record.Value
		}
	}
	return confirmed, nil
}

func (s *Service) pruneUndeclaredKeys(ctx context.Context, projectID string, base KeyValues) error {
	records, err := s.store.FindMessages(ctx, MessageFilter{ProjectID: projectID})
	if err != nil {
		s.logError(opMergeSubmission, "prune_select_failed", err, zap.String("project_id", projectID))
		return newServiceError(opMergeSubmission, "prune_select_failed", err)
	}

	var stale []string
	for _, record := range records {
		if _, declared := base[record.Key]; !declared {
			stale = append(stale, record.ID)
		}
	}
	if len(stale) == 0 {
		return nil
	}

	if err := s.store.DeleteMessages(ctx, stale); err != nil {
		s.logError(opMergeSubmission, "prune_delete_failed", err, zap.String("project_id", projectID))
		return newServiceError(opMergeSubmission, "prune_delete_failed", err)
	}
	s.logger.Info("pruned undeclared message keys",
		zap.String("project_id", projectID),
		zap.Int("count", len(stale)))
	return nil
}
