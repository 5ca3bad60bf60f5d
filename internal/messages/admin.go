package messages

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// ListProjects returns every project ordered by name.
func (s *Service) ListProjects(ctx context.Context) ([]Project, error) {
	if err := s.ready(opListProjects); err != nil {
		return nil, err
	}
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		s.logError(opListProjects, "query_failed", err)
		return nil, newServiceError(opListProjects, "query_failed", err)
	}
	return projects, nil
}

// DeleteProject removes a project together with all of its messages.
func (s *Service) DeleteProject(ctx context.Context, projectID string) error {
	if err := s.ready(opDeleteProject); err != nil {
		return err
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ErrMissingIdentifier
	}

	return s.store.WithinTransaction(ctx, func(tx Store) error {
		if _, err := s.lookupProjectByID(ctx, tx, opDeleteProject, projectID); err != nil {
			return err
		}
		if err := tx.DeleteProjectMessages(ctx, projectID); err != nil {
			s.logError(opDeleteProject, "message_delete_failed", err, zap.String("project_id", projectID))
			return newServiceError(opDeleteProject, "message_delete_failed", err)
		}
		if err := tx.DeleteProject(ctx, projectID); err != nil {
			s.logError(opDeleteProject, "project_delete_failed", err, zap.String("project_id", projectID))
			return newServiceError(opDeleteProject, "project_delete_failed", err)
		}
		return nil
	})
}

// ClearProjectMessages removes every message of a project and keeps the project.
func (s *Service) ClearProjectMessages(ctx context.Context, projectID string) error {
	if err := s.ready(opClearProject); err != nil {
		return err
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ErrMissingIdentifier
	}
	if err := s.store.DeleteProjectMessages(ctx, projectID); err != nil {
		s.logError(opClearProject, "message_delete_failed", err, zap.String("project_id", projectID))
		return newServiceError(opClearProject, "message_delete_failed", err)
	}
	return nil
}

// ListMessages returns the messages of one language, optionally scoped to a project.
// An empty lang lists the base language.
func (s *Service) ListMessages(ctx context.Context, lang, projectID string) ([]Message, error) {
	if err := s.ready(opListMessages); err != nil {
		return nil, err
	}
	lang = strings.TrimSpace(lang)
	if lang == "" {
		lang = s.baseLanguage
	}
	if err := ValidateLanguage(lang); err != nil {
		return nil, err
	}

	records, err := s.store.FindMessages(ctx, MessageFilter{ProjectID: strings.TrimSpace(projectID), Langs: []string{lang}})
	if err != nil {
		s.logError(opListMessages, "query_failed", err, zap.String("lang", lang))
		return nil, newServiceError(opListMessages, "query_failed", err)
	}
	return records, nil
}

// FindProjectMessages returns the messages of a named project, restricted to
// langs when any are given.
func (s *Service) FindProjectMessages(ctx context.Context, name ProjectName, langs []string) ([]Message, error) {
	if err := s.ready(opFindProjectMessages); err != nil {
		return nil, err
	}
	project, err := s.lookupProjectByName(ctx, opFindProjectMessages, name)
	if err != nil {
		return nil, err
	}
	records, err := s.store.FindMessages(ctx, MessageFilter{ProjectID: project.ID, Langs: langs})
	if err != nil {
		s.logError(opFindProjectMessages, "query_failed", err, zap.String("project", name.String()))
		return nil, newServiceError(opFindProjectMessages, "query_failed", err)
	}
	return records, nil
}

// ListUntranslated returns the placeholder messages of a named project.
// Without langs it lists DefaultUntranslatedLanguage.
func (s *Service) ListUntranslated(ctx context.Context, name ProjectName, langs []string) ([]Message, error) {
	if err := s.ready(opListUntranslated); err != nil {
		return nil, err
	}
	if len(langs) == 0 {
		langs = []string{DefaultUntranslatedLanguage}
	}
	project, err := s.lookupProjectByName(ctx, opListUntranslated, name)
	if err != nil {
		return nil, err
	}

	translated := false
	records, err := s.store.FindMessages(ctx, MessageFilter{ProjectID: project.ID, Langs: langs, Translated: &translated})
	if err != nil {
		s.logError(opListUntranslated, "query_failed", err, zap.String("project", name.String()))
		return nil, newServiceError(opListUntranslated, "query_failed", err)
	}
	return records, nil
}

// EditMessage stores a translator supplied value. The value becomes a confirmed
// translation so later placeholder submissions cannot overwrite it.
func (s *Service) EditMessage(ctx context.Context, id, value, editor string) (Message, error) {
	if err := s.ready(opEditMessage); err != nil {
		return Message{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Message{}, ErrMissingIdentifier
	}
	if value == "" {
		return Message{}, ErrMissingValue
	}

	record, err := s.store.FindMessage(ctx, id)
	if errors.Is(err, ErrMessageNotFound) {
		return Message{}, err
	}
	if err != nil {
		s.logError(opEditMessage, "message_select_failed", err, zap.String("message_id", id))
		return Message{}, newServiceError(opEditMessage, "message_select_failed", err)
	}

	translated := true
	update := MessageUpdate{Value: &value, Translated: &translated}
	editor = strings.TrimSpace(editor)
	if editor != "" {
		update.Editor = append(append([]string{}, record.Editor...), editor)
		record.Editor = update.Editor
	}
	if err := s.store.UpdateMessage(ctx, id, update); err != nil {
		s.logError(opEditMessage, "message_update_failed", err, zap.String("message_id", id))
		return Message{}, newServiceError(opEditMessage, "message_update_failed", err)
	}

	record.Value = value
	record.Translated = translated
	return record, nil
}

// DeleteMessages removes the messages with the given identifiers and returns
// the records that existed.
func (s *Service) DeleteMessages(ctx context.Context, ids []string) ([]Message, error) {
	if err := s.ready(opDeleteMessages); err != nil {
		return nil, err
	}
	var cleaned []string
	for _, id := range ids {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return nil, ErrMissingIdentifier
	}

	var removed []Message
	err := s.store.WithinTransaction(ctx, func(tx Store) error {
		records, err := tx.FindMessages(ctx, MessageFilter{IDs: cleaned})
		if err != nil {
			s.logError(opDeleteMessages, "message_select_failed", err, zap.Int("count", len(cleaned)))
			return newServiceError(opDeleteMessages, "message_select_failed", err)
		}
		if err := tx.DeleteMessages(ctx, cleaned); err != nil {
			s.logError(opDeleteMessages, "message_delete_failed", err, zap.Int("count", len(cleaned)))
			return newServiceError(opDeleteMessages, "message_delete_failed", err)
		}
		removed = records
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// ImportRequest names the project by ID or by name and carries the translated pairs.
type ImportRequest struct {
	ProjectID   string
	ProjectName string
	Lang        string
	Messages    KeyValues
}

// ImportTranslations stores externally produced translations as confirmed
// values. Outside the base language, keys the project's base language does not
// declare are skipped.
func (s *Service) ImportTranslations(ctx context.Context, request ImportRequest) (ImportResult, error) {
	if err := s.ready(opImportTranslations); err != nil {
		return ImportResult{}, err
	}
	if err := ValidateLanguage(request.Lang); err != nil {
		return ImportResult{}, err
	}

	var (
		project Project
		err     error
	)
	switch {
	case strings.TrimSpace(request.ProjectName) != "":
		name, nameErr := NewProjectName(request.ProjectName)
		if nameErr != nil {
			return ImportResult{}, nameErr
		}
		project, err = s.lookupProjectByName(ctx, opImportTranslations, name)
	case strings.TrimSpace(request.ProjectID) != "":
		project, err = s.lookupProjectByID(ctx, s.store, opImportTranslations, strings.TrimSpace(request.ProjectID))
	default:
		return ImportResult{}, ErrMissingIdentifier
	}
	if err != nil {
		return ImportResult{}, err
	}

	accepted := request.Messages.Clone()
	var skipped []string
	if request.Lang != s.baseLanguage {
		declared, err := s.storedValues(ctx, project.ID, s.baseLanguage, map[string]KeyValues{})
		if err != nil {
			return ImportResult{}, err
		}
		for _, key := range accepted.SortedKeys() {
			if _, ok := declared[key]; !ok {
				delete(accepted, key)
				skipped = append(skipped, key)
			}
		}
	}

	result := LanguageMergeResult{Messages: accepted, Untranslated: KeyValues{}}
	if err := s.writeLanguageDiff(ctx, project.ID, request.Lang, result); err != nil {
		return ImportResult{}, err
	}

	s.logger.Info("translations imported",
		zap.String("project", project.Name),
		zap.String("lang", request.Lang),
		zap.Int("applied", len(accepted)),
		zap.Int("skipped", len(skipped)))
	return ImportResult{Project: project, Applied: len(accepted), Skipped: skipped}, nil
}

func (s *Service) lookupProjectByName(ctx context.Context, operation string, name ProjectName) (Project, error) {
	project, err := s.store.FindProjectByName(ctx, name.String())
	if errors.Is(err, ErrProjectNotFound) {
		return Project{}, err
	}
	if err != nil {
		s.logError(operation, "project_select_failed", err, zap.String("project", name.String()))
		return Project{}, newServiceError(operation, "project_select_failed", err)
	}
	return project, nil
}

func (s *Service) lookupProjectByID(ctx context.Context, store Store, operation, projectID string) (Project, error) {
	project, err := store.FindProjectByID(ctx, projectID)
	if errors.Is(err, ErrProjectNotFound) {
		return Project{}, err
	}
	if err != nil {
		s.logError(operation, "project_select_failed", err, zap.String("project_id", projectID))
		return Project{}, newServiceError(operation, "project_select_failed", err)
	}
	return project, nil
}
