package messages

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type diffPlan struct {
	updates []Message
	inserts []Message
}

// planLanguageDiff compares one language's merge result with its stored records.
// Updates carry the target value and translation state; inserts carry no ID yet.
func planLanguageDiff(projectID, lang string, stored []Message, result LanguageMergeResult) diffPlan {
	byKey := make(map[string]Message, len(stored))
	for _, record := range stored {
		byKey[record.Key] = record
	}

	var plan diffPlan
	for _, key := range result.Messages.SortedKeys() {
		value := result.Messages[key]
		record, exists := byKey[key]
		if !exists {
			plan.inserts = append(plan.inserts, newMessageRecord(projectID, lang, key, value, true))
			continue
		}
		if record.Value != value || !record.Translated {
			record.Value = value
			record.Translated = true
			plan.updates = append(plan.updates, record)
		}
	}

	for _, key := range result.Untranslated.SortedKeys() {
		if _, translated := result.Messages[key]; translated {
			continue
		}
		value := result.Untranslated[key]
		record, exists := byKey[key]
		if !exists {
			plan.inserts = append(plan.inserts, newMessageRecord(projectID, lang, key, value, false))
			continue
		}
		if record.Value != value || record.Translated {
			record.Value = value
			record.Translated = false
			plan.updates = append(plan.updates, record)
		}
	}
	return plan
}

func newMessageRecord(projectID, lang, key, value string, translated bool) Message {
	return Message{
		ProjectID:  projectID,
		Lang:       lang,
		Key:        key,
		Value:      value,
		Translated: translated,
		Editor:     []string{},
	}
}

// writeLanguageDiff applies one language's merge result inside a single
// transaction so a failure leaves the language untouched.
func (s *Service) writeLanguageDiff(ctx context.Context, projectID, lang string, result LanguageMergeResult) error {
	return s.store.WithinTransaction(ctx, func(tx Store) error {
		stored, err := tx.FindMessages(ctx, MessageFilter{ProjectID: projectID, Langs: []string{lang}})
		if err != nil {
			s.logError(opWriteLanguageDiff, "message_select_failed", err,
				zap.String("project_id", projectID), zap.String("lang", lang))
			return newServiceError(opWriteLanguageDiff, "message_select_failed", err)
		}

		plan := planLanguageDiff(projectID, lang, stored, result)

		if err := applyUpdates(ctx, tx, plan.updates, s.writeConcurrency); err != nil {
			s.logError(opWriteLanguageDiff, "message_update_failed", err,
				zap.String("project_id", projectID), zap.String("lang", lang))
			return newServiceError(opWriteLanguageDiff, "message_update_failed", err)
		}

		for index := range plan.inserts {
			id, err := s.idProvider.NewID()
			if err != nil {
				s.logError(opWriteLanguageDiff, "id_generation_failed", err,
					zap.String("project_id", projectID), zap.String("lang", lang))
				return newServiceError(opWriteLanguageDiff, "id_generation_failed", err)
			}
			plan.inserts[index].ID = id
		}
		if err := tx.CreateMessages(ctx, plan.inserts); err != nil {
			s.logError(opWriteLanguageDiff, "message_insert_failed", err,
				zap.String("project_id", projectID), zap.String("lang", lang))
			return newServiceError(opWriteLanguageDiff, "message_insert_failed", err)
		}

		s.logger.Debug("language diff applied",
			zap.String("project_id", projectID),
			zap.String("lang", lang),
			zap.Int("updated", len(plan.updates)),
			zap.Int("inserted", len(plan.inserts)))
		return nil
	})
}

// applyUpdates issues every update concurrently and waits for all of them to
// settle. Every failure is reported, not only the first.
func applyUpdates(ctx context.Context, store Store, updates []Message, limit int) error {
	if len(updates) == 0 {
		return nil
	}

	var (
		mu       sync.Mutex
		failures []error
	)
	var group errgroup.Group
	if limit > 0 {
		group.SetLimit(limit)
	}
	for _, update := range updates {
		group.Go(func() error {
			value := update.Value
			translated := update.Translated
			err := store.UpdateMessage(ctx, update.ID, MessageUpdate{Value: &value, Translated: &translated})
			if err != nil {
				err = fmt.Errorf("update %s/%s: %w", update.Lang, update.Key, err)
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
			}
			return err
		})
	}
	_ = group.Wait()
	return errors.Join(failures...)
}
