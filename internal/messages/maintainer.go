package messages

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// RegisterMaintainer creates the project on first sight and keeps its maintainer current.
func (s *Service) RegisterMaintainer(ctx context.Context, name ProjectName, maintainer string) error {
	if err := s.ready(opRegisterMaintainer); err != nil {
		return err
	}

	project, err := s.store.FindProjectByName(ctx, name.String())
	switch {
	case errors.Is(err, ErrProjectNotFound):
		id, idErr := s.idProvider.NewID()
		if idErr != nil {
			s.logError(opRegisterMaintainer, "id_generation_failed", idErr, zap.String("project", name.String()))
			return newServiceError(opRegisterMaintainer, "id_generation_failed", idErr)
		}
		created := Project{ID: id, Name: name.String(), Maintainer: maintainer}
		if err := s.store.CreateProject(ctx, created); err != nil {
			s.logError(opRegisterMaintainer, "project_insert_failed", err, zap.String("project", name.String()))
			return newServiceError(opRegisterMaintainer, "project_insert_failed", err)
		}
		s.logger.Info("project registered",
			zap.String("project", name.String()),
			zap.String("maintainer", maintainer))
		return nil
	case err != nil:
		s.logError(opRegisterMaintainer, "project_select_failed", err, zap.String("project", name.String()))
		return newServiceError(opRegisterMaintainer, "project_select_failed", err)
	}

	if project.Maintainer == maintainer {
		return nil
	}
	if err := s.store.UpdateProjectMaintainer(ctx, name.String(), maintainer); err != nil {
		s.logError(opRegisterMaintainer, "maintainer_update_failed", err, zap.String("project", name.String()))
		return newServiceError(opRegisterMaintainer, "maintainer_update_failed", err)
	}
	return nil
}
