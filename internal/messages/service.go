package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

var (
	errMissingStore      = errors.New("message store is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// ServiceError carries a stable code describing which operation failed and why.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew          = "messages.service.new"
	opSync                = "messages.sync"
	opRegisterMaintainer  = "messages.register_maintainer"
	opMergeSubmission     = "messages.merge_submission"
	opWriteLanguageDiff   = "messages.write_language_diff"
	opRebuildSnapshot     = "messages.rebuild_snapshot"
	opListProjects        = "messages.list_projects"
	opDeleteProject       = "messages.delete_project"
	opClearProject        = "messages.clear_project"
	opListMessages        = "messages.list_messages"
	opFindProjectMessages = "messages.find_project_messages"
	opListUntranslated    = "messages.list_untranslated"
	opEditMessage         = "messages.edit_message"
	opDeleteMessages      = "messages.delete_messages"
	opImportTranslations  = "messages.import_translations"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig describes the dependencies of the message service.
type ServiceConfig struct {
	Store      Store
	IDProvider IDProvider
	Logger     *zap.Logger

	// BaseLanguage decides which keys exist. Defaults to DefaultBaseLanguage.
	BaseLanguage string
	// DefaultMaintainer is recorded when a sync omits the maintainer.
	DefaultMaintainer string
	// SharedTranslations lets placeholder classification fall back to confirmed
	// translations of the same key in other projects.
	SharedTranslations bool
	// WriteConcurrency bounds the concurrent message updates of one language diff.
	// Zero or negative means unbounded.
	WriteConcurrency int
}

// Service reconciles pushed message sets against the Store and serves admin operations.
type Service struct {
	store              Store
	idProvider         IDProvider
	logger             *zap.Logger
	baseLanguage       string
	defaultMaintainer  string
	sharedTranslations bool
	writeConcurrency   int
}

// NewService validates the configuration and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opServiceNew, "missing_store", errMissingStore)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	baseLanguage := strings.TrimSpace(cfg.BaseLanguage)
	if baseLanguage == "" {
		baseLanguage = DefaultBaseLanguage
	}
	if err := ValidateLanguage(baseLanguage); err != nil {
		return nil, newServiceError(opServiceNew, "invalid_base_language", err)
	}

	defaultMaintainer := strings.TrimSpace(cfg.DefaultMaintainer)
	if defaultMaintainer == "" {
		defaultMaintainer = DefaultMaintainer
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		store:              cfg.Store,
		idProvider:         cfg.IDProvider,
		logger:             logger,
		baseLanguage:       baseLanguage,
		defaultMaintainer:  defaultMaintainer,
		sharedTranslations: cfg.SharedTranslations,
		writeConcurrency:   cfg.WriteConcurrency,
	}, nil
}

// BaseLanguage reports the language whose keys are authoritative.
func (s *Service) BaseLanguage() string {
	return s.baseLanguage
}

// Sync registers the maintainer, merges the submission into the Store and
// returns the reconciled message set.
func (s *Service) Sync(ctx context.Context, request SyncRequest) (SyncResult, error) {
	if err := s.ready(opSync); err != nil {
		return SyncResult{}, err
	}
	name, err := NewProjectName(request.Name)
	if err != nil {
		return SyncResult{}, err
	}
	if err := request.Messages.Validate(); err != nil {
		return SyncResult{}, err
	}
	if len(request.Messages) > 0 && !request.Messages.HasLanguage(s.baseLanguage) {
		return SyncResult{}, fmt.Errorf("%w: %s", ErrMissingBaseLanguage, s.baseLanguage)
	}

	maintainer := strings.TrimSpace(request.Maintainer)
	if maintainer == "" {
		maintainer = s.defaultMaintainer
	}
	if err := s.RegisterMaintainer(ctx, name, maintainer); err != nil {
		return SyncResult{}, err
	}

	project, err := s.store.FindProjectByName(ctx, name.String())
	if errors.Is(err, ErrProjectNotFound) {
		s.logError(opSync, "project_not_found", err, zap.String("project", name.String()))
		return SyncResult{}, err
	}
	if err != nil {
		s.logError(opSync, "project_select_failed", err, zap.String("project", name.String()))
		return SyncResult{}, newServiceError(opSync, "project_select_failed", err)
	}

	conflicts, err := s.mergeSubmission(ctx, project.ID, request.Messages)
	if err != nil {
		return SyncResult{}, err
	}

	snapshot, err := s.rebuildSnapshot(ctx, project.ID, request.Messages)
	if err != nil {
		return SyncResult{}, err
	}

	s.logger.Info("messages synced",
		zap.String("project", project.Name),
		zap.Int("paths", len(request.Messages)),
		zap.Int("conflicts", len(conflicts)))

	return SyncResult{Project: project, Messages: snapshot, Conflicts: conflicts}, nil
}

func (s *Service) ready(operation string) error {
	if s == nil || s.store == nil {
		s.logError(operation, "missing_store", errMissingStore)
		return newServiceError(operation, "missing_store", errMissingStore)
	}
	return nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("messages service error", attrs...)
}
