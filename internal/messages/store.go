package messages

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/gorm"
)

const insertBatchSize = 200

// MessageFilter narrows a message lookup. Empty fields do not constrain the query.
type MessageFilter struct {
	IDs        []string
	ProjectID  string
	Langs      []string
	Translated *bool
	Key        string
}

// Store persists projects and messages.
type Store interface {
	FindProjectByName(ctx context.Context, name string) (Project, error)
	FindProjectByID(ctx context.Context, id string) (Project, error)
	ListProjects(ctx context.Context) ([]Project, error)
	CreateProject(ctx context.Context, project Project) error
	UpdateProjectMaintainer(ctx context.Context, name, maintainer string) error
	DeleteProject(ctx context.Context, id string) error

	FindMessage(ctx context.Context, id string) (Message, error)
	FindMessages(ctx context.Context, filter MessageFilter) ([]Message, error)
	UpdateMessage(ctx context.Context, id string, fields MessageUpdate) error
	CreateMessages(ctx context.Context, messages []Message) error
	DeleteMessages(ctx context.Context, ids []string) error
	DeleteProjectMessages(ctx context.Context, projectID string) error

	// WithinTransaction runs fn against a Store bound to one transaction.
	WithinTransaction(ctx context.Context, fn func(Store) error) error
}

// MessageUpdate lists the mutable columns of a message. Nil fields are left untouched.
type MessageUpdate struct {
	Value      *string
	Translated *bool
	Editor     []string
}

// NewGormStore returns a Store backed by the provided GORM handle.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

type gormStore struct {
	db *gorm.DB
}

func (s *gormStore) FindProjectByName(ctx context.Context, name string) (Project, error) {
	var project Project
	err := s.db.WithContext(ctx).Where("name = ?", name).Take(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Project{}, ErrProjectNotFound
	}
	return project, err
}

func (s *gormStore) FindProjectByID(ctx context.Context, id string) (Project, error) {
	var project Project
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Project{}, ErrProjectNotFound
	}
	return project, err
}

func (s *gormStore) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	err := s.db.WithContext(ctx).Order("name ASC").Find(&projects).Error
	return projects, err
}

func (s *gormStore) CreateProject(ctx context.Context, project Project) error {
	return s.db.WithContext(ctx).Create(&project).Error
}

func (s *gormStore) UpdateProjectMaintainer(ctx context.Context, name, maintainer string) error {
	return s.db.WithContext(ctx).
		Model(&Project{}).
		Where("name = ?", name).
		Update("maintainer", maintainer).Error
}

func (s *gormStore) DeleteProject(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&Project{}).Error
}

func (s *gormStore) FindMessage(ctx context.Context, id string) (Message, error) {
	var message Message
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&message).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Message{}, ErrMessageNotFound
	}
	return message, err
}

func (s *gormStore) FindMessages(ctx context.Context, filter MessageFilter) ([]Message, error) {
	query := s.db.WithContext(ctx).Model(&Message{})
	if len(filter.IDs) > 0 {
		query = query.Where("id IN ?", filter.IDs)
	}
	if filter.ProjectID != "" {
		query = query.Where("from_proj = ?", filter.ProjectID)
	}
	switch len(filter.Langs) {
	case 0:
	case 1:
		query = query.Where("lang = ?", filter.Langs[0])
	default:
		query = query.Where("lang IN ?", filter.Langs)
	}
	if filter.Translated != nil {
		query = query.Where("translated = ?", *filter.Translated)
	}
	if filter.Key != "" {
		query = query.Where("message_key = ?", filter.Key)
	}

	var messages []Message
	err := query.Order("from_proj ASC").Order("lang ASC").Order("message_key ASC").Find(&messages).Error
	return messages, err
}

func (s *gormStore) UpdateMessage(ctx context.Context, id string, fields MessageUpdate) error {
	updates := map[string]interface{}{}
	if fields.Value != nil {
		updates["value"] = *fields.Value
	}
	if fields.Translated != nil {
		updates["translated"] = *fields.Translated
	}
	if fields.Editor != nil {
		editor, err := encodeEditor(fields.Editor)
		if err != nil {
			return err
		}
		updates["editor"] = editor
	}
	if len(updates) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&Message{}).Where("id = ?", id).Updates(updates).Error
}

func (s *gormStore) CreateMessages(ctx context.Context, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(messages, insertBatchSize).Error
}

func (s *gormStore) DeleteMessages(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&Message{}).Error
}

func (s *gormStore) DeleteProjectMessages(ctx context.Context, projectID string) error {
	return s.db.WithContext(ctx).Where("from_proj = ?", projectID).Delete(&Message{}).Error
}

func (s *gormStore) WithinTransaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func encodeEditor(editor []string) (string, error) {
	encoded, err := json.Marshal(editor)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
