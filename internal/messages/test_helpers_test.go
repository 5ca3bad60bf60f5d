package messages

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type sequentialIDGenerator struct {
	mu     sync.Mutex
	prefix string
	next   int
}

func (g *sequentialIDGenerator) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("%s-%04d", g.prefix, g.next), nil
}

func newTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:lexicon_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := db.AutoMigrate(&Project{}, &Message{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, configure ...func(*ServiceConfig)) (*Service, *gorm.DB) {
	t.Helper()

	db := newTestDatabase(t)
	cfg := ServiceConfig{
		Store:            NewGormStore(db),
		IDProvider:       &sequentialIDGenerator{prefix: "id"},
		WriteConcurrency: 4,
	}
	for _, apply := range configure {
		apply(&cfg)
	}

	service, err := NewService(cfg)
	if err != nil {
		t.Fatalf("failed to construct messages service: %v", err)
	}
	return service, db
}

func mustSync(t *testing.T, service *Service, name string, submission Submission) SyncResult {
	t.Helper()
	result, err := service.Sync(context.Background(), SyncRequest{Name: name, Maintainer: "tester", Messages: submission})
	if err != nil {
		t.Fatalf("unexpected sync error: %v", err)
	}
	return result
}

func mustProjectName(t *testing.T, value string) ProjectName {
	t.Helper()
	name, err := NewProjectName(value)
	if err != nil {
		t.Fatalf("unexpected project name error: %v", err)
	}
	return name
}

// storedMessages indexes a project's records by language then key.
func storedMessages(t *testing.T, db *gorm.DB, projectName string) map[string]map[string]Message {
	t.Helper()

	var project Project
	if err := db.Where("name = ?", projectName).Take(&project).Error; err != nil {
		t.Fatalf("failed to load project %s: %v", projectName, err)
	}
	var records []Message
	if err := db.Where("from_proj = ?", project.ID).Find(&records).Error; err != nil {
		t.Fatalf("failed to load messages: %v", err)
	}

	indexed := map[string]map[string]Message{}
	for _, record := range records {
		if indexed[record.Lang] == nil {
			indexed[record.Lang] = map[string]Message{}
		}
		indexed[record.Lang][record.Key] = record
	}
	return indexed
}
