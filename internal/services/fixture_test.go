package services

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/SAP-F-2025/learning-service/internal/events"
	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
	"github.com/SAP-F-2025/learning-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/learning-service/internal/validator"
	"github.com/SAP-F-2025/learning-service/pkg"
)

var testLocation = time.FixedZone("UTC+5", 5*60*60)

// fixture is an in-memory database with the real repositories on top
type fixture struct {
	t         *testing.T
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	publisher *events.MockEventPublisher
	hub       *recordingBroadcaster
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), pkg.GormConfig(testLocation, logger.Silent))
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	// One connection keeps the in-memory database alive and serializes transactions
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		t:         t,
		db:        db,
		repo:      postgres.NewPostgreSQLRepository(postgres.RepositoryConfig{DB: db}),
		logger:    log,
		validator: validator.New(),
		publisher: events.NewMockEventPublisher(log),
		hub:       &recordingBroadcaster{},
	}
}

func (f *fixture) progression(now time.Time) *progressionService {
	svc := NewProgressionService(f.repo, f.logger, f.validator, f.publisher, testLocation).(*progressionService)
	svc.now = func() time.Time { return now }
	return svc
}

func (f *fixture) catalog(now time.Time) *catalogService {
	svc := NewCatalogService(f.repo, f.logger, testLocation).(*catalogService)
	svc.now = func() time.Time { return now }
	return svc
}

func (f *fixture) support() SupportService {
	return NewSupportService(f.repo, f.logger, f.validator, f.publisher, f.hub, testLocation)
}

func (f *fixture) create(value interface{}) {
	f.t.Helper()
	if err := f.db.Create(value).Error; err != nil {
		f.t.Fatalf("failed to seed %T: %v", value, err)
	}
}

func (f *fixture) user(username string, role models.UserRole) *models.User {
	u := &models.User{FullName: username, Username: username, Role: role, IsActive: true}
	f.create(u)
	return u
}

func (f *fixture) course() *models.Course {
	c := &models.Course{Title: "course", IsActive: true}
	f.create(c)
	return c
}

func (f *fixture) module(courseID uint, order int) *models.CourseModule {
	m := &models.CourseModule{CourseID: courseID, Title: fmt.Sprintf("module %d", order), Order: order, IsActive: true}
	f.create(m)
	return m
}

func (f *fixture) lesson(moduleID uint, order int) *models.Lesson {
	l := &models.Lesson{CourseModuleID: moduleID, Title: fmt.Sprintf("lesson %d", order), Order: order, IsActive: true}
	f.create(l)
	return l
}

func questionFields(i int, correct string) models.QuestionFields {
	return models.QuestionFields{
		QuestionText:  fmt.Sprintf("question %d", i),
		OptionA:       "a",
		OptionB:       "b",
		OptionC:       "c",
		OptionD:       "d",
		CorrectOption: correct,
	}
}

// lessonQuestions seeds n questions whose correct option is correct
func (f *fixture) lessonQuestions(lessonID uint, n int, correct string) []uint {
	ids := make([]uint, n)
	for i := range ids {
		q := &models.LessonTest{LessonID: lessonID, QuestionFields: questionFields(i, correct)}
		f.create(q)
		ids[i] = q.ID
	}
	return ids
}

func (f *fixture) moduleQuestions(moduleID uint, n int, correct string) []uint {
	ids := make([]uint, n)
	for i := range ids {
		q := &models.ModuleTest{ModuleID: moduleID, QuestionFields: questionFields(i, correct)}
		f.create(q)
		ids[i] = q.ID
	}
	return ids
}

func (f *fixture) countRows(model interface{}, query string, args ...interface{}) int64 {
	f.t.Helper()
	var count int64
	if err := f.db.Model(model).Where(query, args...).Count(&count).Error; err != nil {
		f.t.Fatalf("failed to count %T: %v", model, err)
	}
	return count
}

// recordingBroadcaster keeps every emitted event
type recordingBroadcaster struct {
	emitted []emission
}

// joinEvent marks a JoinConnection call in the emission log; Except holds the connection id
const joinEvent = "join"

type emission struct {
	Room   string
	Event  string
	Data   interface{}
	Except string
}

func (r *recordingBroadcaster) EmitToRoom(room, event string, data interface{}, exceptConnID string) {
	r.emitted = append(r.emitted, emission{Room: room, Event: event, Data: data, Except: exceptConnID})
}

func (r *recordingBroadcaster) JoinConnection(room, connID string) bool {
	r.emitted = append(r.emitted, emission{Room: room, Event: joinEvent, Except: connID})
	return true
}

func (r *recordingBroadcaster) find(room, event string) []emission {
	var out []emission
	for _, e := range r.emitted {
		if e.Room == room && e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (r *recordingBroadcaster) reset() {
	r.emitted = nil
}
