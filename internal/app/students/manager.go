// Package students wires one Bakalari client and module set per configured
// student and keeps their cached data snapshots.
package students

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/oto-macenauer/school-summary/internal/core/ai"
	"github.com/oto-macenauer/school-summary/internal/core/bakalari"
	"github.com/oto-macenauer/school-summary/internal/core/gdrive"
	"github.com/oto-macenauer/school-summary/internal/domain/canteen"
	"github.com/oto-macenauer/school-summary/internal/domain/komens"
	"github.com/oto-macenauer/school-summary/internal/domain/marks"
	"github.com/oto-macenauer/school-summary/internal/domain/prepare"
	"github.com/oto-macenauer/school-summary/internal/domain/summary"
	"github.com/oto-macenauer/school-summary/internal/domain/timetable"
	"github.com/oto-macenauer/school-summary/internal/platform/config"
	"github.com/oto-macenauer/school-summary/internal/platform/errors"
	"github.com/oto-macenauer/school-summary/internal/platform/logging"
	"github.com/oto-macenauer/school-summary/internal/platform/storage"
)

// Manager owns the per-student contexts plus the school-wide services:
// the canteen module, the Drive client and the AI generator.
type Manager struct {
	cfg    *config.Config
	logger *slog.Logger

	students map[string]*Context
	order    []string

	generator ai.Generator
	drive     *gdrive.Client
	canteen   *canteen.Module

	komensRepo *storage.KomensRepository
	reportRepo *storage.ReportRepository
	mailRepo   *storage.MailRepository

	schoolYear string

	mu             sync.RWMutex
	canteenMenu    *canteen.Menu
	canteenUpdated time.Time
}

// NewManager builds the manager and all student contexts. Nothing talks to
// the network yet; call Init for that.
func NewManager(cfg *config.Config, db *gorm.DB, logger *slog.Logger) (*Manager, error) {
	m := &Manager{
		cfg:        cfg,
		logger:     logger,
		students:   make(map[string]*Context),
		komensRepo: storage.NewKomensRepository(db),
		reportRepo: storage.NewReportRepository(db),
		mailRepo:   storage.NewMailRepository(db),
		schoolYear: SchoolYearLabel(time.Now()),
	}

	generator, err := ai.New(cfg.AI, logger)
	if err != nil {
		return nil, errors.Wrap(errors.KindBootstrap, "students.new", "build AI generator", err)
	}
	m.generator = generator
	logger.Info("AI generator initialized",
		logging.Category(logging.CategoryAI),
		slog.String("model", generator.Name()))

	if cfg.GDrive.Enabled && cfg.GDrive.ServiceAccountFile != "" && cfg.GDrive.FolderID != "" {
		m.drive = gdrive.NewClient(cfg.GDrive, logger)
		logger.Info("Google Drive client initialized",
			logging.Category(logging.CategoryDrive),
			slog.String("folder", cfg.GDrive.FolderID))
	}

	if cfg.Canteen.Enabled && cfg.Canteen.Number != "" {
		m.canteen = canteen.NewModule(cfg.Canteen.URL, cfg.Canteen.Number, logger)
		logger.Info("canteen module initialized",
			logging.Category(logging.CategoryCanteen),
			slog.String("number", cfg.Canteen.Number))
	}

	timeout := time.Duration(cfg.Bakalari.TimeoutSeconds) * time.Second
	for _, student := range cfg.Students {
		client := bakalari.NewClient(cfg.Bakalari.ServerURL, student.Username, student.Password,
			bakalari.Options{Timeout: timeout, Logger: logger})

		ctx := &Context{
			Name:       student.Name,
			Info:       student.Info,
			Client:     client,
			Timetable:  timetable.NewModule(client, logger),
			Marks:      marks.NewModule(client, logger),
			Komens:     komens.NewModule(client, logger),
			Summary:    summary.NewModule(m.komensRepo, student.Name),
			Prepare:    prepare.NewModule(m.komensRepo, student.Name),
			reports:    m.reportRepo,
			schoolYear: m.schoolYear,
			summaries:  make(map[summary.WeekType]*summary.Data),
			prepares:   make(map[prepare.Period]*prepare.Data),
		}
		m.students[student.Name] = ctx
		m.order = append(m.order, student.Name)
	}
	return m, nil
}

// Init logs every student in. A student that cannot authenticate aborts
// startup so misconfigured credentials surface immediately.
func (m *Manager) Init(ctx context.Context) error {
	for _, name := range m.order {
		student := m.students[name]
		if err := student.Client.Login(ctx); err != nil {
			return errors.Wrap(errors.KindAuth, "students.init",
				fmt.Sprintf("login student %s", name), err)
		}
		m.logger.Info("student logged in",
			logging.Category(logging.CategoryAuth),
			slog.String("student", name))
	}
	return nil
}

// Student returns the context for a configured student name.
func (m *Manager) Student(name string) (*Context, bool) {
	student, ok := m.students[name]
	return student, ok
}

// Names lists students in configuration order.
func (m *Manager) Names() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// All returns the contexts in configuration order.
func (m *Manager) All() []*Context {
	out := make([]*Context, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.students[name])
	}
	return out
}

func (m *Manager) Generator() ai.Generator { return m.generator }

// Drive returns the shared Drive client, or nil when not configured.
func (m *Manager) Drive() *gdrive.Client { return m.drive }

// Canteen returns the school-wide canteen module, or nil when not
// configured.
func (m *Manager) Canteen() *canteen.Module { return m.canteen }

func (m *Manager) KomensRepo() *storage.KomensRepository { return m.komensRepo }
func (m *Manager) ReportRepo() *storage.ReportRepository { return m.reportRepo }
func (m *Manager) MailRepo() *storage.MailRepository     { return m.mailRepo }

// SchoolYear is the label reports are stored under, e.g. "2025/2026".
func (m *Manager) SchoolYear() string { return m.schoolYear }

func (m *Manager) SetCanteenMenu(menu *canteen.Menu) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.canteenMenu = menu
	m.canteenUpdated = time.Now()
}

func (m *Manager) CanteenMenu() (*canteen.Menu, time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.canteenMenu, m.canteenUpdated
}

// SchoolYearLabel formats the school year containing the given date.
func SchoolYearLabel(at time.Time) string {
	start := gdrive.SchoolYearStart(at)
	return fmt.Sprintf("%d/%d", start.Year(), start.Year()+1)
}
