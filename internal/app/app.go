package app

import (
	"time"

	"github.com/xpanvictor/presenced/internal/config"
	"github.com/xpanvictor/presenced/internal/domains/engine"
	"github.com/xpanvictor/presenced/internal/domains/schedule"
	"github.com/xpanvictor/presenced/internal/remote"
	scheduleRepo "github.com/xpanvictor/presenced/internal/repository/schedule"
	"github.com/xpanvictor/presenced/internal/server"
	"github.com/xpanvictor/presenced/pkg/Logger"
	"github.com/xpanvictor/presenced/pkg/facts"
	"gorm.io/gorm"
)

// App represents the application with all its dependencies
type App struct {
	Config *config.Settings
	Logger *Logger.Logger
	DB     *gorm.DB
	Engine *engine.Engine
	// repos
	ScheduleRepo schedule.Repository
	ServerDeps   server.Dependencies
}

// NewApp creates a new application instance with all dependencies properly wired
func NewApp(cfg *config.Settings, logger *Logger.Logger, db *gorm.DB) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
		DB:     db,
	}

	if err := app.setupDependencies(); err != nil {
		return nil, err
	}

	return app, nil
}

// setupDependencies initializes all application dependencies
func (a *App) setupDependencies() error {
	// 1. repositories
	a.ScheduleRepo = scheduleRepo.NewGormScheduleRepo(a.DB)

	// 2. remote client
	client := remote.NewHTTPClient(remote.Config{
		BaseURL: a.Config.Remote.BaseURL,
		Token:   a.Config.Remote.Token,
		Timeout: time.Duration(a.Config.Remote.TimeoutSecs) * time.Second,
	}, a.Logger.Named("remote"))

	// 3. fact providers published by the platform helper
	lister := facts.NewFileDeviceLister(a.Config.Engine.DeviceFactsPath)
	calendar := facts.NewFileCalendar(a.Config.Engine.CalendarFactsPath)

	// 4. the engine itself
	eng, err := engine.New(
		a.Config,
		lister,
		calendar,
		a.ScheduleRepo,
		client,
		engine.NewDialProbe(a.Config.Remote.BaseURL),
		a.Logger.Named("engine"),
	)
	if err != nil {
		return err
	}
	a.Engine = eng

	a.ServerDeps = server.NewServerDependencies(a.Engine, a.Logger, a.Config)
	return nil
}

// GetServerDependencies returns the server dependencies
func (a *App) GetServerDependencies() server.Dependencies {
	return a.ServerDeps
}
