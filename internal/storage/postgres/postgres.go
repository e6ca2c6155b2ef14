// Package postgres implements the storage.Backend interface using GORM/PostgreSQL
// with internal queues and a background DB writer goroutine.
package postgres

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/tacticsboard/choreo/internal/database"
	"github.com/tacticsboard/choreo/internal/model"
	"github.com/tacticsboard/choreo/internal/model/convert"
	"github.com/tacticsboard/choreo/internal/queue"
	"github.com/tacticsboard/choreo/pkg/core"
)

const defaultFlushInterval = 2 * time.Second

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	// DB is optional; without it Init connects with the db.* settings.
	DB            *gorm.DB
	Logger        *slog.Logger
	FlushInterval time.Duration
}

// queues holds the write queues for batch DB insertion.
type queues struct {
	PlayerStates *queue.Queue[model.PlayerState]
	BallStates   *queue.Queue[model.BallState]
}

func newQueues() *queues {
	return &queues{
		PlayerStates: queue.New[model.PlayerState](),
		BallStates:   queue.New[model.BallState](),
	}
}

var errNoRun = errors.New("no export run started")

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps     Dependencies
	queues   *queues
	runID    atomic.Uint64
	stopChan chan struct{}
	wg       sync.WaitGroup
	// writeMu serialises queue drains between the writer goroutine and EndRun
	writeMu sync.Mutex
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	return &Backend{
		deps:   deps,
		queues: newQueues(),
	}
}

// DB returns the connection in use.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration and starts the DB writer goroutine.
// If no DB was injected via Dependencies, it creates its own postgres connection.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		db, err := database.OpenPostgres(database.PostgresConfigFromViper())
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err = sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to validate connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		b.deps.DB = db
	}

	if err := b.setupDB(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.stopChan = make(chan struct{})
	b.startDBWriter()
	return nil
}

func (b *Backend) setupDB() error {
	db := b.deps.DB
	if db.Name() == "postgres" {
		if err := db.Exec(`CREATE Extension IF NOT EXISTS postgis;`).Error; err != nil {
			return fmt.Errorf("failed to create PostGIS Extension: %w", err)
		}
		b.deps.Logger.Info("PostGIS Extension created")
	}
	b.deps.Logger.Info("Migrating schema")
	if err := database.Migrate(db); err != nil {
		return err
	}
	b.deps.Logger.Info("Database setup complete")
	return nil
}

// Close stops the DB writer goroutine and writes whatever is still queued.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
		b.wg.Wait()
		b.stopChan = nil
	}
	if b.deps.DB != nil {
		b.flush()
	}
	return nil
}

// StartRun inserts the run synchronously so frames can reference its ID.
func (b *Backend) StartRun(run *core.ExportRun) error {
	if b.deps.DB == nil {
		return errors.New("postgres backend not initialised")
	}
	gormRun := convert.CoreToExportRun(*run)
	gormRun.ID = 0
	if err := b.deps.DB.Create(&gormRun).Error; err != nil {
		return fmt.Errorf("failed to insert export run: %w", err)
	}
	run.ID = gormRun.ID
	b.runID.Store(uint64(gormRun.ID))
	return nil
}

// RecordFrame converts a frame and queues its rows. The first frame also
// stores the run's roster.
func (b *Backend) RecordFrame(f *core.FrameRecord) error {
	runID := uint(b.runID.Load())
	if runID == 0 {
		return errNoRun
	}
	rec := *f
	rec.RunID = runID
	if rec.Index == 0 {
		err := b.deps.DB.Model(&model.ExportRun{}).Where("id = ?", runID).
			Update("roster", convert.RosterJSON(rec.Players)).Error
		if err != nil {
			return fmt.Errorf("failed to store roster: %w", err)
		}
	}
	b.queues.PlayerStates.Push(convert.CoreToPlayerStates(rec)...)
	b.queues.BallStates.Push(convert.CoreToBallState(rec))
	return nil
}

// EndRun drains the queues and stores the final status.
func (b *Backend) EndRun(status core.RunStatus, frames int) error {
	runID := uint(b.runID.Load())
	if runID == 0 {
		return errNoRun
	}
	b.flush()

	now := time.Now()
	err := b.deps.DB.Model(&model.ExportRun{}).Where("id = ?", runID).Updates(map[string]any{
		"status":      string(status),
		"frame_count": frames,
		"end_time":    &now,
	}).Error
	b.runID.Store(0)
	if err != nil {
		return fmt.Errorf("failed to finalize export run: %w", err)
	}
	return nil
}

// Pending returns the number of rows waiting to be written.
func (b *Backend) Pending() int {
	return b.queues.PlayerStates.Len() + b.queues.BallStates.Len()
}

// writeQueue writes all items from a queue to the database in a transaction.
// On failure the items go back on the queue for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger) {
	if q.Empty() {
		return
	}

	tx := db.Begin()
	items := q.GetAndEmpty()
	if err := tx.Create(&items).Error; err != nil {
		log.Error("Error writing queued rows", "table", name, "count", len(items), "error", err)
		tx.Rollback()
		q.Push(items...)
		return
	}
	tx.Commit()
}

func (b *Backend) flush() {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	writeQueue(b.deps.DB, b.queues.PlayerStates, "player_states", b.deps.Logger)
	writeQueue(b.deps.DB, b.queues.BallStates, "ball_states", b.deps.Logger)
}

// startDBWriter starts the background goroutine that periodically drains queues into the DB.
func (b *Backend) startDBWriter() {
	stop := b.stopChan
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(b.deps.FlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				b.flush()
			}
		}
	}()
}
