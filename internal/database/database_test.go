package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fd1az/synth-indexer/internal/config"
	"github.com/fd1az/synth-indexer/internal/di"
	"github.com/fd1az/synth-indexer/internal/logger"
)

// recordingLogger keeps the messages it receives.
type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recordingLogger) add(msg string) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *recordingLogger) Debug(ctx context.Context, msg string, args ...any)              { r.add(msg) }
func (r *recordingLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) { r.add(msg) }
func (r *recordingLogger) Info(ctx context.Context, msg string, args ...any)               { r.add(msg) }
func (r *recordingLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  { r.add(msg) }
func (r *recordingLogger) Warn(ctx context.Context, msg string, args ...any)               { r.add(msg) }
func (r *recordingLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  { r.add(msg) }
func (r *recordingLogger) Error(ctx context.Context, msg string, args ...any)              { r.add(msg) }
func (r *recordingLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) { r.add(msg) }

var _ logger.LoggerInterface = (*recordingLogger)(nil)

func TestOpen_SQLiteMemory(t *testing.T) {
	db, err := Open(config.StorageConfig{Driver: config.DriverSQLite, DSN: ":memory:"}, &recordingLogger{})
	require.NoError(t, err)
	defer Close(db)

	require.NoError(t, Ping(context.Background(), db))
}

func TestOpen_RejectsMemoryDriver(t *testing.T) {
	_, err := Open(config.StorageConfig{Driver: config.DriverMemory}, &recordingLogger{})
	assert.Error(t, err)
}

func TestRegister_IsIdempotentAndLazy(t *testing.T) {
	c := di.NewContainer()
	c.Register("config", &config.Config{Storage: config.StorageConfig{Driver: config.DriverSQLite, DSN: ":memory:"}})
	c.Register("logger", logger.LoggerInterface(&recordingLogger{}))

	Register(c)
	Register(c)

	db := Get(c)
	require.NotNil(t, db)
	assert.Same(t, db, Get(c))
	require.NoError(t, Close(db))
}

func TestGormLogger_Trace(t *testing.T) {
	rec := &recordingLogger{}
	l := NewGormLogger(rec, 10*time.Millisecond)
	sql := func() (string, int64) { return "SELECT 1", 1 }
	ctx := context.Background()

	l.Trace(ctx, time.Now(), sql, gorm.ErrRecordNotFound)
	l.Trace(ctx, time.Now(), sql, gorm.ErrDuplicatedKey)
	l.Trace(ctx, time.Now(), sql, nil)
	assert.Empty(t, rec.msgs)

	l.Trace(ctx, time.Now(), sql, errors.New("disk I/O error"))
	l.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	assert.Equal(t, []string{"sql statement failed", "slow sql statement"}, rec.msgs)

	l.LogMode(gormlogger.Silent).Trace(ctx, time.Now(), sql, errors.New("ignored"))
	assert.Len(t, rec.msgs, 2)
}
