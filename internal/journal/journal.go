// Package journal keeps a history of adapter status transitions and device
// enumerations in a SQL database.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/jointfeed/openvr-adapter/internal/enumerator"
	"github.com/jointfeed/openvr-adapter/internal/status"
)

// DefaultBufferSize is the number of records queued before new ones are dropped.
const DefaultBufferSize = 256

// Journal writes records on a background goroutine so callers holding the
// adapter's locks never wait on the database.
type Journal struct {
	db        *gorm.DB
	log       zerolog.Logger
	sessionID uuid.UUID

	mu      sync.RWMutex
	closed  bool
	records chan any
	done    chan struct{}
	dropped atomic.Int64
}

// New migrates the journal tables, registers a new session row and starts the writer.
func New(db *gorm.DB, log zerolog.Logger, version string, bufferSize int) (*Journal, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if err := db.AutoMigrate(Models...); err != nil {
		return nil, fmt.Errorf("failed to migrate journal tables: %w", err)
	}

	hostname, _ := os.Hostname()
	j := &Journal{
		db:        db,
		log:       log,
		sessionID: uuid.New(),
		records:   make(chan any, bufferSize),
		done:      make(chan struct{}),
	}

	sess := &Session{
		ID:        j.sessionID.String(),
		StartedAt: time.Now().UTC(),
		Hostname:  hostname,
		Version:   version,
	}
	if err := db.Create(sess).Error; err != nil {
		return nil, fmt.Errorf("failed to create journal session: %w", err)
	}

	go j.run()
	log.Info().Str("session", j.sessionID.String()).Msg("Journal started")
	return j, nil
}

// SessionID identifies this process's records.
func (j *Journal) SessionID() uuid.UUID {
	return j.sessionID
}

// Dropped returns how many records were discarded because the queue was full.
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

// StatusChanged queues a status record.
func (j *Journal) StatusChanged(s status.Status) {
	j.enqueue(&StatusEntry{
		SessionID: j.sessionID.String(),
		Time:      time.Now().UTC(),
		Code:      s.Code,
		Detail:    s.Detail.String(),
	})
}

// DevicesEnumerated queues an enumeration record.
func (j *Journal) DevicesEnumerated(entries []enumerator.Entry) {
	devices := make([]Device, len(entries))
	for i, e := range entries {
		devices[i] = Device{
			Slot:   uint32(e.Slot),
			Class:  e.Class.String(),
			Serial: e.Serial,
			Name:   e.Joint.Name,
		}
	}
	raw, err := json.Marshal(devices)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to encode device list")
		return
	}
	j.enqueue(&EnumerationEntry{
		SessionID: j.sessionID.String(),
		Time:      time.Now().UTC(),
		Count:     len(devices),
		Devices:   raw,
	})
}

func (j *Journal) enqueue(record any) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		j.dropped.Add(1)
		return
	}
	select {
	case j.records <- record:
	default:
		if j.dropped.Add(1) == 1 {
			j.log.Warn().Msg("Journal queue full, dropping records")
		}
	}
}

func (j *Journal) run() {
	defer close(j.done)
	for record := range j.records {
		if err := j.db.Create(record).Error; err != nil {
			j.log.Error().Err(err).Type("record", record).Msg("Failed to write journal record")
		}
	}
}

// Close flushes queued records and stops the writer.
func (j *Journal) Close() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	close(j.records)
	j.mu.Unlock()

	<-j.done
	j.log.Info().Int64("dropped", j.Dropped()).Msg("Journal closed")
}

// Statuses returns this session's status history, oldest first.
func (j *Journal) Statuses(ctx context.Context) ([]StatusEntry, error) {
	var out []StatusEntry
	err := j.db.WithContext(ctx).
		Where("session_id = ?", j.sessionID.String()).
		Order("id").
		Find(&out).Error
	return out, err
}

// Enumerations returns this session's enumeration history, oldest first.
func (j *Journal) Enumerations(ctx context.Context) ([]EnumerationEntry, error) {
	var out []EnumerationEntry
	err := j.db.WithContext(ctx).
		Where("session_id = ?", j.sessionID.String()).
		Order("id").
		Find(&out).Error
	return out, err
}

// DecodeDevices unpacks an enumeration entry's device list.
func DecodeDevices(e EnumerationEntry) ([]Device, error) {
	var devices []Device
	if err := json.Unmarshal(e.Devices, &devices); err != nil {
		return nil, fmt.Errorf("decoding devices: %w", err)
	}
	return devices, nil
}
