package state_managers

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/benmeehan/geo-attendance/internal/models"
	"github.com/benmeehan/geo-attendance/pkg/file"
	"github.com/rs/zerolog"
)

// ErrAlreadyRecorded is returned when a student already has attendance for a session.
var ErrAlreadyRecorded = errors.New("attendance already recorded")

// AttendanceLedger is the append-only record of validated attendance.
type AttendanceLedger interface {
	Append(record models.AttendanceRecord) error
	List() ([]models.AttendanceRecord, error)
	ListBySession(sessionID string) ([]models.AttendanceRecord, error)
}

// FileAttendanceLedger persists the ledger as a JSON document. An empty path
// keeps the ledger in memory only.
type FileAttendanceLedger struct {
	filePath   string
	fileClient file.FileOperations
	logger     zerolog.Logger

	mu      sync.Mutex
	loaded  bool
	records []models.AttendanceRecord
}

// NewFileAttendanceLedger initializes a new FileAttendanceLedger.
func NewFileAttendanceLedger(filePath string, fileClient file.FileOperations, logger zerolog.Logger) *FileAttendanceLedger {
	return &FileAttendanceLedger{
		filePath:   filePath,
		fileClient: fileClient,
		logger:     logger,
	}
}

// load reads the ledger file once. Caller holds mu.
func (l *FileAttendanceLedger) load() error {
	if l.loaded || l.filePath == "" {
		l.loaded = true
		return nil
	}

	var records []models.AttendanceRecord
	err := l.fileClient.ReadJsonFile(l.filePath, &records)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		l.logger.Error().Err(err).Str("file", l.filePath).Msg("Failed to read attendance ledger")
		return fmt.Errorf("failed to read attendance ledger: %w", err)
	}

	l.records = records
	l.loaded = true
	return nil
}

// Append adds a validated record. A second record for the same student and
// session is rejected with ErrAlreadyRecorded.
func (l *FileAttendanceLedger) Append(record models.AttendanceRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.load(); err != nil {
		return err
	}

	for _, existing := range l.records {
		if existing.SessionID == record.SessionID && existing.StudentID == record.StudentID {
			return ErrAlreadyRecorded
		}
	}

	next := append(l.records[:len(l.records):len(l.records)], record)
	if l.filePath != "" {
		if err := l.fileClient.WriteJsonFile(l.filePath, next); err != nil {
			l.logger.Error().Err(err).Str("file", l.filePath).Msg("Failed to write attendance ledger")
			return fmt.Errorf("failed to write attendance ledger: %w", err)
		}
	}
	l.records = next

	l.logger.Info().
		Str("record_id", record.ID).
		Str("session_id", record.SessionID).
		Str("student_id", record.StudentID).
		Msg("Attendance recorded")
	return nil
}

// List returns all records in append order.
func (l *FileAttendanceLedger) List() ([]models.AttendanceRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.load(); err != nil {
		return nil, err
	}
	out := make([]models.AttendanceRecord, len(l.records))
	copy(out, l.records)
	return out, nil
}

// ListBySession returns the records of one session in append order.
func (l *FileAttendanceLedger) ListBySession(sessionID string) ([]models.AttendanceRecord, error) {
	all, err := l.List()
	if err != nil {
		return nil, err
	}
	var out []models.AttendanceRecord
	for _, record := range all {
		if record.SessionID == sessionID {
			out = append(out, record)
		}
	}
	return out, nil
}
