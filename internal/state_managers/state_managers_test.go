package state_managers

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/benmeehan/geo-attendance/internal/mocks"
	"github.com/benmeehan/geo-attendance/internal/models"
	"github.com/benmeehan/geo-attendance/pkg/file"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionStore(t *testing.T) {
	store := NewMemorySessionStore()
	t0 := time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(models.SessionDescriptor{SessionID: "b", CreatedAt: t0.Add(time.Minute)}))
	require.NoError(t, store.Save(models.SessionDescriptor{SessionID: "a", CreatedAt: t0}))
	assert.Error(t, store.Save(models.SessionDescriptor{}))

	got, err := store.Get("a")
	require.NoError(t, err)
	assert.Equal(t, t0, got.CreatedAt)

	list := store.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].SessionID)
	assert.Equal(t, 2, store.Count())

	require.NoError(t, store.Delete("a"))
	_, err = store.Get("a")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, store.Delete("a"), ErrSessionNotFound)
}

func record(id, session, student string) models.AttendanceRecord {
	return models.AttendanceRecord{ID: id, SessionID: session, StudentID: student, Validated: true}
}

func TestFileAttendanceLedger_PersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance.json")
	fs := file.NewFileService()

	ledger := NewFileAttendanceLedger(path, fs, zerolog.Nop())
	require.NoError(t, ledger.Append(record("r1", "s1", "alice")))
	require.NoError(t, ledger.Append(record("r2", "s1", "bob")))
	require.NoError(t, ledger.Append(record("r3", "s2", "alice")))

	reloaded := NewFileAttendanceLedger(path, fs, zerolog.Nop())
	all, err := reloaded.List()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "r1", all[0].ID)

	s1, err := reloaded.ListBySession("s1")
	require.NoError(t, err)
	assert.Len(t, s1, 2)
}

func TestFileAttendanceLedger_RejectsDuplicates(t *testing.T) {
	ledger := NewFileAttendanceLedger("", nil, zerolog.Nop())

	require.NoError(t, ledger.Append(record("r1", "s1", "alice")))
	assert.ErrorIs(t, ledger.Append(record("r2", "s1", "alice")), ErrAlreadyRecorded)

	all, err := ledger.List()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestFileAttendanceLedger_WriteFailureKeepsState(t *testing.T) {
	fileOps := new(mocks.MockFileOperations)
	fileOps.On("ReadJsonFile", "ledger.json", mock.Anything).Return(nil)
	fileOps.On("WriteJsonFile", "ledger.json", mock.Anything).Return(errors.New("disk full"))

	ledger := NewFileAttendanceLedger("ledger.json", fileOps, zerolog.Nop())
	err := ledger.Append(record("r1", "s1", "alice"))

	assert.ErrorContains(t, err, "disk full")
	all, err := ledger.List()
	require.NoError(t, err)
	assert.Empty(t, all)
	fileOps.AssertExpectations(t)
}

func TestFileAttendanceLedger_ReadFailure(t *testing.T) {
	fileOps := new(mocks.MockFileOperations)
	fileOps.On("ReadJsonFile", "ledger.json", mock.Anything).Return(errors.New("corrupt"))

	ledger := NewFileAttendanceLedger("ledger.json", fileOps, zerolog.Nop())

	assert.Error(t, ledger.Append(record("r1", "s1", "alice")))
}
