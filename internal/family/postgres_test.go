package family

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockDirectory(t *testing.T) (*PostgresDirectory, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlxDB := sqlx.NewDb(db, "postgres")
	return NewPostgresDirectoryFromDB(sqlxDB, zap.NewNop()), mock
}

func TestPostgresMembers(t *testing.T) {
	dir, mock := newMockDirectory(t)

	mock.ExpectQuery(`SELECT .+ FROM family_members WHERE deleted_at IS NULL ORDER BY name`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "role", "calendar_source", "active"}).
			AddRow("mem-alex", "Alex", "parent", "alex@family.local", true).
			AddRow("mem-sam", "Sam", "child", "", true))

	members, err := dir.Members(context.Background())
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Alex", members[0].Name)
	assert.Equal(t, "alex@family.local", members[0].CalendarSource)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMemberByName(t *testing.T) {
	dir, mock := newMockDirectory(t)

	mock.ExpectQuery(`SELECT .+ FROM family_members WHERE deleted_at IS NULL AND LOWER\(name\) = LOWER\(\$1\)`).
		WithArgs("alex").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "role", "calendar_source", "active"}).
			AddRow("mem-alex", "Alex", "parent", "alex@family.local", true))

	m, err := dir.MemberByName(context.Background(), "alex")
	require.NoError(t, err)
	assert.Equal(t, "mem-alex", m.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMemberByNameNotFound(t *testing.T) {
	dir, mock := newMockDirectory(t)

	mock.ExpectQuery(`SELECT .+ FROM family_members`).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "role", "calendar_source", "active"}))

	_, err := dir.MemberByName(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresResourceByName(t *testing.T) {
	dir, mock := newMockDirectory(t)

	mock.ExpectQuery(`SELECT .+ FROM resources WHERE deleted_at IS NULL AND LOWER\(name\) = LOWER\(\$1\)`).
		WithArgs("car").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "type", "capacity", "calendar_source", "active"}).
			AddRow("res-car", "Car", "vehicle", 1, "car@family.local", true))

	r, err := dir.ResourceByName(context.Background(), "car")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Capacity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresConstraintsFor(t *testing.T) {
	dir, mock := newMockDirectory(t)

	rows := sqlmock.NewRows([]string{
		"id", "name", "description", "member_id", "type", "level", "priority",
		"window_start", "window_end", "days_of_week", "active",
	}).
		AddRow("con-school", "School hours", "", "mem-sam", "blocked_window", "hard", 10,
			"08:30", "15:30", pq.Int64Array{0, 1, 2, 3, 4}, true).
		AddRow("con-dinner", "Family dinner", "", "", "blocked_window", "soft", 5,
			"18:00", "19:00", pq.Int64Array{}, true)

	mock.ExpectQuery(`SELECT .+ FROM\s+constraints`).
		WithArgs("mem-sam").
		WillReturnRows(rows)

	constraints, err := dir.ConstraintsFor(context.Background(), "mem-sam")
	require.NoError(t, err)
	require.Len(t, constraints, 2)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, constraints[0].DaysOfWeek)
	assert.Equal(t, LevelHard, constraints[0].Level)
	assert.Empty(t, constraints[1].DaysOfWeek)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueryError(t *testing.T) {
	dir, mock := newMockDirectory(t)

	mock.ExpectQuery(`SELECT .+ FROM family_members`).
		WillReturnError(assert.AnError)

	_, err := dir.Members(context.Background())
	assert.Error(t, err)
}
