package history

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSave(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	createdAt := time.Date(2024, time.May, 15, 10, 30, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO query_history").
		WithArgs("q-1", "revenue last month?", "Revenue was $125,000.",
			sqlmock.AnyArg(), int64(230), int64(1500), createdAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewWithDB(db)
	err = store.Save(context.Background(), Entry{
		ID:         "q-1",
		Query:      "revenue last month?",
		Answer:     "Revenue was $125,000.",
		Sources:    []string{"stripe"},
		TokensUsed: 230,
		Duration:   1500 * time.Millisecond,
		CreatedAt:  createdAt,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	createdAt := time.Date(2024, time.May, 15, 10, 30, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "query", "answer", "sources", "tokens_used", "duration_ms", "created_at"}).
		AddRow("q-2", "sessions last week?", "85,000 sessions.", "{google_analytics}", int64(180), int64(900), createdAt).
		AddRow("q-1", "revenue last month?", "Revenue was $125,000.", "{stripe,google_analytics}", int64(230), int64(1500), createdAt.Add(-time.Hour))

	mock.ExpectQuery("SELECT id, query, answer, sources, tokens_used, duration_ms, created_at").
		WithArgs(20).
		WillReturnRows(rows)

	store := NewWithDB(db)
	entries, err := store.Recent(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "q-2", entries[0].ID)
	assert.Equal(t, []string{"google_analytics"}, entries[0].Sources)
	assert.Equal(t, 900*time.Millisecond, entries[0].Duration)
	assert.Equal(t, []string{"stripe", "google_analytics"}, entries[1].Sources)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO query_history").
		WillReturnError(assert.AnError)

	store := NewWithDB(db)
	err = store.Save(context.Background(), Entry{ID: "q-1"})
	assert.ErrorContains(t, err, "saving history entry")
}
