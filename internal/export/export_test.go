package export

import (
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testQuery = "SELECT id, name FROM accounts"

func mockConn(t *testing.T) (*Conn, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &Conn{
		server:     "localhost",
		user:       "tester",
		credential: "secret",
		driver:     "postgres",
		dbs:        map[string]*sql.DB{"sales": db},
	}, mock
}

func writeScript(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "daily_sales.sql")
	require.NoError(t, os.WriteFile(path, []byte(testQuery), 0o600))
	return path
}

func accountRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name"}).
		AddRow(1, "acme").
		AddRow(2, "globex")
}

func TestNewConnValidation(t *testing.T) {
	tests := []struct {
		name                             string
		server, user, credential, driver string
	}{
		{name: "missing server", user: "u", credential: "p", driver: "postgres"},
		{name: "missing user", server: "s", credential: "p", driver: "postgres"},
		{name: "missing credential", server: "s", user: "u", driver: "postgres"},
		{name: "missing driver", server: "s", user: "u", credential: "p"},
		{name: "unsupported driver", server: "s", user: "u", credential: "p", driver: "oracle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConn(tt.server, tt.user, tt.credential, tt.driver)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}

	conn, err := NewConn("localhost", "tester", "secret", "mysql")
	require.NoError(t, err)
	assert.NoError(t, conn.Close())
}

func TestParseFormat(t *testing.T) {
	for _, ok := range []string{"csv", "CSV", " csv.gz ", "both", "raw"} {
		_, err := ParseFormat(ok)
		assert.NoError(t, err, ok)
	}

	_, err := ParseFormat("parquet")
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestExportScriptCSV(t *testing.T) {
	conn, mock := mockConn(t)
	mock.ExpectQuery(regexp.QuoteMeta(testQuery)).WillReturnRows(accountRows())

	dir := t.TempDir()
	script := writeScript(t, dir)
	outBase := filepath.Join(dir, "daily_sales")

	files, err := conn.ExportScript(context.Background(), "sales", script, FormatCSV, outBase)
	require.NoError(t, err)
	require.Equal(t, []string{outBase + ".csv"}, files)

	data, err := os.ReadFile(outBase + ".csv")
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,acme\n2,globex\n", string(data))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExportScriptGzip(t *testing.T) {
	conn, mock := mockConn(t)
	mock.ExpectQuery(regexp.QuoteMeta(testQuery)).WillReturnRows(accountRows())

	dir := t.TempDir()
	script := writeScript(t, dir)
	outBase := filepath.Join(dir, "daily_sales")

	files, err := conn.ExportScript(context.Background(), "sales", script, FormatCSVGzip, outBase)
	require.NoError(t, err)
	require.Equal(t, []string{outBase + ".csv.gz"}, files)

	file, err := os.Open(outBase + ".csv.gz")
	require.NoError(t, err)
	defer file.Close()

	gz, err := gzip.NewReader(file)
	require.NoError(t, err)
	defer gz.Close()

	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,acme\n2,globex\n", string(data))
}

func TestExportScriptBoth(t *testing.T) {
	conn, mock := mockConn(t)
	mock.ExpectQuery(regexp.QuoteMeta(testQuery)).WillReturnRows(accountRows())

	dir := t.TempDir()
	script := writeScript(t, dir)
	outBase := filepath.Join(dir, "daily_sales")

	files, err := conn.ExportScript(context.Background(), "sales", script, FormatBoth, outBase)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{outBase + ".csv", outBase + ".csv.gz"}, files)

	for _, path := range files {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestExportScriptMissingFile(t *testing.T) {
	conn, _ := mockConn(t)

	_, err := conn.ExportScript(context.Background(), "sales", "absent.sql", FormatCSV, "out")
	assert.Error(t, err)
}

func TestQueryReturnsTypedRows(t *testing.T) {
	conn, mock := mockConn(t)
	mock.ExpectQuery(regexp.QuoteMeta(testQuery)).WillReturnRows(
		sqlmock.NewRows([]string{"id", "name"}).
			AddRow(1, "acme").
			AddRow(2, nil))

	rows, err := conn.Query(context.Background(), "sales", testQuery)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, []string{"id", "name"}, rows[0].Columns)
	assert.Equal(t, []string{"1", "acme"}, rows[0].Values)
	assert.Equal(t, []string{"2", ""}, rows[1].Values, "NULL scans to an empty string")
}
