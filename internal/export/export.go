// Package export runs SQL scripts and writes their result sets to local
// files ready for upload. Connections are opened lazily, one per database
// name, and reused for the lifetime of the Conn.
package export

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"

	// SQL drivers selected by the connection configuration.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// ErrInvalidConfiguration is returned when a required connection parameter
// is missing or the configured driver is not supported.
var ErrInvalidConfiguration = errors.New("invalid sql configuration")

// Script is one configured export: the database to run against, the file
// holding the SQL text, and the blob path template for the uploaded results.
// BlobPath may contain Go time layout elements (e.g. "sales/2006/01/02"),
// expanded with the current UTC date at run time.
type Script struct {
	Database string `yaml:"database" json:"database"`
	Script   string `yaml:"script" json:"script"`
	BlobPath string `yaml:"blob_path" json:"blob_path"`
}

// Row is a single result row with its column names, returned by Query in
// place of writing files.
type Row struct {
	Columns []string
	Values  []string
}

// Conn manages SQL connections for export runs. It is not safe for
// concurrent use; the batch driver runs scripts sequentially.
type Conn struct {
	server     string
	user       string
	credential string
	driver     string
	dbs        map[string]*sql.DB
}

// NewConn validates the connection parameters and returns a Conn. No
// connection is opened until the first script runs. All four parameters are
// required; a missing one fails fast with ErrInvalidConfiguration.
func NewConn(server, user, credential, driver string) (*Conn, error) {
	switch {
	case server == "":
		return nil, fmt.Errorf("%w: server must be identified", ErrInvalidConfiguration)
	case user == "":
		return nil, fmt.Errorf("%w: user must be identified", ErrInvalidConfiguration)
	case credential == "":
		return nil, fmt.Errorf("%w: user credential must be identified", ErrInvalidConfiguration)
	case driver == "":
		return nil, fmt.Errorf("%w: sql driver must be identified", ErrInvalidConfiguration)
	}

	if _, err := buildDSN(driver, server, user, credential, "placeholder"); err != nil {
		return nil, err
	}

	return &Conn{
		server:     server,
		user:       user,
		credential: credential,
		driver:     driver,
		dbs:        map[string]*sql.DB{},
	}, nil
}

// Close releases every connection opened so far.
func (c *Conn) Close() error {
	var errs []error
	for name, db := range c.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Conn) database(name string) (*sql.DB, error) {
	if db, ok := c.dbs[name]; ok {
		return db, nil
	}

	dsn, err := buildDSN(c.driver, c.server, c.user, c.credential, name)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(c.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}

	c.dbs[name] = db
	return db, nil
}

func buildDSN(driver, server, user, credential, database string) (string, error) {
	switch driver {
	case "postgres":
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s sslmode=require",
			server, user, credential, database), nil
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true",
			user, credential, server, database), nil
	default:
		return "", fmt.Errorf("%w: unsupported sql driver %q", ErrInvalidConfiguration, driver)
	}
}

// Query runs a statement and returns every row as a typed record.
func (c *Conn) Query(ctx context.Context, database, query string) ([]Row, error) {
	db, err := c.database(database)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed on %s: %w", database, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		values, err := scanStrings(rows, len(columns))
		if err != nil {
			return nil, err
		}
		out = append(out, Row{Columns: columns, Values: values})
	}

	return out, rows.Err()
}

// ExportScript loads the SQL text from scriptFile, runs it against the named
// database, and writes the result set to outBase plus the format's file
// extension. The result set is streamed row by row rather than held in
// memory. Returns the paths of every file written.
func (c *Conn) ExportScript(ctx context.Context, database, scriptFile string, format Format, outBase string) ([]string, error) {
	query, err := os.ReadFile(scriptFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read script %s: %w", scriptFile, err)
	}

	db, err := c.database(database)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, string(query))
	if err != nil {
		return nil, fmt.Errorf("script %s failed on %s: %w", scriptFile, database, err)
	}
	defer rows.Close()

	return writeRows(rows, format, outBase)
}

// target is one open output file with its csv writer and close chain.
type target struct {
	path    string
	csv     *csv.Writer
	closers []io.Closer
}

func writeRows(rows *sql.Rows, format Format, outBase string) ([]string, error) {
	targets, err := openTargets(format, outBase)
	if err != nil {
		return nil, err
	}

	columns, err := rows.Columns()
	if err != nil {
		closeTargets(targets)
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	for _, tgt := range targets {
		if err := tgt.csv.Write(columns); err != nil {
			closeTargets(targets)
			return nil, fmt.Errorf("failed to write header to %s: %w", tgt.path, err)
		}
	}

	count := 0
	for rows.Next() {
		values, err := scanStrings(rows, len(columns))
		if err != nil {
			closeTargets(targets)
			return nil, err
		}

		for _, tgt := range targets {
			if err := tgt.csv.Write(values); err != nil {
				closeTargets(targets)
				return nil, fmt.Errorf("failed to write row to %s: %w", tgt.path, err)
			}
		}
		count++
	}

	if err := rows.Err(); err != nil {
		closeTargets(targets)
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}

	if err := closeTargets(targets); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(targets))
	for _, tgt := range targets {
		paths = append(paths, tgt.path)
	}

	log.Info().Int("rows", count).Strs("files", paths).Msg("export written")

	return paths, nil
}

func openTargets(format Format, outBase string) ([]*target, error) {
	var targets []*target

	if format == FormatCSV || format == FormatBoth {
		path := outBase + ".csv"
		file, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", path, err)
		}
		targets = append(targets, &target{
			path:    path,
			csv:     csv.NewWriter(file),
			closers: []io.Closer{file},
		})
	}

	if format == FormatCSVGzip || format == FormatBoth {
		path := outBase + ".csv.gz"
		file, err := os.Create(path)
		if err != nil {
			closeTargets(targets)
			return nil, fmt.Errorf("failed to create %s: %w", path, err)
		}
		gz := gzip.NewWriter(file)
		targets = append(targets, &target{
			path:    path,
			csv:     csv.NewWriter(gz),
			closers: []io.Closer{gz, file},
		})
	}

	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: format %q produces no files", ErrInvalidConfiguration, format)
	}

	return targets, nil
}

// closeTargets flushes and closes every target, innermost writer first.
func closeTargets(targets []*target) error {
	var errs []error
	for _, tgt := range targets {
		tgt.csv.Flush()
		if err := tgt.csv.Error(); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush %s: %w", tgt.path, err))
		}
		for _, closer := range tgt.closers {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close %s: %w", tgt.path, err))
			}
		}
	}
	return errors.Join(errs...)
}

func scanStrings(rows *sql.Rows, n int) ([]string, error) {
	holders := make([]sql.NullString, n)
	ptrs := make([]any, n)
	for i := range holders {
		ptrs[i] = &holders[i]
	}

	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	values := make([]string, n)
	for i, holder := range holders {
		if holder.Valid {
			values[i] = holder.String
		}
	}

	return values, nil
}
