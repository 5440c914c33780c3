// Package datarecording stores queue activity in SQLite databases.
package datarecording

import (
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/fatih/structs"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// DataRecorder buffers rows of flat structs and writes them into tables.
type DataRecorder interface {
	// CreateTable creates a table with one column per field of sampleEntry.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers a row for a table created before.
	InsertData(tableName string, entry any)

	// ListTables returns the names of the created tables.
	ListTables() []string

	// Flush writes the buffered rows.
	Flush() error

	// Close flushes and closes the database.
	Close() error
}

// New creates a DataRecorder writing into path + ".sqlite3". An empty path
// picks a unique file name.
func New(path string) DataRecorder {
	return NewSQLiteWriter(path)
}

// NewWithDB creates a DataRecorder on an open database.
func NewWithDB(db *sql.DB) DataRecorder {
	return newWriter(db, "")
}

// NewSQLiteWriter creates a database file at path + ".sqlite3" and returns a
// writer for it. It panics if the file already exists, so that a recording
// never mixes the rows of two runs.
func NewSQLiteWriter(path string) *SQLiteWriter {
	if path == "" {
		path = "asyncq_" + xid.New().String()
	}

	filename := path + ".sqlite3"
	if _, err := os.Stat(filename); err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	fmt.Fprintf(os.Stderr, "Recording queue events to %s\n", filename)

	return newWriter(db, filename)
}

func newWriter(db *sql.DB, filename string) *SQLiteWriter {
	w := &SQLiteWriter{
		DB:        db,
		filename:  filename,
		batchSize: 100000,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() { _ = w.Flush() })

	return w
}

// A column is one field of a recorded struct.
type column struct {
	name    string
	sqlType string
}

type table struct {
	structType reflect.Type
	insertSQL  string
	rows       [][]any
}

// SQLiteWriter writes rows into a SQLite database in batches. It is safe for
// concurrent use, since queue hooks fire from many goroutines.
type SQLiteWriter struct {
	*sql.DB

	mu        sync.Mutex
	filename  string
	tables    map[string]*table
	order     []string
	batchSize int
	pending   int
}

// Filename returns the database file. It is empty for writers created with
// NewWithDB.
func (t *SQLiteWriter) Filename() string {
	return t.filename
}

// columnsOf returns the columns of a flat struct of exported fields with
// basic kinds.
func columnsOf(sample any) ([]column, error) {
	st := reflect.TypeOf(sample)
	if st == nil || st.Kind() != reflect.Struct {
		return nil, fmt.Errorf("entry of type %T is not a struct", sample)
	}

	columns := make([]column, 0, st.NumField())
	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		if !field.IsExported() {
			return nil, fmt.Errorf("field %s is not exported", field.Name)
		}

		sqlType := sqlTypeOf(field.Type.Kind())
		if sqlType == "" {
			return nil, fmt.Errorf("field %s of kind %s cannot be stored",
				field.Name, field.Type.Kind())
		}

		columns = append(columns, column{name: field.Name, sqlType: sqlType})
	}

	return columns, nil
}

func sqlTypeOf(kind reflect.Kind) string {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64:
		return "INTEGER"
	case reflect.Float32, reflect.Float64:
		return "REAL"
	case reflect.String:
		return "TEXT"
	default:
		return ""
	}
}

// CreateTable creates a table named tableName. It panics if the sample entry
// is not a flat struct of exported basic fields or if the table exists.
func (t *SQLiteWriter) CreateTable(tableName string, sampleEntry any) {
	columns, err := columnsOf(sampleEntry)
	if err != nil {
		panic(err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.tables[tableName]; exists {
		panic(fmt.Sprintf("table %s already exists", tableName))
	}

	defs := make([]string, len(columns))
	names := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = c.name + " " + c.sqlType
		names[i] = c.name
		marks[i] = "?"
	}

	t.mustExecute(fmt.Sprintf("CREATE TABLE %s (\n\t%s\n);",
		tableName, strings.Join(defs, ",\n\t")))

	t.tables[tableName] = &table{
		structType: reflect.TypeOf(sampleEntry),
		insertSQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			tableName, strings.Join(names, ", "), strings.Join(marks, ", ")),
	}
	t.order = append(t.order, tableName)
}

// InsertData buffers a row. The buffer is written once it holds batchSize
// rows. It panics if the table does not exist or the entry type differs from
// the table's sample.
func (t *SQLiteWriter) InsertData(tableName string, entry any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	table, exists := t.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != table.structType {
		panic(fmt.Sprintf("entry of type %T does not match table %s",
			entry, tableName))
	}

	table.rows = append(table.rows, structs.Values(entry))

	t.pending++
	if t.pending >= t.batchSize {
		err := t.flush()
		if err != nil {
			panic(err)
		}
	}
}

// ListTables returns the names of the created tables in creation order.
func (t *SQLiteWriter) ListTables() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]string(nil), t.order...)
}

// Flush writes the buffered rows of all tables in one transaction.
func (t *SQLiteWriter) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.flush()
}

// Close flushes the buffered rows and closes the database.
func (t *SQLiteWriter) Close() error {
	err := t.Flush()
	if err != nil {
		t.DB.Close()
		return err
	}

	return t.DB.Close()
}

func (t *SQLiteWriter) flush() error {
	if t.pending == 0 {
		return nil
	}

	tx, err := t.Begin()
	if err != nil {
		return err
	}

	for _, name := range t.order {
		err = writeRows(tx, t.tables[name])
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("write table %s: %w", name, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return err
	}

	for _, table := range t.tables {
		table.rows = nil
	}

	t.pending = 0

	return nil
}

func writeRows(tx *sql.Tx, table *table) error {
	if len(table.rows) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(table.insertSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range table.rows {
		_, err = stmt.Exec(row...)
		if err != nil {
			return err
		}
	}

	return nil
}

func (t *SQLiteWriter) mustExecute(query string) sql.Result {
	res, err := t.Exec(query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute: %s\n", query)
		panic(err)
	}

	return res
}
