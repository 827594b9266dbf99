package datarecording

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/fatih/structs"
	"github.com/tebeka/atexit"
)

// ClickHouseRecorder streams records into a ClickHouse database over the
// native bulk protocol. It suits long traced runs that produce millions of
// rows, where a local SQLite file becomes the bottleneck.
type ClickHouseRecorder struct {
	conn      clickhouse.Conn
	mu        sync.Mutex
	batchSize int
	closed    bool

	tables     map[string]*table
	entryCount int

	session *sessionRecorder
}

// NewClickHouse creates a DataRecorder that writes to the ClickHouse server
// at addr. A batchSize of 0 selects the default of 100000 entries. Entry
// fields must use fixed-width integer types so they map onto column types
// exactly.
func NewClickHouse(addr, database, username, password string, batchSize int) DataRecorder {
	if batchSize == 0 {
		batchSize = 100000
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:      time.Second * 30,
		MaxOpenConns:     5,
		MaxIdleConns:     5,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
		BlockBufferSize:  10,
	})
	if err != nil {
		panic(fmt.Errorf("failed to connect to ClickHouse: %w", err))
	}

	if err := conn.Ping(context.Background()); err != nil {
		panic(fmt.Errorf("failed to ping ClickHouse: %w", err))
	}

	r := &ClickHouseRecorder{
		conn:      conn,
		batchSize: batchSize,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() { r.Flush() })

	r.session = startSession(r)

	return r
}

// CreateTable creates a MergeTree table whose columns are the fields of
// sampleEntry.
func (r *ClickHouseRecorder) CreateTable(tableName string, sampleEntry any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	types := reflect.TypeOf(sampleEntry)
	names := structs.Names(sampleEntry)

	columns := make([]string, 0, len(names))
	for i, name := range names {
		columns = append(columns,
			name+" "+columnType(types.Field(i).Type.Kind()))
	}

	createSQL := "CREATE TABLE IF NOT EXISTS " + tableName +
		" (\n\t" + strings.Join(columns, ",\n\t") + "\n)" +
		" ENGINE = MergeTree()\nORDER BY tuple()"

	err := r.conn.Exec(context.Background(), createSQL)
	if err != nil {
		panic(fmt.Errorf("failed to create table %s: %w", tableName, err))
	}

	r.tables[tableName] = &table{
		structType: types,
		entries:    []any{},
	}
}

func columnType(kind reflect.Kind) string {
	switch kind {
	case reflect.Bool:
		return "Bool"
	case reflect.Int8:
		return "Int8"
	case reflect.Int16:
		return "Int16"
	case reflect.Int32:
		return "Int32"
	case reflect.Int64:
		return "Int64"
	case reflect.Uint8:
		return "UInt8"
	case reflect.Uint16:
		return "UInt16"
	case reflect.Uint32:
		return "UInt32"
	case reflect.Uint64:
		return "UInt64"
	case reflect.Float32:
		return "Float32"
	case reflect.Float64:
		return "Float64"
	case reflect.String:
		return "String"
	default:
		panic(fmt.Sprintf("field kind %s cannot map to a ClickHouse column", kind))
	}
}

// InsertData buffers an entry for the named table.
func (r *ClickHouseRecorder) InsertData(tableName string, entry any) {
	r.mu.Lock()

	table, exists := r.tables[tableName]
	if !exists {
		r.mu.Unlock()
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	table.entries = append(table.entries, entry)
	r.entryCount++

	if r.entryCount >= r.batchSize {
		r.mu.Unlock()
		r.Flush()
		return
	}

	r.mu.Unlock()
}

// ListTables returns the names of all created tables.
func (r *ClickHouseRecorder) ListTables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	tables := make([]string, 0, len(r.tables))
	for name := range r.tables {
		tables = append(tables, name)
	}

	slices.Sort(tables)

	return tables
}

// Flush sends all buffered entries as per-table batches.
func (r *ClickHouseRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entryCount == 0 {
		return
	}

	ctx := context.Background()

	for tableName, table := range r.tables {
		if len(table.entries) == 0 {
			continue
		}

		r.flushTable(ctx, tableName, table)
	}

	r.entryCount = 0
}

func (r *ClickHouseRecorder) flushTable(
	ctx context.Context,
	tableName string,
	table *table,
) {
	batch, err := r.conn.PrepareBatch(ctx, "INSERT INTO "+tableName)
	if err != nil {
		panic(fmt.Errorf("failed to prepare batch for %s: %w", tableName, err))
	}

	for _, entry := range table.entries {
		fields := reflect.ValueOf(entry)

		v := make([]any, 0, fields.NumField())
		for i := 0; i < fields.NumField(); i++ {
			v = append(v, fields.Field(i).Interface())
		}

		if err := batch.Append(v...); err != nil {
			panic(fmt.Errorf("failed to append to batch: %w", err))
		}
	}

	if err := batch.Send(); err != nil {
		panic(fmt.Errorf("failed to send batch: %w", err))
	}

	table.entries = nil
}

// Close records the session end, flushes, and closes the connection.
// Closing twice is a no-op.
func (r *ClickHouseRecorder) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	if r.session != nil {
		r.session.End()
	}

	r.Flush()

	err := r.conn.Close()
	if err != nil {
		return fmt.Errorf("failed to close ClickHouse connection: %w", err)
	}

	return nil
}
