// Package export publishes query results to object storage and hands back
// a presigned download link.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/koustreak/nlsql/internal/database"
	"github.com/koustreak/nlsql/internal/errs"
	"github.com/koustreak/nlsql/internal/filestore"
	"github.com/koustreak/nlsql/internal/logger"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts "json" or "csv", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", errs.Newf(errs.ErrKindInvalidInput, "unsupported export format: %q", s)
	}
}

func (f Format) contentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

// Result locates an uploaded export.
type Result struct {
	Format    Format    `json:"format"`
	Bucket    string    `json:"bucket"`
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Options struct {
	Bucket string
	// Prefix is the first key segment, "exports" when empty.
	Prefix string
	URLTTL time.Duration
	Logger *logger.Logger
}

// Exporter is safe for concurrent use.
type Exporter struct {
	store  filestore.Store
	bucket string
	prefix string
	ttl    time.Duration
	log    *logger.Logger

	now   func() time.Time
	newID func() string

	mu      sync.Mutex
	ensured bool
}

func New(store filestore.Store, opts Options) *Exporter {
	prefix := strings.Trim(opts.Prefix, "/")
	if prefix == "" {
		prefix = "exports"
	}
	ttl := opts.URLTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Exporter{
		store:  store,
		bucket: opts.Bucket,
		prefix: prefix,
		ttl:    ttl,
		log:    log.Component("export"),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// Export encodes result, uploads it under
// <prefix>/<yyyy>/<mm>/<dd>/<uuid>.<ext> and presigns a GET URL.
func (e *Exporter) Export(ctx context.Context, format Format, result *database.QueryResult) (*Result, error) {
	if result == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "nothing to export")
	}

	var buf bytes.Buffer
	if err := Encode(&buf, format, result); err != nil {
		return nil, err
	}

	if err := e.ensureBucket(ctx); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	key := path.Join(e.prefix, now.Format("2006/01/02"), e.newID()+"."+string(format))

	info, err := e.store.PutObject(ctx, e.bucket, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), format.contentType())
	if err != nil {
		return nil, err
	}

	url, err := e.store.PresignGetURL(ctx, e.bucket, key, e.ttl)
	if err != nil {
		return nil, err
	}

	e.log.InfoWith("result exported", map[string]any{
		"bucket": e.bucket,
		"key":    key,
		"rows":   result.RowCount(),
		"bytes":  info.Size,
	})

	return &Result{
		Format:    format,
		Bucket:    e.bucket,
		Key:       key,
		Size:      info.Size,
		URL:       url,
		ExpiresAt: now.Add(e.ttl),
	}, nil
}

func (e *Exporter) ensureBucket(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ensured {
		return nil
	}
	if err := e.store.EnsureBucket(ctx, e.bucket); err != nil {
		return err
	}
	e.ensured = true
	return nil
}

// Encode writes result to w in format. JSON carries both columns and rows;
// CSV writes a header row followed by one record per row in column order.
func Encode(w io.Writer, format Format, result *database.QueryResult) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		if err := enc.Encode(result); err != nil {
			return errs.Wrap(errs.ErrKindInvalidInput, "failed to encode json export", err)
		}
		return nil
	case FormatCSV:
		return encodeCSV(w, result)
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "unsupported export format: %q", format)
	}
}

func encodeCSV(w io.Writer, result *database.QueryResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(result.Columns); err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "failed to write csv header", err)
	}
	record := make([]string, len(result.Columns))
	for _, row := range result.Rows {
		for i, col := range result.Columns {
			record[i] = csvValue(row[col])
		}
		if err := cw.Write(record); err != nil {
			return errs.Wrap(errs.ErrKindInvalidInput, "failed to write csv row", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "failed to flush csv", err)
	}
	return nil
}

func csvValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
