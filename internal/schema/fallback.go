package schema

import (
	"context"

	"go.yaml.in/yaml/v3"

	"github.com/koustreak/schemacache/internal/errs"
	"github.com/koustreak/schemacache/internal/filestore"
	"github.com/koustreak/schemacache/internal/logger"
)

// FallbackStatus tags how a fallback build went.
type FallbackStatus int

const (
	FallbackOK FallbackStatus = iota
	FallbackNoSource
	FallbackUnreadable
	FallbackUnparsable
	FallbackEmpty
)

func (s FallbackStatus) String() string {
	switch s {
	case FallbackOK:
		return "ok"
	case FallbackNoSource:
		return "no_source"
	case FallbackUnreadable:
		return "unreadable"
	case FallbackUnparsable:
		return "unparsable"
	case FallbackEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// FallbackResult is the outcome of a fallback build. Schema is empty
// unless Status is FallbackOK; Err carries the cause otherwise.
type FallbackResult struct {
	Schema Info
	Status FallbackStatus
	Err    error
}

// DefaultFallbackKey is the object read when a connection names none.
const DefaultFallbackKey = "schema.yaml"

type FallbackOptions struct {
	// Bucket is passed to the store; empty means the store's default.
	Bucket string

	// DefaultKey defaults to DefaultFallbackKey.
	DefaultKey string

	// MaxBytes bounds a description; zero means filestore.DefaultMaxObjectSize.
	MaxBytes int64
}

// FallbackBuilder projects an offline, pre-parsed DDL description into
// an Info without touching the database.
//
// The description is a YAML (or JSON) sequence:
//
//	[{table_name: orders, columns: [{name: id, type: INTEGER}, {name: total, type: "DECIMAL(10,2)"}]}]
type FallbackBuilder struct {
	store filestore.Store
	opts  FallbackOptions
	log   *logger.Logger
}

// NewFallbackBuilder reads descriptions from store. A nil store means no
// description is available and every build reports FallbackNoSource.
func NewFallbackBuilder(store filestore.Store, opts FallbackOptions, log *logger.Logger) *FallbackBuilder {
	if opts.DefaultKey == "" {
		opts.DefaultKey = DefaultFallbackKey
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = filestore.DefaultMaxObjectSize
	}
	return &FallbackBuilder{store: store, opts: opts, log: logger.OrNop(log)}
}

type ddlTable struct {
	TableName string      `yaml:"table_name"`
	Columns   []ddlColumn `yaml:"columns"`
}

type ddlColumn struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Build reads the description stored under key (or the default key).
// It never fails: problems are logged and reported through the status.
func (b *FallbackBuilder) Build(ctx context.Context, key string) FallbackResult {
	if key == "" {
		key = b.opts.DefaultKey
	}
	log := b.log.With().Str("bucket", b.opts.Bucket).Str("key", key).Logger()

	if b.store == nil {
		log.Warn("no fallback DDL store configured")
		return FallbackResult{Schema: Info{}, Status: FallbackNoSource, Err: errs.New(errs.ErrKindNotFound, "no fallback store configured")}
	}

	data, obj, err := filestore.ReadAll(ctx, b.store, b.opts.Bucket, key, b.opts.MaxBytes)
	if err != nil {
		if errs.IsNotFound(err) {
			log.WarnWith("fallback DDL description not found", err, nil)
			return FallbackResult{Schema: Info{}, Status: FallbackNoSource, Err: err}
		}
		log.WarnWith("fallback DDL description unreadable", err, nil)
		return FallbackResult{Schema: Info{}, Status: FallbackUnreadable, Err: err}
	}
	log = log.With().Str("etag", obj.ETag).Logger()

	info, err := b.parse(data, log)
	if err != nil {
		log.WarnWith("fallback DDL description unparsable", err, nil)
		return FallbackResult{Schema: Info{}, Status: FallbackUnparsable, Err: err}
	}
	if len(info) == 0 {
		log.Warn("fallback DDL description lists no tables")
		return FallbackResult{Schema: Info{}, Status: FallbackEmpty, Err: errs.Newf(errs.ErrKindNotFound, "fallback description %q lists no tables", key)}
	}

	log.InfoWith("fallback schema build finished", map[string]any{"tables": len(info)})
	return FallbackResult{Schema: info, Status: FallbackOK}
}

func (b *FallbackBuilder) parse(data []byte, log *logger.Logger) (Info, error) {
	var doc []ddlTable
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "parse fallback description", err)
	}

	info := make(Info, 0, len(doc))
	seenTables := make(map[string]bool, len(doc))
	for _, t := range doc {
		if t.TableName == "" {
			log.Warn("dropping fallback entry without a table name")
			continue
		}
		if seenTables[t.TableName] {
			log.WarnWith("dropping duplicate fallback table", nil, map[string]any{"table": t.TableName})
			continue
		}
		seenTables[t.TableName] = true

		cols := make([]Column, 0, len(t.Columns))
		seenCols := make(map[string]bool, len(t.Columns))
		for _, c := range t.Columns {
			if c.Name == "" || seenCols[c.Name] {
				log.WarnWith("dropping fallback column", nil, map[string]any{"table": t.TableName, "column": c.Name})
				continue
			}
			seenCols[c.Name] = true
			typ := c.Type
			if typ == "" {
				typ = UnknownType
			}
			cols = append(cols, Column{Name: c.Name, Type: typ})
		}
		info = append(info, Table{Name: t.TableName, Columns: cols})
	}
	return info, nil
}
