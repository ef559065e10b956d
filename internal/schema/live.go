package schema

import (
	"context"
	"time"

	"github.com/koustreak/schemacache/internal/database"
	"github.com/koustreak/schemacache/internal/errs"
	"github.com/koustreak/schemacache/internal/logger"
)

// LiveBuilder introspects a connection through its catalog.
type LiveBuilder struct {
	filter Filter
	log    *logger.Logger
}

// NewLiveBuilder returns a builder applying filter to every listing.
func NewLiveBuilder(filter Filter, log *logger.Logger) *LiveBuilder {
	return &LiveBuilder{filter: filter, log: logger.OrNop(log)}
}

// Build opens a handle, lists and filters tables, and describes each one.
// Tables the login may not read are skipped; any other failure aborts the
// build. The handle is closed on every path.
func (b *LiveBuilder) Build(ctx context.Context, connectionID string, opener database.Opener) (Info, error) {
	log := b.log.With().Str("connection_id", connectionID).Logger()
	start := time.Now()

	h, err := opener.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := h.Close(); cerr != nil {
			log.WarnWith("closing introspection handle", cerr, nil)
		}
	}()

	names, err := h.TableNames(ctx, b.filter.IncludeViews)
	if err != nil {
		return nil, err
	}

	info := Info{}
	skipped := 0
	for _, name := range b.filter.Apply(names) {
		rows, err := h.DescribeTable(ctx, name)
		if err != nil {
			if errs.IsPermissionDenied(err) {
				skipped++
				log.WarnWith("skipping table without read access", err, map[string]any{"table": name})
				continue
			}
			return nil, err
		}

		cols := make([]Column, 0, len(rows))
		for _, row := range rows {
			cols = append(cols, Column{Name: row.Name, Type: LogicalType(h, row.TypeCode, row)})
		}
		info = append(info, Table{Name: name, Columns: cols})
	}

	log.InfoWith("live schema build finished", map[string]any{
		"tables":  len(info),
		"skipped": skipped,
		"elapsed": time.Since(start).String(),
	})
	return info, nil
}
