package database

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
)

// bootstrapQuery is the catalog query every Lead queue runs against a
// freshly connected database on its first successful connection. The
// query selects every row of the query-catalog table; an empty result
// means the catalog table is present but unpopulated (or orphaned from a
// prior deployment), while a populated result is the QTC payload.
const bootstrapQuery = "SELECT * FROM query_catalog"

var fromTableRe = regexp.MustCompile(`(?i)\bFROM\s+([A-Za-z_][A-Za-z0-9_\.]*)`)

// bootstrapRow is one element of the bootstrap query's JSON payload.
type bootstrapRow struct {
	Ref     int    `json:"ref"`
	Query   string `json:"query"`
	Name    string `json:"name"`
	Queue   int    `json:"queue"`
	Timeout int    `json:"timeout"`
	Type    int    `json:"type"`
}

// Bootstrap runs the first-connection protocol described in the data
// model: it executes query against conn, and depending on whether the
// result is empty or populated either (a) handles an orphaned catalog
// table, or (b) loads the QTC from the JSON payload. Every path, success
// or failure of any intermediate step, ends with BootstrapCompleted set
// and waiters on WaitForInitialConnection released.
func (q *DatabaseQueue) Bootstrap(ctx context.Context, adapter EngineAdapter, conn *ConnectionHandle, query string) error {
	if !q.IsLead {
		return fmt.Errorf("database: bootstrap only runs on a lead queue")
	}
	q.bootstrapMu.Lock()
	defer q.bootstrapMu.Unlock()
	defer func() {
		q.BootstrapCompleted = true
		q.initialConnOnce.Do(func() { close(q.initialConnCh) })
	}()

	result, err := adapter.Execute(ctx, conn, &QueryRequest{SQL: query, Database: q.DatabaseName})
	if err != nil || result == nil || !result.Success {
		return fmt.Errorf("%w: bootstrap query failed: %v", ErrBackendProtocol, err)
	}

	if result.RowCount == 0 {
		q.EmptyDatabase = true
		if table, ok := extractFromTable(query); ok {
			dropReq := &QueryRequest{SQL: "DROP TABLE " + table, Database: q.DatabaseName}
			if dropResult, dropErr := adapter.Execute(ctx, conn, dropReq); dropErr == nil && dropResult != nil && dropResult.Success {
				q.OrphanedTableDropped = true
			}
		}
		return nil
	}

	return q.loadQTCFromPayload(result.Rows)
}

// extractFromTable finds the first "FROM <table>" token (case-insensitive,
// word-boundary) in query and returns the table name, trimmed at the next
// whitespace or a WHERE clause. It returns false when no FROM keyword is
// present, in which case no drop is attempted.
func extractFromTable(query string) (string, bool) {
	m := fromTableRe.FindStringSubmatch(query)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// loadQTCFromPayload parses the bootstrap query's JSON result and loads
// each row into the queue's QTC. A malformed payload or non-array root
// leaves the QTC empty but is not fatal. A single bad row only skips that
// row; the rest still load.
func (q *DatabaseQueue) loadQTCFromPayload(payload string) error {
	var rows []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &rows); err != nil {
		return fmt.Errorf("%w: %v", ErrBootstrapInvariantBroken, err)
	}

	for _, raw := range rows {
		var row bootstrapRow
		if err := json.Unmarshal(raw, &row); err != nil {
			continue // malformed row: skip, keep loading the rest
		}
		entry := &QueryCacheEntry{
			QueryRef:    row.Ref,
			QueryType:   row.Type,
			SQL:         row.Query,
			Description: row.Name,
			QueueType:   queueTypeFromInt(row.Queue),
			Timeout:     row.Timeout,
		}
		_ = q.QTC.AddEntry(entry) // duplicate/capacity failures abort only this entry
	}
	return nil
}

