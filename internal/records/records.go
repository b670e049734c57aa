package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedSource indicates the record set as a whole lacks a declared
// column. This is a structural failure that aborts the run before any
// transfer; individual rows with blank values are merely non-qualifying.
var ErrMalformedSource = errors.New("malformed record source")

// Record is one row from the tabular source. Columns maps column name to the
// raw cell value. Records are immutable once loaded and live for one run.
type Record struct {
	BatchID string
	Columns map[string]string
}

// Criteria selects the records whose batches are transferred.
// A record qualifies when the trimmed MatchColumn value equals MatchValue
// exactly (case-sensitive) and the trimmed EmptyColumn value is blank.
type Criteria struct {
	MatchColumn string
	MatchValue  string
	EmptyColumn string
}

// Source loads records from an external tabular dataset.
type Source interface {
	LoadRecords(ctx context.Context) ([]Record, error)
}

// Filter returns the batch IDs of the records satisfying the criteria, in
// input order with duplicates removed. Rows missing either criteria column
// are excluded, not errored. When no row in the entire set carries one of the
// declared columns, the source is structurally malformed and Filter fails
// with ErrMalformedSource.
func Filter(recs []Record, criteria Criteria) ([]string, error) {
	if err := checkColumns(recs, criteria); err != nil {
		return nil, err
	}

	var ids []string
	seen := make(map[string]struct{}, len(recs))
	for _, rec := range recs {
		matchValue, ok := rec.Columns[criteria.MatchColumn]
		if !ok {
			continue
		}
		emptyValue, ok := rec.Columns[criteria.EmptyColumn]
		if !ok {
			continue
		}
		if strings.TrimSpace(matchValue) != criteria.MatchValue {
			continue
		}
		if strings.TrimSpace(emptyValue) != "" {
			continue
		}
		id := strings.TrimSpace(rec.BatchID)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func checkColumns(recs []Record, criteria Criteria) error {
	if len(recs) == 0 {
		return nil
	}
	matchSeen, emptySeen := false, false
	for _, rec := range recs {
		if _, ok := rec.Columns[criteria.MatchColumn]; ok {
			matchSeen = true
		}
		if _, ok := rec.Columns[criteria.EmptyColumn]; ok {
			emptySeen = true
		}
		if matchSeen && emptySeen {
			return nil
		}
	}
	if !matchSeen {
		return fmt.Errorf("%w: column %q not present in any record", ErrMalformedSource, criteria.MatchColumn)
	}
	return fmt.Errorf("%w: column %q not present in any record", ErrMalformedSource, criteria.EmptyColumn)
}
