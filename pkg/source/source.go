// pkg/source/source.go
package source

import (
	"context"
	"fmt"
	"strconv"

	"github.com/lib/pq"

	"github.com/David-Botos/clinical-ingress/pkg/model"
)

// RecordSource produces one raw record set per Read
type RecordSource interface {
	// Name identifies the dataset in logs and results
	Name() string

	// Read loads the whole record set
	Read(ctx context.Context) (*model.Frame, error)
}

// Describer is implemented by sources that report what they last read
type Describer interface {
	Metadata() *model.SourceMetadata
}

// Warner is implemented by sources that tolerated malformed input during
// the last Read
type Warner interface {
	Warnings() []string
}

// TableQuery builds a SELECT over a whole table with quoted identifiers.
// An empty schema selects from the connection's search path.
func TableQuery(schema, table string) string {
	if schema == "" {
		return fmt.Sprintf("SELECT * FROM %s", pq.QuoteIdentifier(table))
	}
	return fmt.Sprintf("SELECT * FROM %s.%s", pq.QuoteIdentifier(schema), pq.QuoteIdentifier(table))
}

// uniqueNames suffixes repeated column names with ".1", ".2", ... so every
// column of the frame stays addressable
func uniqueNames(names []string) []string {
	out := make([]string, len(names))
	seen := make(map[string]int, len(names))
	taken := make(map[string]bool, len(names))
	for _, name := range names {
		taken[name] = true
	}
	for i, name := range names {
		n, dup := seen[name]
		seen[name] = n + 1
		if !dup {
			out[i] = name
			continue
		}
		candidate := name + "." + strconv.Itoa(n)
		for taken[candidate] {
			n++
			candidate = name + "." + strconv.Itoa(n)
		}
		seen[name] = n + 1
		taken[candidate] = true
		out[i] = candidate
	}
	return out
}
