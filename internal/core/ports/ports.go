package ports

import (
	"context"
	"fmt"
	"strings"

	"pyscope/internal/engine/lexer"
	"pyscope/internal/engine/query"
)

// FileStore abstracts owner-scoped raw source persistence.
type FileStore interface {
	Read(ctx context.Context, owner, filename string) ([]byte, error)
	Write(ctx context.Context, owner, filename string, data []byte) error
	Delete(ctx context.Context, owner, filename string) error
	List(ctx context.Context, owner string) ([]string, error)
	Backend() string
}

// IdentityProvider maps a bearer credential to its owner.
type IdentityProvider interface {
	Resolve(ctx context.Context, credential string) (string, error)
}

// Query names one structural question. The values double as JSON keys.
type Query string

const (
	QueryClasses               Query = "classes"
	QueryClassesWithParents    Query = "classes_with_parents"
	QueryFunctions             Query = "functions"
	QueryFunctionsUnderClasses Query = "functions_under_classes"
	QueryComments              Query = "comments"
)

// AllQueries lists every query in response order.
func AllQueries() []Query {
	return []Query{QueryClasses, QueryClassesWithParents, QueryFunctions, QueryFunctionsUnderClasses, QueryComments}
}

// ParseQueries accepts names or comma-separated lists of names. An empty
// input selects every query.
func ParseQueries(values []string) ([]Query, error) {
	var out []Query
	seen := map[Query]bool{}
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			name := Query(strings.TrimSpace(part))
			if name == "" {
				continue
			}
			if !isQuery(name) {
				return nil, fmt.Errorf("unknown query %q", name)
			}
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	if len(out) == 0 {
		return AllQueries(), nil
	}
	return out, nil
}

func isQuery(q Query) bool {
	for _, known := range AllQueries() {
		if q == known {
			return true
		}
	}
	return false
}

// AnalysisRequest addresses a stored file on behalf of a credential holder.
type AnalysisRequest struct {
	Credential string
	Filename   string
	Queries    []Query
}

// AnalysisResult carries the requested query outputs. Unrequested queries
// stay nil and are left out of the JSON form.
type AnalysisResult struct {
	Filename              string              `json:"filename"`
	Engine                string              `json:"engine"`
	Classes               *[]string           `json:"classes,omitempty"`
	ClassesWithParents    *[]query.ClassInfo  `json:"classes_with_parents,omitempty"`
	Functions             *[]string           `json:"functions,omitempty"`
	FunctionsUnderClasses map[string][]string `json:"functions_under_classes,omitempty"`
	Comments              *[]lexer.Comment    `json:"comments,omitempty"`
	Anomalies             []lexer.Anomaly     `json:"anomalies,omitempty"`
	Grouped               []query.Bucket      `json:"-"`
}

// AnalysisService is the driving port used by the CLI and MCP adapters.
type AnalysisService interface {
	Upload(ctx context.Context, credential, filename string, data []byte) error
	Files(ctx context.Context, credential string) ([]string, error)
	Content(ctx context.Context, credential, filename string) ([]byte, error)
	Remove(ctx context.Context, credential, filename string) error
	Validate(filename string) bool
	Analyze(ctx context.Context, req AnalysisRequest) (AnalysisResult, error)
	AnalyzeText(ctx context.Context, filename string, text []byte, queries []Query) (AnalysisResult, error)
}
