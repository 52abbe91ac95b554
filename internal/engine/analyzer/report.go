package analyzer

import (
	"pyscope/internal/core/ports"
	"pyscope/internal/engine/lexer"
	"pyscope/internal/engine/query"
	"pyscope/internal/engine/scope"
)

// Report is the per-call result of an Engine. It owns its tree and is
// discarded by the caller when done.
type Report struct {
	Filename  string
	Engine    string
	Tree      *scope.Tree
	Comments  []lexer.Comment
	Anomalies []lexer.Anomaly
	Lines     int
}

func (r *Report) Classes() ([]string, error) {
	return query.ListClasses(r.Tree)
}

func (r *Report) ClassInheritance() ([]query.ClassInfo, error) {
	return query.ClassInheritance(r.Tree)
}

func (r *Report) Functions() ([]string, error) {
	return query.ListFunctions(r.Tree)
}

func (r *Report) FunctionsByScope() (map[string][]string, error) {
	return query.FunctionsByScope(r.Tree)
}

func (r *Report) ListComments() []lexer.Comment {
	return query.ListComments(r.Comments)
}

// Result runs the requested queries. An empty list runs all of them.
func (r *Report) Result(queries []ports.Query) (ports.AnalysisResult, error) {
	if len(queries) == 0 {
		queries = ports.AllQueries()
	}
	out := ports.AnalysisResult{
		Filename:  r.Filename,
		Engine:    r.Engine,
		Anomalies: r.Anomalies,
	}
	for _, q := range queries {
		switch q {
		case ports.QueryClasses:
			classes, err := r.Classes()
			if err != nil {
				return ports.AnalysisResult{}, err
			}
			out.Classes = &classes
		case ports.QueryClassesWithParents:
			info, err := r.ClassInheritance()
			if err != nil {
				return ports.AnalysisResult{}, err
			}
			out.ClassesWithParents = &info
		case ports.QueryFunctions:
			funcs, err := r.Functions()
			if err != nil {
				return ports.AnalysisResult{}, err
			}
			out.Functions = &funcs
		case ports.QueryFunctionsUnderClasses:
			grouped, err := query.GroupFunctions(r.Tree)
			if err != nil {
				return ports.AnalysisResult{}, err
			}
			out.Grouped = grouped
			out.FunctionsUnderClasses = make(map[string][]string, len(grouped))
			for _, b := range grouped {
				out.FunctionsUnderClasses[b.Scope] = b.Functions
			}
		case ports.QueryComments:
			comments := r.ListComments()
			out.Comments = &comments
		}
	}
	return out, nil
}
