package app

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pyscope/internal/core/errors"
	"pyscope/internal/core/ports"
	"pyscope/internal/data/filestore"
	"pyscope/internal/engine/analyzer"
	"pyscope/internal/engine/lexer"
	"pyscope/internal/shared/observability"
	"pyscope/internal/shared/util"
)

const noComments = "No comments found"

// Dependencies are the collaborators a Service is built from.
type Dependencies struct {
	Identity ports.IdentityProvider
	Store    ports.FileStore
	Engine   analyzer.Engine
	Policy   filestore.Policy
	// Limiter is optional; nil disables per-owner rate limiting.
	Limiter *util.LimiterRegistry
}

// Service authenticates callers, moves files through the store and runs the
// engine over them.
type Service struct {
	identity ports.IdentityProvider
	store    ports.FileStore
	engine   analyzer.Engine
	policy   filestore.Policy
	limiter  *util.LimiterRegistry
}

var _ ports.AnalysisService = (*Service)(nil)

func NewService(deps Dependencies) (*Service, error) {
	if deps.Identity == nil {
		return nil, fmt.Errorf("identity provider is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("file store is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	return &Service{
		identity: deps.Identity,
		store:    deps.Store,
		engine:   deps.Engine,
		policy:   deps.Policy,
		limiter:  deps.Limiter,
	}, nil
}

func (s *Service) Engine() string { return s.engine.Name() }

func (s *Service) Upload(ctx context.Context, credential, filename string, data []byte) (err error) {
	ctx, span := s.start(ctx, "Service.Upload", filename)
	defer func() { endSpan(span, err) }()

	owner, err := s.owner(ctx, credential)
	if err != nil {
		return err
	}
	if err := analyzer.CheckSourceText(data); err != nil {
		return errors.AddContext(err, errors.CtxFilename, filename)
	}
	if err := s.store.Write(ctx, owner, filename, data); err != nil {
		return errors.AddContext(err, errors.CtxOperation, "upload")
	}
	return nil
}

func (s *Service) Files(ctx context.Context, credential string) (names []string, err error) {
	ctx, span := s.start(ctx, "Service.Files", "")
	defer func() { endSpan(span, err) }()

	owner, err := s.owner(ctx, credential)
	if err != nil {
		return nil, err
	}
	names, err = s.store.List(ctx, owner)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxOperation, "list")
	}
	return names, nil
}

func (s *Service) Content(ctx context.Context, credential, filename string) (data []byte, err error) {
	ctx, span := s.start(ctx, "Service.Content", filename)
	defer func() { endSpan(span, err) }()

	owner, err := s.owner(ctx, credential)
	if err != nil {
		return nil, err
	}
	data, err = s.store.Read(ctx, owner, filename)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxOperation, "read")
	}
	return data, nil
}

func (s *Service) Remove(ctx context.Context, credential, filename string) (err error) {
	ctx, span := s.start(ctx, "Service.Remove", filename)
	defer func() { endSpan(span, err) }()

	owner, err := s.owner(ctx, credential)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, owner, filename); err != nil {
		return errors.AddContext(err, errors.CtxOperation, "delete")
	}
	return nil
}

// Validate reports whether filename is acceptable to the store.
func (s *Service) Validate(filename string) bool {
	return s.policy.ValidFilename(filename)
}

// Analyze reads a stored file for the caller and runs the requested queries.
func (s *Service) Analyze(ctx context.Context, req ports.AnalysisRequest) (res ports.AnalysisResult, err error) {
	ctx, span := s.start(ctx, "Service.Analyze", req.Filename)
	defer func() { endSpan(span, err) }()

	owner, err := s.owner(ctx, req.Credential)
	if err != nil {
		return ports.AnalysisResult{}, err
	}
	data, err := s.store.Read(ctx, owner, req.Filename)
	if err != nil {
		return ports.AnalysisResult{}, errors.AddContext(err, errors.CtxOperation, "analyze")
	}
	return s.run(ctx, req.Filename, data, req.Queries)
}

// AnalyzeText runs the engine over text that did not come from the store.
func (s *Service) AnalyzeText(ctx context.Context, filename string, text []byte, queries []ports.Query) (res ports.AnalysisResult, err error) {
	ctx, span := s.start(ctx, "Service.AnalyzeText", filename)
	defer func() { endSpan(span, err) }()
	return s.run(ctx, filename, text, queries)
}

func (s *Service) run(ctx context.Context, filename string, text []byte, queries []ports.Query) (ports.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.AnalysisResult{}, err
	}
	report, err := s.engine.Analyze(filename, text)
	if err != nil {
		return ports.AnalysisResult{}, err
	}
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.Int("pyscope.lines", report.Lines),
		attribute.Int("pyscope.anomalies", len(report.Anomalies)),
	)
	return report.Result(queries)
}

// owner resolves credential and charges one request to the owner's budget.
func (s *Service) owner(ctx context.Context, credential string) (string, error) {
	owner, err := s.identity.Resolve(ctx, credential)
	if err != nil {
		return "", err
	}
	if s.limiter != nil && !s.limiter.Allow(owner) {
		observability.RateLimitedTotal.Inc()
		return "", errors.AddContext(errors.New(errors.CodeRateLimited, "rate limit exceeded"), errors.CtxOwner, owner)
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("pyscope.owner", owner))
	return owner, nil
}

func (s *Service) start(ctx context.Context, name, filename string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("pyscope.engine", s.engine.Name())}
	if filename != "" {
		attrs = append(attrs, attribute.String("pyscope.filename", filename))
	}
	return observability.Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(errors.CodeOf(err)))
	}
	span.End()
}

// RenderComments joins comment texts one per line, or returns the
// placeholder when there are none.
func RenderComments(comments []lexer.Comment) string {
	if len(comments) == 0 {
		return noComments
	}
	lines := make([]string, 0, len(comments))
	for _, c := range comments {
		lines = append(lines, c.Text)
	}
	return strings.Join(lines, "\n")
}
