package app

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyscope/internal/core/config"
	"pyscope/internal/core/errors"
	"pyscope/internal/core/ports"
	"pyscope/internal/data/filestore"
	"pyscope/internal/data/identity"
	"pyscope/internal/engine/analyzer"
	"pyscope/internal/engine/lexer"
	"pyscope/internal/shared/util"
)

const sample = `# Animals module
class Animal:
    def speak(self):
        pass  # override me

class Dog(Animal):
    def speak(self):
        return "woof"

def global_function():
    pass
`

func newService(t *testing.T, limiter *util.LimiterRegistry) *Service {
	t.Helper()
	svc, err := NewService(Dependencies{
		Identity: identity.NewStaticProvider(map[string]string{"tok-a": "alice", "tok-b": "bob"}),
		Store:    filestore.NewDiskStore(afero.NewMemMapFs(), "/uploads", filestore.DefaultPolicy()),
		Engine:   analyzer.NewNative(analyzer.DefaultOptions()),
		Policy:   filestore.DefaultPolicy(),
		Limiter:  limiter,
	})
	require.NoError(t, err)
	return svc
}

func TestService_UploadAndAnalyze(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil)

	require.NoError(t, svc.Upload(ctx, "tok-a", "animals.py", []byte(sample)))

	files, err := svc.Files(ctx, "Bearer tok-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"animals.py"}, files)

	res, err := svc.Analyze(ctx, ports.AnalysisRequest{Credential: "tok-a", Filename: "animals.py"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Animal", "Dog"}, *res.Classes)
	assert.Equal(t, []string{"speak", "speak", "global_function"}, *res.Functions)
	assert.Equal(t, []string{"global_function"}, res.FunctionsUnderClasses["Global_Functions"])
	assert.Equal(t, []string{"Animal"}, (*res.ClassesWithParents)[1].ParentClasses)
	require.Len(t, *res.Comments, 2)
	assert.Equal(t, "native", res.Engine)

	content, err := svc.Content(ctx, "tok-a", "animals.py")
	require.NoError(t, err)
	assert.Equal(t, sample, string(content))
}

func TestService_OwnersAreIsolated(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil)
	require.NoError(t, svc.Upload(ctx, "tok-a", "animals.py", []byte(sample)))

	_, err := svc.Content(ctx, "tok-b", "animals.py")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))

	files, err := svc.Files(ctx, "tok-b")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestService_Errors(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil)

	_, err := svc.Files(ctx, "nope")
	assert.True(t, errors.IsCode(err, errors.CodeUnauthenticated))

	err = svc.Upload(ctx, "tok-a", "notes.txt", []byte("x"))
	assert.True(t, errors.IsCode(err, errors.CodeInvalidExtension))

	err = svc.Upload(ctx, "tok-a", "blob.py", []byte{0x00, 0x01})
	assert.True(t, errors.IsCode(err, errors.CodeNotSourceText))

	err = svc.Remove(ctx, "tok-a", "missing.py")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))

	_, err = svc.Analyze(ctx, ports.AnalysisRequest{Credential: "tok-a", Filename: "missing.py"})
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestService_RemoveThenList(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil)
	require.NoError(t, svc.Upload(ctx, "tok-a", "a.py", []byte("x = 1\n")))
	require.NoError(t, svc.Remove(ctx, "tok-a", "a.py"))

	files, err := svc.Files(ctx, "tok-a")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestService_RateLimit(t *testing.T) {
	limiter := util.NewLimiterRegistry(0.001, 2, time.Minute)
	defer limiter.Close()
	svc := newService(t, limiter)
	ctx := context.Background()

	_, err := svc.Files(ctx, "tok-a")
	require.NoError(t, err)
	_, err = svc.Files(ctx, "tok-a")
	require.NoError(t, err)
	_, err = svc.Files(ctx, "tok-a")
	assert.True(t, errors.IsCode(err, errors.CodeRateLimited), "got %v", err)

	_, err = svc.Files(ctx, "tok-b")
	require.NoError(t, err)
}

func TestService_AnalyzeTextSelectedQueries(t *testing.T) {
	svc := newService(t, nil)
	res, err := svc.AnalyzeText(context.Background(), "animals.py", []byte(sample), []ports.Query{ports.QueryComments})
	require.NoError(t, err)
	assert.Nil(t, res.Classes)
	assert.Nil(t, res.FunctionsUnderClasses)
	require.NotNil(t, res.Comments)
	assert.Equal(t, "# Animals module\n# override me", RenderComments(*res.Comments))
}

func TestService_Validate(t *testing.T) {
	svc := newService(t, nil)
	assert.True(t, svc.Validate("main.py"))
	assert.False(t, svc.Validate("main.txt"))
	assert.False(t, svc.Validate("../main.py"))
}

func TestRenderComments(t *testing.T) {
	assert.Equal(t, "No comments found", RenderComments(nil))
	assert.Equal(t, "# a", RenderComments([]lexer.Comment{{Text: "# a", Line: 1}}))
}

func TestNewService_RequiresDependencies(t *testing.T) {
	_, err := NewService(Dependencies{})
	require.Error(t, err)
}

func TestNewEngine(t *testing.T) {
	e, err := NewEngine("", analyzer.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "native", e.Name())

	e, err = NewEngine("TreeSitter", analyzer.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "treesitter", e.Name())

	_, err = NewEngine("regex", analyzer.DefaultOptions())
	assert.True(t, errors.IsCode(err, errors.CodeNotSupported))
}

func TestApp_NewAndHealth(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	a, err := New(cfg, t.TempDir())
	require.NoError(t, err)
	defer a.Close()

	health := a.Health(context.Background())
	assert.Equal(t, "up", health.Status)
	assert.Equal(t, "ok (disk)", health.Components["store"])
	assert.Equal(t, "native", health.Components["engine"])

	token, err := a.Identity.(*identity.SQLiteProvider).Issue(context.Background(), "alice")
	require.NoError(t, err)
	require.NoError(t, a.Service.Upload(context.Background(), token, "m.py", []byte("def f():\n    pass\n")))
	res, err := a.Service.Analyze(context.Background(), ports.AnalysisRequest{Credential: token, Filename: "m.py"})
	require.NoError(t, err)
	assert.Equal(t, []string{"f"}, *res.Functions)
}
