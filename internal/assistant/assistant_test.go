package assistant

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tdh/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingGenerator struct {
	mu        sync.Mutex
	calls     []string
	prompts   []string
	reply     string
	err       error
	delay     time.Duration
	inflight  atomic.Int32
	maxFlight atomic.Int32
}

func (g *recordingGenerator) Generate(ctx context.Context, systemPrompt, question string) (string, error) {
	n := g.inflight.Add(1)
	defer g.inflight.Add(-1)
	for {
		cur := g.maxFlight.Load()
		if n <= cur || g.maxFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	g.mu.Lock()
	g.calls = append(g.calls, question)
	g.prompts = append(g.prompts, systemPrompt)
	g.mu.Unlock()

	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return g.reply, g.err
}

func (g *recordingGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

var approved = &models.User{ID: 1, Username: "member", Status: models.StatusApproved}

func TestAnswer_Paths(t *testing.T) {
	gen := &recordingGenerator{reply: "  الطقس جميل اليوم  "}
	svc := NewService(gen, DefaultRules(), Options{Timeout: time.Second})
	ctx := context.Background()

	blocked, err := svc.Answer(ctx, approved, "سؤال جنسي عن شيء")
	require.NoError(t, err)
	assert.Equal(t, SourceBlocked, blocked.Source)
	assert.Equal(t, DefaultRules().Refusal, blocked.Text)
	assert.Zero(t, gen.callCount())

	upper, err := svc.Answer(ctx, approved, "Is PORN allowed?")
	require.NoError(t, err)
	assert.Equal(t, SourceBlocked, upper.Source)
	assert.Zero(t, gen.callCount())

	canned, err := svc.Answer(ctx, approved, "  من انت؟ ")
	require.NoError(t, err)
	assert.Equal(t, SourceCanned, canned.Source)
	assert.Equal(t, DefaultRules().Canned["من انت؟"], canned.Text)
	assert.Zero(t, gen.callCount())

	generated, err := svc.Answer(ctx, approved, "ما رأيك بالطقس")
	require.NoError(t, err)
	assert.Equal(t, SourceGenerated, generated.Source)
	assert.Equal(t, "الطقس جميل اليوم", generated.Text)
	require.Equal(t, 1, gen.callCount())
	assert.Equal(t, "ما رأيك بالطقس", gen.calls[0])
	assert.Equal(t, DefaultRules().SystemPrompt, gen.prompts[0])
}

func TestAnswer_Rejections(t *testing.T) {
	gen := &recordingGenerator{reply: "x"}
	svc := NewService(gen, DefaultRules(), Options{})
	ctx := context.Background()

	_, err := svc.Answer(ctx, nil, "hello")
	assert.True(t, models.IsCode(err, models.CodeForbidden))

	_, err = svc.Answer(ctx, &models.User{ID: 2, Status: models.StatusPending}, "hello")
	assert.True(t, models.IsCode(err, models.CodeForbidden))

	_, err = svc.Answer(ctx, approved, "   ")
	require.True(t, models.IsCode(err, models.CodeValidation))
	assert.Equal(t, DefaultRules().EmptyQuestion, err.Error())

	admin := &models.User{ID: 3, IsAdmin: true, Status: models.StatusPending}
	a, err := svc.Answer(ctx, admin, "hello")
	require.NoError(t, err)
	assert.Equal(t, SourceGenerated, a.Source)
}

func TestAnswer_FailuresBecomeApology(t *testing.T) {
	tests := []struct {
		name string
		gen  *recordingGenerator
	}{
		{"error", &recordingGenerator{err: errors.New("upstream 500")}},
		{"empty text", &recordingGenerator{reply: "   "}},
		{"timeout", &recordingGenerator{reply: "late", delay: time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.gen, DefaultRules(), Options{Timeout: 20 * time.Millisecond})
			a, err := svc.Answer(context.Background(), approved, "question")
			require.NoError(t, err)
			assert.Equal(t, SourceFallback, a.Source)
			assert.Equal(t, DefaultRules().Apology, a.Text)
		})
	}

	svc := NewService(nil, DefaultRules(), Options{})
	a, err := svc.Answer(context.Background(), approved, "question")
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, a.Source)
}

func TestAnswer_BoundsConcurrency(t *testing.T) {
	gen := &recordingGenerator{reply: "ok", delay: 30 * time.Millisecond}
	svc := NewService(gen, DefaultRules(), Options{Timeout: 5 * time.Second, MaxConcurrent: 2})

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := svc.Answer(context.Background(), approved, "question")
			assert.NoError(t, err)
			assert.Equal(t, SourceGenerated, a.Source)
		}()
	}
	wg.Wait()
	assert.Equal(t, 6, gen.callCount())
	assert.LessOrEqual(t, gen.maxFlight.Load(), int32(2))
}

func TestLoadRules(t *testing.T) {
	rules, err := LoadRules("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), rules)

	path := filepath.Join(t.TempDir(), "rules.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
blocked_terms: ["forbidden"]
canned:
  "ping": "pong"
refusal: "no"
`), 0o600))

	rules, err = LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"forbidden"}, rules.BlockedTerms)
	assert.Equal(t, map[string]string{"ping": "pong"}, rules.Canned)
	assert.Equal(t, "no", rules.Refusal)
	assert.Equal(t, DefaultRules().Apology, rules.Apology)

	gen := &recordingGenerator{reply: "x"}
	svc := NewService(gen, rules, Options{})
	a, err := svc.Answer(context.Background(), approved, "ping")
	require.NoError(t, err)
	assert.Equal(t, Answer{Text: "pong", Source: SourceCanned}, a)

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("blocked_terms: [unclosed"), 0o600))
	_, err = LoadRules(bad)
	assert.Error(t, err)
}
