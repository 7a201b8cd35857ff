// Package assistant answers member questions: blocked topics are refused,
// known questions get canned answers and everything else goes to a text
// generator whose failures become an apology.
package assistant

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"tdh/internal/middleware"
	"tdh/internal/models"
	"tdh/internal/moderation"
	"tdh/internal/observability"
	"tdh/internal/validation"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

// Source tells where an answer came from.
type Source string

const (
	SourceBlocked   Source = "blocked"
	SourceCanned    Source = "canned"
	SourceGenerated Source = "generated"
	SourceFallback  Source = "fallback"
)

// Answer is returned to members.
type Answer struct {
	Text   string `json:"answer"`
	Source Source `json:"source"`
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, question string) (string, error)
}

var errEmptyGeneration = errors.New("generator returned empty text")

type Options struct {
	Timeout       time.Duration
	MaxConcurrent int64
}

// Service is safe for concurrent use.
type Service struct {
	gen     Generator
	rules   compiled
	timeout time.Duration
	sem     *semaphore.Weighted
}

func NewService(gen Generator, rules Rules, opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	return &Service{
		gen:     gen,
		rules:   compile(rules),
		timeout: opts.Timeout,
		sem:     semaphore.NewWeighted(opts.MaxConcurrent),
	}
}

// Answer resolves a member question.
func (s *Service) Answer(ctx context.Context, requester *models.User, question string) (Answer, error) {
	if !moderation.Evaluate(requester).Allowed() {
		return Answer{}, models.NewForbiddenError("Only approved members can use the assistant")
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, models.NewValidationError(s.rules.EmptyQuestion)
	}
	if err := validation.ValidateLength("question", question, validation.QuestionMaxLength); err != nil {
		return Answer{}, models.NewValidationError(err.Error())
	}

	if s.rules.isBlocked(question) {
		return s.outcome(ctx, Answer{Text: s.rules.Refusal, Source: SourceBlocked}), nil
	}
	if a, ok := s.rules.cannedAnswer(question); ok {
		return s.outcome(ctx, Answer{Text: a, Source: SourceCanned}), nil
	}

	text, err := s.generate(ctx, question)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "assistant generation failed",
			slog.Uint64("user_id", uint64(requester.ID)),
			slog.String("error", err.Error()))
		return s.outcome(ctx, Answer{Text: s.rules.Apology, Source: SourceFallback}), nil
	}
	return s.outcome(ctx, Answer{Text: text, Source: SourceGenerated}), nil
}

func (s *Service) generate(ctx context.Context, question string) (string, error) {
	if s.gen == nil {
		return "", models.NewCollaboratorError(errors.New("no generator configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	span, ctx := observability.NewSpan(ctx, "assistant.generate")
	defer span.End()
	span.AddAttributes(attribute.Int("question.length", len(question)))

	if err := s.sem.Acquire(ctx, 1); err != nil {
		span.SetError(err)
		return "", models.NewCollaboratorError(err)
	}
	defer s.sem.Release(1)

	start := time.Now()
	text, err := s.gen.Generate(ctx, s.rules.SystemPrompt, question)
	observability.AssistantLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		span.SetError(err)
		return "", models.NewCollaboratorError(err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		span.SetError(errEmptyGeneration)
		return "", models.NewCollaboratorError(errEmptyGeneration)
	}
	return text, nil
}

func (s *Service) outcome(ctx context.Context, a Answer) Answer {
	observability.AssistantOutcomes.WithLabelValues(string(a.Source)).Inc()
	trace.SpanFromContext(ctx).SetAttributes(observability.AttrAnswerSource.String(string(a.Source)))
	return a
}
