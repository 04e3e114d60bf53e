// Package usecases contains application business rules.
// Usecases orchestrate entities and depend only on port interfaces.
package usecases

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/0xcro3dile/policyqa-go/internal/domain/entities"
	"github.com/0xcro3dile/policyqa-go/internal/domain/ports"
	"github.com/0xcro3dile/policyqa-go/internal/domain/retrieval"
)

// Defaults applied by NewAskUseCase.
const (
	DefaultDailyLimit = 5
	DefaultTimeZone   = "America/Los_Angeles"
	DefaultUsageTTL   = 48 * time.Hour

	noAnswer = "No answer returned."
)

var (
	ErrMissingQuestion      = errors.New("missing question")
	ErrAccessKeyRequired    = errors.New("assistant access key required or incorrect")
	ErrGeneratorUnavailable = errors.New("language model is not configured")
	ErrDailyLimitReached    = errors.New("daily limit reached")
	ErrGenerationFailed     = errors.New("language model request failed")
)

// SystemPrompt is the fixed instruction template sent with every question.
var SystemPrompt = strings.Join([]string{
	"You are an assistant helping answer questions about the organization's Personnel Policies and Procedures.",
	"Answer using ONLY the provided policy excerpts.",
	"If the answer is not in the excerpts, say you couldn't find it in the policy.",
	"Be concise and practical.",
	"When you cite policy support, include section numbers like [1.2] or [4.5].",
}, " ")

// AskConfig tunes the ask flow.
type AskConfig struct {
	// BotKey gates the assistant; empty means open.
	BotKey     string
	DailyLimit int
	Location   *time.Location
	UsageTTL   time.Duration
	// SiteKeyRequired is only reported by Status.
	SiteKeyRequired bool
	Version         string
}

// Status is the diagnostics payload served on GET /api/ask.
type Status struct {
	OK              bool   `json:"ok"`
	Version         string `json:"version"`
	HasAI           bool   `json:"hasAI"`
	HasKV           bool   `json:"hasKV"`
	HasAssets       bool   `json:"hasASSETS"`
	BotKeyRequired  bool   `json:"botKeyRequired"`
	SiteKeyRequired bool   `json:"siteKeyRequired"`
}

// AskUseCase answers questions from the best-matching policy excerpts.
type AskUseCase struct {
	chunks    ports.ChunkSource
	generator ports.Generator
	counter   ports.UsageCounter
	cfg       AskConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewAskUseCase creates an AskUseCase. generator and counter may be nil:
// without a generator every question fails with ErrGeneratorUnavailable,
// without a counter no daily limit is enforced.
func NewAskUseCase(
	chunks ports.ChunkSource,
	generator ports.Generator,
	counter ports.UsageCounter,
	cfg AskConfig,
	logger *zap.Logger,
) *AskUseCase {
	if cfg.DailyLimit <= 0 {
		cfg.DailyLimit = DefaultDailyLimit
	}
	if cfg.Location == nil {
		loc, err := time.LoadLocation(DefaultTimeZone)
		if err != nil {
			loc = time.UTC
		}
		cfg.Location = loc
	}
	if cfg.UsageTTL <= 0 {
		cfg.UsageTTL = DefaultUsageTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AskUseCase{
		chunks:    chunks,
		generator: generator,
		counter:   counter,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Limit returns the configured daily question limit.
func (uc *AskUseCase) Limit() int {
	return uc.cfg.DailyLimit
}

// Status reports which collaborators are wired.
func (uc *AskUseCase) Status() Status {
	return Status{
		OK:              true,
		Version:         uc.cfg.Version,
		HasAI:           uc.generator != nil,
		HasKV:           uc.counter != nil,
		HasAssets:       uc.chunks != nil,
		BotKeyRequired:  uc.cfg.BotKey != "",
		SiteKeyRequired: uc.cfg.SiteKeyRequired,
	}
}

// Ask validates the request, charges the daily quota, retrieves excerpts
// and asks the generator.
func (uc *AskUseCase) Ask(ctx context.Context, req *entities.AskRequest) (*entities.AskResponse, error) {
	question := strings.TrimSpace(req.Question)
	key := strings.TrimSpace(req.PrototypeKey)

	if question == "" {
		return nil, ErrMissingQuestion
	}
	if uc.cfg.BotKey != "" && subtle.ConstantTimeCompare([]byte(key), []byte(uc.cfg.BotKey)) != 1 {
		return nil, ErrAccessKeyRequired
	}
	if uc.generator == nil {
		return nil, ErrGeneratorUnavailable
	}

	used, err := uc.charge(ctx, key)
	if err != nil {
		return nil, err
	}

	ranked := uc.retrieve(ctx, question)
	userPrompt := BuildUserPrompt(question, retrieval.AssembleContext(ranked))

	answer, err := uc.generator.Generate(ctx, SystemPrompt, userPrompt)
	if err != nil {
		uc.logger.Error("generation failed", zap.String("generator", uc.generator.Name()), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = noAnswer
	}

	return &entities.AskResponse{
		Answer:    answer,
		Limit:     uc.cfg.DailyLimit,
		Remaining: max(0, uc.cfg.DailyLimit-used),
		Sources:   ranked,
	}, nil
}

// Preview returns the excerpt context a question would be answered from,
// without charging the quota or calling the generator.
func (uc *AskUseCase) Preview(ctx context.Context, question string) ([]entities.ScoredChunk, string) {
	chunks := uc.load(ctx)
	scored := retrieval.RankScored(chunks, question)
	ranked := make([]entities.Chunk, len(scored))
	for i, s := range scored {
		ranked[i] = s.Chunk
	}
	return scored, retrieval.AssembleContext(ranked)
}

// charge checks and bumps the daily counter, returning the count including
// this question. A missing counter means unlimited. The Get is only a fast
// path: the count returned by Increment decides admission.
func (uc *AskUseCase) charge(ctx context.Context, key string) (int, error) {
	if uc.counter == nil {
		return 0, nil
	}

	usageKey := DailyUsageKey(key, uc.now(), uc.cfg.Location)
	used, err := uc.counter.Get(ctx, usageKey)
	if err != nil {
		return 0, fmt.Errorf("reading usage: %w", err)
	}
	if used >= uc.cfg.DailyLimit {
		return used, ErrDailyLimitReached
	}

	used, err = uc.counter.Increment(ctx, usageKey, uc.cfg.UsageTTL)
	if err != nil {
		return 0, fmt.Errorf("recording usage: %w", err)
	}
	if used > uc.cfg.DailyLimit {
		return used, ErrDailyLimitReached
	}
	return used, nil
}

func (uc *AskUseCase) retrieve(ctx context.Context, question string) []entities.Chunk {
	chunks := uc.load(ctx)
	scored := retrieval.RankScored(chunks, question)

	ranked := make([]entities.Chunk, len(scored))
	labels := make([]string, len(scored))
	for i, s := range scored {
		ranked[i] = s.Chunk
		labels[i] = s.Chunk.Label
	}
	uc.logger.Debug("ranked excerpts",
		zap.Int("candidates", len(chunks)),
		zap.Strings("labels", labels),
	)
	return ranked
}

// load degrades to an empty collection when the source fails.
func (uc *AskUseCase) load(ctx context.Context) []entities.Chunk {
	if uc.chunks == nil {
		return nil
	}
	chunks, err := uc.chunks.LoadChunks(ctx)
	if err != nil {
		uc.logger.Warn("loading chunks failed, answering without excerpts", zap.Error(err))
		return nil
	}
	return chunks
}

// BuildUserPrompt embeds the question and excerpt context in the user turn.
func BuildUserPrompt(question, excerpts string) string {
	return strings.Join([]string{"Question:", question, "", "Policy excerpts:", excerpts}, "\n")
}

// DailyUsageKey is the counter key for one access key on one calendar day in loc.
func DailyUsageKey(accessKey string, now time.Time, loc *time.Location) string {
	if accessKey == "" {
		accessKey = "no-key"
	}
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("limit:%s:%s", accessKey, now.In(loc).Format(time.DateOnly))
}
