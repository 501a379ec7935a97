package vision

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"jobflow_backend/internal/adapters/storage"
	"jobflow_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"
	"google.golang.org/genai"
)

const (
	appName           = "scope_analyzer"
	maxMediaItems     = 8
	downloadWorkers   = 4
	defaultVisionName = "gemini-2.5-flash"
)

// MediaSource reads uploaded evidence.
type MediaSource interface {
	DownloadObject(ctx context.Context, bucket, fileKey string) (storage.Object, error)
}

// Config configures the Gemini backed analyzer.
type Config struct {
	APIKey string
	Model  string
	Bucket string
}

type analyzerDeps struct {
	mu     sync.Mutex
	result *SaveScopeAnalysisInput
}

func (d *analyzerDeps) set(in SaveScopeAnalysisInput) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.result = &in
}

func (d *analyzerDeps) get() *SaveScopeAnalysisInput {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.result
}

func (d *analyzerDeps) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.result = nil
}

// Analyzer runs an LLM agent over job media and collects its SaveScopeAnalysis call.
type Analyzer struct {
	runner         *runner.Runner
	sessionService session.Service
	media          MediaSource
	bucket         string
	deps           *analyzerDeps
	log            *logger.Logger
	runMu          sync.Mutex
}

// NewAnalyzer creates an analyzer backed by a Gemini model.
func NewAnalyzer(ctx context.Context, cfg Config, media MediaSource, log *logger.Logger) (*Analyzer, error) {
	modelName := strings.TrimSpace(cfg.Model)
	if modelName == "" {
		modelName = defaultVisionName
	}
	llm, err := gemini.NewModel(ctx, modelName, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create vision model: %w", err)
	}

	deps := &analyzerDeps{}
	saveTool, err := functiontool.New(functiontool.Config{
		Name:        "SaveScopeAnalysis",
		Description: "Save the detected scope parameters, confidence and reasoning for this job.",
	}, func(_ tool.Context, in SaveScopeAnalysisInput) (SaveScopeAnalysisOutput, error) {
		deps.set(in)
		return SaveScopeAnalysisOutput{Success: true, Message: "analysis saved"}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build scope analysis tool: %w", err)
	}

	adkAgent, err := llmagent.New(llmagent.Config{
		Name:        "ScopeAnalyzer",
		Model:       llm,
		Description: "Estimates the on-site scope of a field-service job from photos and videos",
		Instruction: analyzerInstruction,
		Tools:       []tool.Tool{saveTool},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create scope analyzer agent: %w", err)
	}

	sessionService := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        appName,
		Agent:          adkAgent,
		SessionService: sessionService,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create scope analyzer runner: %w", err)
	}

	return &Analyzer{
		runner:         r,
		sessionService: sessionService,
		media:          media,
		bucket:         cfg.Bucket,
		deps:           deps,
		log:            log,
	}, nil
}

// Analyze downloads the media behind mediaKeys and asks the model for the job's scope.
func (a *Analyzer) Analyze(ctx context.Context, serviceType string, mediaKeys []string) (Analysis, error) {
	media, err := fetchMedia(ctx, a.media, a.bucket, mediaKeys)
	if err != nil {
		return Analysis{}, err
	}

	a.runMu.Lock()
	defer a.runMu.Unlock()
	a.deps.reset()

	userID := "scope-analyzer"
	sessionID := uuid.New().String()
	if _, err := a.sessionService.Create(ctx, &session.CreateRequest{
		AppName:   appName,
		UserID:    userID,
		SessionID: sessionID,
	}); err != nil {
		return Analysis{}, fmt.Errorf("failed to create session: %w", err)
	}
	defer func() {
		if err := a.sessionService.Delete(context.WithoutCancel(ctx), &session.DeleteRequest{
			AppName:   appName,
			UserID:    userID,
			SessionID: sessionID,
		}); err != nil && a.log != nil {
			a.log.Warn("failed to delete analyzer session", "error", err)
		}
	}()

	if err := a.run(ctx, userID, sessionID, buildUserContent(serviceType, media)); err != nil {
		return Analysis{}, err
	}
	if a.deps.get() == nil {
		retry := &genai.Content{Role: "user", Parts: []*genai.Part{genai.NewPartFromText(retryPrompt)}}
		if err := a.run(ctx, userID, sessionID, retry); err != nil {
			return Analysis{}, err
		}
	}

	saved := a.deps.get()
	if saved == nil {
		return Analysis{}, ErrNoResult
	}
	return toAnalysis(*saved, len(media)), nil
}

func (a *Analyzer) run(ctx context.Context, userID, sessionID string, content *genai.Content) error {
	runConfig := agent.RunConfig{StreamingMode: agent.StreamingModeNone}
	for _, err := range a.runner.Run(ctx, userID, sessionID, content, runConfig) {
		if err != nil {
			return fmt.Errorf("scope analysis failed: %w", err)
		}
	}
	return nil
}

// fetchMedia downloads up to maxMediaItems objects concurrently, keeping key order.
func fetchMedia(ctx context.Context, src MediaSource, bucket string, keys []string) ([]storage.Object, error) {
	keys = dedupeKeys(keys)
	if len(keys) == 0 {
		return nil, ErrNoMedia
	}
	if len(keys) > maxMediaItems {
		keys = keys[:maxMediaItems]
	}

	objects := make([]storage.Object, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(downloadWorkers)
	for i, key := range keys {
		g.Go(func() error {
			obj, err := src.DownloadObject(gctx, bucket, key)
			if err != nil {
				return err
			}
			objects[i] = obj
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	usable := objects[:0]
	for _, obj := range objects {
		if storage.CheckContentType(storage.PurposeEvidence, obj.ContentType) == nil {
			usable = append(usable, obj)
		}
	}
	if len(usable) == 0 {
		return nil, ErrNoMedia
	}
	return usable, nil
}

func dedupeKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func buildUserContent(serviceType string, media []storage.Object) *genai.Content {
	parts := make([]*genai.Part, 0, len(media)+1)
	for _, obj := range media {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: storage.NormalizeContentType(obj.ContentType),
				Data:     obj.Data,
			},
		})
	}
	parts = append(parts, genai.NewPartFromText(buildPrompt(serviceType, len(media))))
	return &genai.Content{Role: "user", Parts: parts}
}
