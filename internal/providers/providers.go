package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/reelforge/reelforge/internal/config"
	"github.com/reelforge/reelforge/pkg/types"
)

// Collaborator names used to tag upstream failures.
const (
	ServiceSegmentation = "narrative-segmentation"
	ServiceShotPlanner  = "shot-planner"
	ServiceImageGen     = "image-generation"
	ServiceAnalyzer     = "consistency-analyzer"
	ServiceTraining     = "model-training"
)

// NarrativeSegmenter turns a script into an ordered scene list.
type NarrativeSegmenter interface {
	SegmentScript(ctx context.Context, scriptText, brandHints string) ([]types.PlannedScene, error)
}

// ShotPlanRequest carries everything the shot planner needs for one scene.
type ShotPlanRequest struct {
	SceneContext     string `json:"scene_context"`
	VisualStyle      string `json:"visual_style,omitempty"`
	CharacterPersona string `json:"character_persona,omitempty"`
	BrandNotes       string `json:"brand_notes,omitempty"`
}

// ShotPlanner turns one scene into an ordered shot list.
type ShotPlanner interface {
	PlanShots(ctx context.Context, req ShotPlanRequest) ([]types.PlannedShot, error)
}

// ImageRequest carries one image generation call.
type ImageRequest struct {
	Prompt      string `json:"prompt"`
	Model       string `json:"model,omitempty"`
	ModelHandle string `json:"model_handle,omitempty"`
	QualityTier string `json:"quality_tier,omitempty"`
}

// ImageGenerator produces a single image URL per request.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (string, error)
}

// ConsistencyAnalyzer judges the similarity of two structured appearances.
type ConsistencyAnalyzer interface {
	CompareAppearances(ctx context.Context, a, b types.AppearanceDescriptor, context string) (*types.SimilarityJudgement, error)
}

// ModelTrainer is the custom visual model training service. Submit returns
// the provider's job ID; TrainingStatus returns the provider's raw status
// string (succeeded, failed, canceled, or an in-progress value).
type ModelTrainer interface {
	SubmitTraining(ctx context.Context, datasetURL, triggerWord, destinationHandle string) (string, error)
	TrainingStatus(ctx context.Context, jobID string) (string, error)
}

// Clients bundles every collaborator, constructed once at startup and passed
// by reference so tests can substitute fakes per interface.
type Clients struct {
	Segmenter NarrativeSegmenter
	Planner   ShotPlanner
	ImageGen  ImageGenerator
	Analyzer  ConsistencyAnalyzer
	Trainer   ModelTrainer
}

// NewClients builds HTTP clients for every collaborator from config.
func NewClients(cfg config.ProvidersConfig) *Clients {
	return &Clients{
		Segmenter: NewHTTPSegmenter(cfg.Segmentation),
		Planner:   NewHTTPShotPlanner(cfg.ShotPlanner),
		ImageGen:  NewHTTPImageGenerator(cfg.ImageGen),
		Analyzer:  NewHTTPAnalyzer(cfg.Analyzer),
		Trainer:   NewHTTPTrainer(cfg.Training),
	}
}

// httpCaller wraps one collaborator endpoint.
type httpCaller struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func newHTTPCaller(ep config.ProviderEndpoint) httpCaller {
	return httpCaller{
		baseURL: ep.BaseURL,
		apiKey:  ep.APIKey,
		client:  &http.Client{Timeout: ep.Timeout},
	}
}

// postJSON sends a JSON body to path and decodes the JSON response into out.
func (h httpCaller) postJSON(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// getJSON fetches path and decodes the JSON response into out.
func (h httpCaller) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
