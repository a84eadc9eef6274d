package providers

import (
	"context"
	"fmt"

	"github.com/reelforge/reelforge/internal/config"
	"github.com/reelforge/reelforge/pkg/types"
)

// HTTPSegmenter calls the narrative segmentation service.
type HTTPSegmenter struct {
	httpCaller
}

// NewHTTPSegmenter builds a segmenter client for one endpoint.
func NewHTTPSegmenter(ep config.ProviderEndpoint) *HTTPSegmenter {
	return &HTTPSegmenter{newHTTPCaller(ep)}
}

func (s *HTTPSegmenter) SegmentScript(ctx context.Context, scriptText, brandHints string) ([]types.PlannedScene, error) {
	req := map[string]string{"script_text": scriptText}
	if brandHints != "" {
		req["brand_hints"] = brandHints
	}
	var resp struct {
		Scenes []types.PlannedScene `json:"scenes"`
	}
	if err := s.postJSON(ctx, "/v1/segment", req, &resp); err != nil {
		return nil, err
	}
	return resp.Scenes, nil
}

// HTTPShotPlanner calls the shot planning service.
type HTTPShotPlanner struct {
	httpCaller
}

// NewHTTPShotPlanner builds a shot planner client for one endpoint.
func NewHTTPShotPlanner(ep config.ProviderEndpoint) *HTTPShotPlanner {
	return &HTTPShotPlanner{newHTTPCaller(ep)}
}

func (p *HTTPShotPlanner) PlanShots(ctx context.Context, req ShotPlanRequest) ([]types.PlannedShot, error) {
	var resp struct {
		Shots []types.PlannedShot `json:"shots"`
	}
	if err := p.postJSON(ctx, "/v1/plan-shots", req, &resp); err != nil {
		return nil, err
	}
	return resp.Shots, nil
}

// HTTPImageGenerator calls the image generation service.
type HTTPImageGenerator struct {
	httpCaller
}

// NewHTTPImageGenerator builds an image generation client for one endpoint.
func NewHTTPImageGenerator(ep config.ProviderEndpoint) *HTTPImageGenerator {
	return &HTTPImageGenerator{newHTTPCaller(ep)}
}

func (g *HTTPImageGenerator) GenerateImage(ctx context.Context, req ImageRequest) (string, error) {
	var resp struct {
		ImageURL string `json:"image_url"`
	}
	if err := g.postJSON(ctx, "/v1/generate", req, &resp); err != nil {
		return "", err
	}
	if resp.ImageURL == "" {
		return "", fmt.Errorf("provider returned no image url")
	}
	return resp.ImageURL, nil
}

// HTTPAnalyzer calls the vision/LLM consistency analyzer.
type HTTPAnalyzer struct {
	httpCaller
}

// NewHTTPAnalyzer builds an analyzer client for one endpoint.
func NewHTTPAnalyzer(ep config.ProviderEndpoint) *HTTPAnalyzer {
	return &HTTPAnalyzer{newHTTPCaller(ep)}
}

func (a *HTTPAnalyzer) CompareAppearances(ctx context.Context, x, y types.AppearanceDescriptor, comparisonContext string) (*types.SimilarityJudgement, error) {
	req := struct {
		A       types.AppearanceDescriptor `json:"a"`
		B       types.AppearanceDescriptor `json:"b"`
		Context string                     `json:"context,omitempty"`
	}{A: x, B: y, Context: comparisonContext}

	var resp types.SimilarityJudgement
	if err := a.postJSON(ctx, "/v1/compare", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HTTPTrainer calls the custom model training service.
type HTTPTrainer struct {
	httpCaller
}

// NewHTTPTrainer builds a training client for one endpoint.
func NewHTTPTrainer(ep config.ProviderEndpoint) *HTTPTrainer {
	return &HTTPTrainer{newHTTPCaller(ep)}
}

func (t *HTTPTrainer) SubmitTraining(ctx context.Context, datasetURL, triggerWord, destinationHandle string) (string, error) {
	req := map[string]string{
		"dataset_url":        datasetURL,
		"trigger_word":       triggerWord,
		"destination_handle": destinationHandle,
	}
	var resp struct {
		JobID string `json:"job_id"`
	}
	if err := t.postJSON(ctx, "/v1/trainings", req, &resp); err != nil {
		return "", err
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("provider returned no job id")
	}
	return resp.JobID, nil
}

func (t *HTTPTrainer) TrainingStatus(ctx context.Context, jobID string) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := t.getJSON(ctx, "/v1/trainings/"+jobID, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}
