package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/reelforge/reelforge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEndpoint(url string) config.ProviderEndpoint {
	return config.ProviderEndpoint{BaseURL: url, APIKey: "test-key", Timeout: 5 * time.Second}
}

func TestHTTPSegmenter_SendsScriptAndAuth(t *testing.T) {
	var gotAuth string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/segment", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"scenes":[{"order":1,"title":"Opening","description":"night"}]}`))
	}))
	defer srv.Close()

	segmenter := NewHTTPSegmenter(testEndpoint(srv.URL))
	scenes, err := segmenter.SegmentScript(context.Background(), "INT. WAREHOUSE", "brand notes")
	require.NoError(t, err)
	require.Len(t, scenes, 1)
	assert.Equal(t, "Opening", scenes[0].Title)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "INT. WAREHOUSE", gotBody["script_text"])
	assert.Equal(t, "brand notes", gotBody["brand_hints"])
}

func TestHTTPImageGenerator_EmptyURLIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	gen := NewHTTPImageGenerator(testEndpoint(srv.URL))
	_, err := gen.GenerateImage(context.Background(), ImageRequest{Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no image url")
}

func TestHTTPTrainer_SubmitAndPoll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/trainings":
			w.Write([]byte(`{"job_id":"job-42"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v1/trainings/job-42":
			w.Write([]byte(`{"status":"succeeded"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	trainer := NewHTTPTrainer(testEndpoint(srv.URL))
	jobID, err := trainer.SubmitTraining(context.Background(), "http://data/set.zip", "hero_v1", "user-1/hero")
	require.NoError(t, err)
	assert.Equal(t, "job-42", jobID)

	status, err := trainer.TrainingStatus(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, "succeeded", status)
}

func TestHTTPCaller_Non200SurfacesSnippet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`rate limited`))
	}))
	defer srv.Close()

	planner := NewHTTPShotPlanner(testEndpoint(srv.URL))
	_, err := planner.PlanShots(context.Background(), ShotPlanRequest{SceneContext: "s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
	assert.Contains(t, err.Error(), "rate limited")
}
