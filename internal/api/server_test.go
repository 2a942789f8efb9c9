package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/spigell/talent-ranker/internal/ai"
	"github.com/spigell/talent-ranker/internal/engine"
	"github.com/spigell/talent-ranker/internal/grounding"
	"github.com/spigell/talent-ranker/internal/profile"
	"github.com/spigell/talent-ranker/internal/scoring"
	"github.com/spigell/talent-ranker/internal/semantic"
	"github.com/spigell/talent-ranker/internal/session"
	"github.com/spigell/talent-ranker/internal/skills"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()

	vocab := skills.Default()
	eng := engine.New(engine.Config{}, engine.Deps{
		Extractor: profile.NewExtractor(profile.Config{}, nil,
			profile.DefaultStrategies(profile.Config{}, vocab, nil, 0)...),
		Scorer:     semantic.NewScorer(ai.Ready[ai.Embedder](semantic.NewHashingEmbedder(256)), semantic.Config{}, 0, nil),
		Vocabulary: vocab,
		Sessions:   session.NewMemory(time.Hour, 20),
	}, nil)
	return New(cfg, eng, nil)
}

type failingEngine struct {
	err error
}

func (f failingEngine) Rank(context.Context, engine.RankRequest) (*engine.RankResponse, error) {
	return nil, f.err
}

func (f failingEngine) Ask(context.Context, engine.AskRequest) (*grounding.Answer, error) {
	return nil, f.err
}

func (f failingEngine) ClearSession(context.Context, string) error { return f.err }

func (f failingEngine) DefaultWeights() scoring.Weights { return scoring.DefaultWeights() }

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func uploadRequest(t *testing.T, path string, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for name, content := range files {
		part, err := w.CreateFormFile("resumes", name)
		require.NoError(t, err)
		_, err = io.WriteString(part, content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	t.Parallel()

	resp, err := newTestServer(t, Config{}).App().Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[map[string]string](t, resp)["status"])
}

func TestRankJSON(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, Config{})
	resp, err := srv.App().Test(jsonRequest(t, http.MethodPost, "/api/rank", engine.RankRequest{
		JobDescription: "Python engineer with AWS experience",
		Resumes: []engine.Resume{
			{Filename: "a.txt", Text: "Python developer building internal tools."},
			{Filename: "b.txt", Text: "Python developer shipping services on AWS."},
		},
		Weights: &scoring.Weights{Skill: 1},
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ranking := decode[engine.RankResponse](t, resp)
	require.Len(t, ranking.Candidates, 2)
	assert.Equal(t, "b.txt", ranking.Candidates[0].Filename)
	assert.Equal(t, 100, ranking.Candidates[0].MatchPercentage)
}

func TestSortResumesUpload(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, Config{})
	resp, err := srv.App().Test(uploadRequest(t, "/api/sort-resumes",
		map[string]string{"job_description": "Go developer with Kubernetes", "weights": "0,1,0"},
		map[string]string{
			"go.txt":     "Go developer running services on Kubernetes.",
			"pastry.txt": "Pastry chef with a passion for sourdough.",
		},
	), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ranking := decode[engine.RankResponse](t, resp)
	require.Len(t, ranking.Candidates, 2)
	assert.Equal(t, "go.txt", ranking.Candidates[0].Filename)
	assert.Equal(t, engine.TargetJobDescription, ranking.TargetKind)
	assert.Equal(t, scoring.Weights{Skill: 1}, ranking.Weights)
}

func TestSemanticSearchUpload(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, Config{})
	resp, err := srv.App().Test(uploadRequest(t, "/api/semantic-search",
		map[string]string{"query": "kubernetes operator"},
		map[string]string{"ops.md": "Platform engineer operating Kubernetes clusters."},
	), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, engine.TargetQuery, decode[engine.RankResponse](t, resp).TargetKind)
}

func TestUploadValidation(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, Config{})

	tests := []struct {
		name   string
		fields map[string]string
		files  map[string]string
	}{
		{name: "no files", fields: map[string]string{"job_description": "Go"}},
		{name: "unsupported file", fields: map[string]string{"job_description": "Go"}, files: map[string]string{"cv.docx": "binary"}},
		{name: "bad weights", fields: map[string]string{"job_description": "Go", "weights": "1,2"}, files: map[string]string{"a.txt": "Go developer"}},
		{name: "missing job description", files: map[string]string{"a.txt": "Go developer"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, err := srv.App().Test(uploadRequest(t, "/api/sort-resumes", tt.fields, tt.files), -1)
			require.NoError(t, err)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)

			body := decode[errorBody](t, resp)
			assert.Equal(t, engine.KindValidation, body.Type)
			assert.False(t, body.Retryable)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestUploadLimitFromConfig(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1024*1024, newTestServer(t, Config{MaxUploadMB: 1}).App().Config().BodyLimit)
	assert.Equal(t, defaultMaxUploadMB*1024*1024, newTestServer(t, Config{}).App().Config().BodyLimit)
}

func TestReweight(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, Config{})
	initial := &engine.RankResponse{
		Weights: scoring.Weights{Semantic: 1},
		Candidates: []engine.Candidate{
			{Rank: 1, InputIndex: 0, Name: "A", SemanticScore: 0.9, SkillMatchRatio: 0.1, JDSkills: []string{"go"}},
			{Rank: 2, InputIndex: 1, Name: "B", SemanticScore: 0.2, SkillMatchRatio: 1, JDSkills: []string{"go"}, MatchedSkills: []string{"go"}},
		},
	}

	resp, err := srv.App().Test(jsonRequest(t, http.MethodPost, "/api/reweight", ReweightRequest{
		Ranking: initial,
		Weights: scoring.Weights{Skill: 1},
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[engine.RankResponse](t, resp)
	require.Len(t, got.Candidates, 2)
	assert.Equal(t, "B", got.Candidates[0].Name)
	assert.Equal(t, 100, got.Candidates[0].MatchPercentage)
	assert.Equal(t, 1, got.Candidates[0].Rank)

	resp, err = srv.App().Test(jsonRequest(t, http.MethodPost, "/api/reweight", ReweightRequest{
		Ranking: initial,
		Weights: scoring.Weights{Skill: -1},
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCandidateAskAndClearSession(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, Config{})
	resumeText := "Senior engineer.\nLed a team of five engineers migrating services to Kubernetes."

	form := url.Values{
		"candidate_id": {"c1"},
		"question":     {"Did they lead a team?"},
		"resume_text":  {resumeText},
		"history":      {"not json"},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/candidate-ask", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := srv.App().Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	answer := decode[grounding.Answer](t, resp)
	assert.True(t, answer.Grounded)
	assert.Equal(t, grounding.IntentLeadership, answer.Intent)
	assert.NotEmpty(t, answer.Evidence)

	resp, err = srv.App().Test(jsonRequest(t, http.MethodPost, "/api/candidate-ask", engine.AskRequest{
		CandidateID: "c1",
		Question:    "Do they know Rust?",
		ResumeText:  resumeText,
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	answer = decode[grounding.Answer](t, resp)
	assert.False(t, answer.Grounded)
	assert.Contains(t, answer.Text, "No direct evidence")

	resp, err = srv.App().Test(httptest.NewRequest(http.MethodDelete, "/api/candidates/c1/session", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = srv.App().Test(jsonRequest(t, http.MethodPost, "/api/candidate-ask", engine.AskRequest{
		Question:   "  ",
		ResumeText: resumeText,
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEngineErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		status    int
		kind      engine.Kind
		retryable bool
	}{
		{
			name:      "unavailable",
			err:       &engine.Error{Kind: engine.KindUnavailable, Detail: "embedding model is unavailable"},
			status:    http.StatusServiceUnavailable,
			kind:      engine.KindUnavailable,
			retryable: true,
		},
		{
			name:      "timeout",
			err:       &engine.Error{Kind: engine.KindTimeout, Detail: "scoring resumes timed out or was cancelled"},
			status:    http.StatusGatewayTimeout,
			kind:      engine.KindTimeout,
			retryable: true,
		},
		{
			name:   "plain error",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
			kind:   engine.KindInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := New(Config{}, failingEngine{err: tt.err}, nil)
			resp, err := srv.App().Test(jsonRequest(t, http.MethodPost, "/api/rank", engine.RankRequest{
				Query:   "Go",
				Resumes: []engine.Resume{{Filename: "a.txt", Text: "Go"}},
			}))
			require.NoError(t, err)
			require.Equal(t, tt.status, resp.StatusCode)

			body := decode[errorBody](t, resp)
			assert.Equal(t, tt.kind, body.Type)
			assert.Equal(t, tt.retryable, body.Retryable)
		})
	}
}
