// Package engine orchestrates ranking, re-weighting and grounded questions
// over the extraction, scoring and explanation components.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spigell/talent-ranker/internal/explain"
	"github.com/spigell/talent-ranker/internal/grounding"
	"github.com/spigell/talent-ranker/internal/ingest"
	"github.com/spigell/talent-ranker/internal/logger"
	"github.com/spigell/talent-ranker/internal/profile"
	"github.com/spigell/talent-ranker/internal/scoring"
	"github.com/spigell/talent-ranker/internal/semantic"
	"github.com/spigell/talent-ranker/internal/session"
	"github.com/spigell/talent-ranker/internal/skills"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultWorkers    = 4
	defaultMaxResumes = 100
)

// Config bounds the work of a single request.
type Config struct {
	Workers        int             `mapstructure:"workers"`
	MaxResumes     int             `mapstructure:"max-resumes"`
	RequestTimeout time.Duration   `mapstructure:"request-timeout"`
	// Weights are the defaults for requests that name none. Nil selects
	// scoring.DefaultWeights; an all-zero triple ranks by semantic score only.
	Weights *scoring.Weights `mapstructure:"weights"`
}

// Deps are the components the engine drives. Sessions is optional.
type Deps struct {
	Extractor  *profile.Extractor
	Scorer     *semantic.Scorer
	Vocabulary *skills.Vocabulary
	Sessions   session.Store
}

// Engine is safe for concurrent use.
type Engine struct {
	cfg       Config
	weights   scoring.Weights
	extractor *profile.Extractor
	scorer    *semantic.Scorer
	vocab     *skills.Vocabulary
	explainer *explain.Explainer
	grounding *grounding.Engine
	sessions  session.Store
	logger    *zap.Logger
}

// New wires an engine.
func New(cfg Config, deps Deps, log *zap.Logger) *Engine {
	log = logger.OrNop(log)
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.MaxResumes <= 0 {
		cfg.MaxResumes = defaultMaxResumes
	}
	weights := scoring.DefaultWeights()
	if cfg.Weights != nil {
		weights = *cfg.Weights
	}

	var embedder grounding.Embedder
	if deps.Scorer != nil {
		embedder = deps.Scorer
	}

	return &Engine{
		cfg:       cfg,
		weights:   weights,
		extractor: deps.Extractor,
		scorer:    deps.Scorer,
		vocab:     deps.Vocabulary,
		explainer: explain.New(deps.Vocabulary),
		grounding: grounding.New(deps.Vocabulary, deps.Sessions, embedder, log),
		sessions:  deps.Sessions,
		logger:    log,
	}
}

// DefaultWeights returns the weights used when a request names none.
func (e *Engine) DefaultWeights() scoring.Weights {
	return e.weights
}

type scored struct {
	profile  *profile.CandidateProfile
	semantic semantic.Result
	skills   skills.Result
	signals  scoring.Signals
}

// Rank scores every resume against the target and returns them in ranking
// order. A resume whose extraction fails still appears with degraded fields;
// an unavailable embedding model fails the whole call.
func (e *Engine) Rank(ctx context.Context, req RankRequest) (*RankResponse, error) {
	started := time.Now()

	target, kind, err := e.validate(req)
	if err != nil {
		return nil, err
	}

	weights := e.weights
	if req.Weights != nil {
		weights = *req.Weights
	}

	if e.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RequestTimeout)
		defer cancel()
	}

	prepared, err := e.scorer.PrepareTarget(ctx, target)
	if err != nil {
		return nil, wrap("preparing the target", err)
	}
	required := e.vocab.Required(target)

	e.logger.Info("ranking resumes",
		zap.String("target_kind", kind),
		zap.Int("resumes", len(req.Resumes)),
		zap.Strings("required_skills", required),
	)

	results := make([]scored, len(req.Resumes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, resume := range req.Resumes {
		g.Go(func() error {
			res, err := e.scoreOne(gctx, prepared, required, resume)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, wrap("scoring resumes", err)
	}

	signals := make([]scoring.Signals, len(results))
	for i, r := range results {
		signals[i] = r.signals
	}

	resp := &RankResponse{
		Target:       target,
		TargetKind:   kind,
		Weights:      weights,
		TotalResumes: len(req.Resumes),
		Candidates:   make([]Candidate, 0, len(results)),
	}
	for pos, ranked := range scoring.Rank(signals, weights) {
		resp.Candidates = append(resp.Candidates, e.candidate(results[ranked.Index], ranked, pos+1))
	}
	resp.ProcessingTime = time.Since(started).Seconds()

	e.logger.Info("ranking finished",
		zap.Int("candidates", len(resp.Candidates)),
		zap.Duration("took", time.Since(started)),
	)
	return resp, nil
}

func (e *Engine) validate(req RankRequest) (string, string, error) {
	jd := strings.TrimSpace(req.JobDescription)
	query := strings.TrimSpace(req.Query)

	switch {
	case jd == "" && query == "":
		return "", "", validationError("a job description or a query is required")
	case jd != "" && query != "":
		return "", "", validationError("provide either a job description or a query, not both")
	case len(req.Resumes) == 0:
		return "", "", validationError("at least one resume is required")
	case len(req.Resumes) > e.cfg.MaxResumes:
		return "", "", validationError("too many resumes: %d, the limit is %d", len(req.Resumes), e.cfg.MaxResumes)
	}

	if req.Weights != nil {
		w := *req.Weights
		if w.Semantic < 0 || w.Skill < 0 || w.Experience < 0 {
			return "", "", validationError("weights must be non-negative")
		}
	}

	if jd != "" {
		return jd, TargetJobDescription, nil
	}
	return query, TargetQuery, nil
}

func (e *Engine) scoreOne(ctx context.Context, target *semantic.Target, required []string, resume Resume) (scored, error) {
	id := resume.ID
	if id == "" {
		id = ingest.NewID(resume.Filename, resume.Text)
	}

	p, err := e.extractor.Extract(ctx, profile.Input{ID: id, Filename: resume.Filename, Text: resume.Text})
	switch {
	case errors.Is(err, profile.ErrEmptyText):
		p = &profile.CandidateProfile{
			ID:               id,
			Filename:         resume.Filename,
			Name:             profile.InferName("", "", resume.Filename),
			RawText:          resume.Text,
			ExtractionSource: "none",
			Degraded:         true,
		}
		logger.WithCandidate(e.logger, id).Info("empty resume kept as degraded candidate", zap.String("filename", resume.Filename))
	case err != nil:
		return scored{}, fmt.Errorf("extract %s: %w", resume.Filename, err)
	}

	sem, err := e.scorer.Score(ctx, target, p.RawText)
	if err != nil {
		return scored{}, fmt.Errorf("score %s: %w", resume.Filename, err)
	}

	match := e.vocab.Match(p.Skills, required, p.RawText)

	return scored{
		profile:  p,
		semantic: sem,
		skills:   match,
		signals: scoring.Signals{
			Semantic:         sem.Score,
			Skill:            match.Ratio,
			Experience:       scoring.ExperienceSignal(len(p.ExperienceEntries), p.YearsMentioned),
			NoRequiredSkills: match.NoRequiredSkills(),
		},
	}, nil
}

func (e *Engine) candidate(s scored, ranked scoring.Ranked, position int) Candidate {
	p := s.profile
	ex := e.explainer.Explain(explain.Input{
		Profile:    p,
		Signals:    s.signals,
		Percentage: ranked.Percentage,
		Skills:     s.skills,
		Chunks:     s.semantic.Chunks,
	})

	return Candidate{
		ID:               p.ID,
		Rank:             position,
		InputIndex:       ranked.Index,
		Name:             p.Name,
		Filename:         p.Filename,
		MatchPercentage:  ranked.Percentage,
		SemanticScore:    s.signals.Semantic,
		SkillMatchRatio:  s.signals.Skill,
		ExperienceSignal: s.signals.Experience,
		Summary:          ex.Summary,
		Skills:           nonNil(p.Skills),
		Experience:       nonNil(p.ExperienceEntries),
		Education:        nonNil(p.EducationEntries),
		Feedback:         ex.Feedback,
		Evidence:         nonNil(ex.Evidence),
		Improvements:     nonNil(ex.Improvements),
		JDSkills:         nonNil(s.skills.Required),
		MatchedSkills:    nonNil(s.skills.Matched),
		MissingSkills:    nonNil(s.skills.Missing),
		SkillEvidence:    s.skills.Evidence,
		ExtractionSource: p.ExtractionSource,
		Degraded:         p.Degraded,
		RawText:          p.RawText,
	}
}

// Reweight recombines the stored signals of resp with new weights. It never
// calls a model and does not modify resp.
func Reweight(resp *RankResponse, w scoring.Weights) *RankResponse {
	if resp == nil {
		return nil
	}

	byInput := append([]Candidate(nil), resp.Candidates...)
	sort.SliceStable(byInput, func(i, j int) bool {
		return byInput[i].InputIndex < byInput[j].InputIndex
	})

	signals := make([]scoring.Signals, len(byInput))
	for i, c := range byInput {
		signals[i] = c.signals()
	}

	out := *resp
	out.Weights = w
	out.Candidates = make([]Candidate, 0, len(byInput))
	for pos, ranked := range scoring.Rank(signals, w) {
		c := byInput[ranked.Index]
		c.Rank = pos + 1
		c.MatchPercentage = ranked.Percentage
		c.Summary = explain.Summary(c.Name, ranked.Percentage, ranked.Signals, skills.Result{
			Required: c.JDSkills,
			Matched:  c.MatchedSkills,
		})
		out.Candidates = append(out.Candidates, c)
	}
	return &out
}

// Ask answers a grounded question about one candidate.
func (e *Engine) Ask(ctx context.Context, req AskRequest) (*grounding.Answer, error) {
	answer, err := e.grounding.Ask(ctx, grounding.Request{
		CandidateID: strings.TrimSpace(req.CandidateID),
		Question:    req.Question,
		ResumeText:  req.ResumeText,
		History:     req.History,
	})
	if err != nil {
		return nil, wrap("answering the question", err)
	}
	return answer, nil
}

// ClearSession forgets the conversation with a candidate.
func (e *Engine) ClearSession(ctx context.Context, candidateID string) error {
	candidateID = strings.TrimSpace(candidateID)
	if candidateID == "" {
		return validationError("candidate id is required")
	}
	if e.sessions == nil {
		return nil
	}
	if err := e.sessions.Clear(ctx, candidateID); err != nil {
		return wrap("clearing the session", err)
	}
	logger.WithCandidate(e.logger, candidateID).Debug("session cleared")
	return nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
