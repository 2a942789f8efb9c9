package engine

import (
	"github.com/spigell/talent-ranker/internal/scoring"
	"github.com/spigell/talent-ranker/internal/session"
)

const (
	TargetJobDescription = "job-description"
	TargetQuery          = "query"
)

// Resume is one uploaded resume.
type Resume struct {
	ID       string `json:"id,omitempty"`
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

// RankRequest asks to rank resumes against exactly one of a job description
// or a query.
type RankRequest struct {
	JobDescription string           `json:"jobDescription,omitempty"`
	Query          string           `json:"query,omitempty"`
	Resumes        []Resume         `json:"resumes"`
	Weights        *scoring.Weights `json:"weights,omitempty"`
}

// Candidate is one ranked resume. The three raw signals are kept so the
// ranking can be recombined without rescoring.
type Candidate struct {
	ID               string            `json:"id"`
	Rank             int               `json:"rank"`
	InputIndex       int               `json:"inputIndex"`
	Name             string            `json:"name"`
	Filename         string            `json:"filename"`
	MatchPercentage  int               `json:"matchPercentage"`
	SemanticScore    float64           `json:"semanticScore"`
	SkillMatchRatio  float64           `json:"skillMatchRatio"`
	ExperienceSignal float64           `json:"experienceSignal"`
	Summary          string            `json:"summary"`
	Skills           []string          `json:"skills"`
	Experience       []string          `json:"experience"`
	Education        []string          `json:"education"`
	Feedback         string            `json:"feedback"`
	Evidence         []string          `json:"evidence"`
	Improvements     []string          `json:"improvements"`
	JDSkills         []string          `json:"jdSkills"`
	MatchedSkills    []string          `json:"matchedSkills"`
	MissingSkills    []string          `json:"missingSkills"`
	SkillEvidence    map[string]string `json:"skillEvidence"`
	ExtractionSource string            `json:"extractionSource"`
	Degraded         bool              `json:"degraded"`
	RawText          string            `json:"rawText"`
}

// RankResponse is an ordered ranking.
type RankResponse struct {
	Target         string          `json:"target"`
	TargetKind     string          `json:"targetKind"`
	Weights        scoring.Weights `json:"weights"`
	Candidates     []Candidate     `json:"candidates"`
	TotalResumes   int             `json:"totalResumes"`
	ProcessingTime float64         `json:"processingTime"`
}

// AskRequest is a question about one candidate.
type AskRequest struct {
	CandidateID string         `json:"candidateId,omitempty"`
	Question    string         `json:"question"`
	ResumeText  string         `json:"resumeText"`
	History     []session.Turn `json:"history,omitempty"`
}

func (c Candidate) signals() scoring.Signals {
	return scoring.Signals{
		Semantic:         c.SemanticScore,
		Skill:            c.SkillMatchRatio,
		Experience:       c.ExperienceSignal,
		NoRequiredSkills: len(c.JDSkills) == 0,
	}
}
