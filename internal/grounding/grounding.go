// Package grounding answers free-text questions about one candidate using only
// excerpts retrievable from that candidate's resume. When nothing supports an
// answer the reply says so explicitly.
package grounding

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/spigell/talent-ranker/internal/logger"
	"github.com/spigell/talent-ranker/internal/semantic"
	"github.com/spigell/talent-ranker/internal/session"
	"github.com/spigell/talent-ranker/internal/skills"
	"go.uber.org/zap"
)

// ErrEmptyQuestion is returned for blank questions.
var ErrEmptyQuestion = errors.New("question is empty")

const (
	historyWindow      = 10
	maxEvidence        = 3
	maxSnippetRunes    = 250
	maxLineRunes       = 200
	maxRankedSentences = 200
	keywordBoostStep   = 0.02
	maxKeywordBoost    = 0.1
)

// Embedder produces vectors used to rank resume sentences against the
// question. *semantic.Scorer satisfies it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Request is one question about one candidate.
type Request struct {
	CandidateID string
	Question    string
	ResumeText  string
	// History is the client's view of recent turns, merged with the stored
	// session.
	History []session.Turn
}

// Answer is a grounded reply. Evidence is empty exactly when the answer
// states that no direct evidence was found.
type Answer struct {
	Text     string   `json:"answer"`
	Intent   Intent   `json:"intent"`
	Evidence []string `json:"snippets"`
	Grounded bool     `json:"grounded"`
}

// Engine answers questions. It is safe for concurrent use.
type Engine struct {
	vocab    *skills.Vocabulary
	store    session.Store
	embedder Embedder
	logger   *zap.Logger
}

// New creates an engine. store and embedder are optional: without a store
// nothing is remembered, without an embedder sentences are ranked by keyword
// overlap only.
func New(vocab *skills.Vocabulary, store session.Store, embedder Embedder, log *zap.Logger) *Engine {
	return &Engine{vocab: vocab, store: store, embedder: embedder, logger: logger.OrNop(log)}
}

type query struct {
	question string
	// context is the question prefixed with recent turns.
	context    string
	technology string
	doc        *document
}

// Ask answers req. The question and its answer are appended to the
// candidate's session only when the call was not cancelled.
func (e *Engine) Ask(ctx context.Context, req Request) (*Answer, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	log := logger.WithCandidate(e.logger, req.CandidateID)
	history := e.history(ctx, req, log)

	q := query{
		question: question,
		context:  withContext(history, question),
		doc:      prepare(req.ResumeText),
	}

	intent := classify(question)
	if intent == IntentTenure || intent == IntentGeneral {
		q.technology = e.technology(question, history)
		if intent == IntentGeneral && q.technology != "" {
			intent = IntentTechnology
		}
	}

	var answer *Answer
	switch intent {
	case IntentLeadership:
		answer = leadership(e.rank(ctx, q, log))
	case IntentGPA:
		answer = gpa(q.doc)
	case IntentTenure:
		answer = e.tenure(q)
	case IntentEducation:
		answer = education(q.doc)
	case IntentProjects:
		answer = projects(q)
	case IntentTechnology:
		answer = e.technologyAnswer(q)
	default:
		answer = general(q, e.rank(ctx, q, log))
	}
	answer.Intent = intent
	answer.Grounded = len(answer.Evidence) > 0

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.remember(ctx, req.CandidateID, question, answer.Text, log)

	log.Debug("question answered",
		zap.String(logger.FieldIntent, string(intent)),
		zap.Bool("grounded", answer.Grounded),
		zap.Int("evidence", len(answer.Evidence)),
	)
	return answer, nil
}

// history merges the stored session with the client's turns, keeping the
// newest ones without contact details.
func (e *Engine) history(ctx context.Context, req Request, log *zap.Logger) []session.Turn {
	var stored []session.Turn
	if req.CandidateID != "" && e.store != nil {
		turns, err := e.store.History(ctx, req.CandidateID)
		if err != nil {
			log.Warn("reading session history failed", zap.Error(err))
		}
		stored = turns
	}

	merged := make([]session.Turn, 0, 2*historyWindow)
	merged = append(merged, tail(stored, historyWindow)...)
	merged = append(merged, tail(req.History, historyWindow)...)
	merged = tail(merged, historyWindow)

	out := make([]session.Turn, 0, len(merged))
	for _, turn := range merged {
		text := strings.TrimSpace(turn.Text)
		if text == "" || isContact(text) {
			continue
		}
		out = append(out, session.Turn{Role: turn.Role, Text: text})
	}
	return out
}

func (e *Engine) remember(ctx context.Context, id, question, answer string, log *zap.Logger) {
	if id == "" || e.store == nil {
		return
	}
	err := e.store.Append(ctx, id,
		session.Turn{Role: session.RoleUser, Text: question},
		session.Turn{Role: session.RoleAssistant, Text: answer},
	)
	if err != nil {
		log.Warn("storing conversation turn failed", zap.Error(err))
	}
}

// technology returns the vocabulary term named by the question. Follow-up
// questions ("how long with it?") inherit the term from the newest user turn
// that named one.
func (e *Engine) technology(question string, history []session.Turn) string {
	if e.vocab == nil {
		return ""
	}
	if terms := e.vocab.Terms(question, 1); len(terms) > 0 {
		return terms[0]
	}
	if !followUpQuestion.MatchString(question) {
		return ""
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != session.RoleUser {
			continue
		}
		if terms := e.vocab.Terms(history[i].Text, 1); len(terms) > 0 {
			return terms[0]
		}
	}
	return ""
}

type scoredSentence struct {
	text  string
	score float64
}

// rank orders resume sentences by similarity to the question in context,
// nudged by keyword overlap. Embedding failures degrade to keyword ranking.
func (e *Engine) rank(ctx context.Context, q query, log *zap.Logger) []scoredSentence {
	sentences := q.doc.sentences
	if len(sentences) > maxRankedSentences {
		sentences = sentences[:maxRankedSentences]
	}
	if len(sentences) == 0 {
		return nil
	}

	sims := make([]float64, len(sentences))
	if e.embedder != nil {
		vectors, err := e.embedder.Embed(ctx, append([]string{q.context}, sentences...))
		switch {
		case err != nil:
			log.Warn("ranking sentences by keywords only", zap.Error(err))
		case len(vectors) == len(sentences)+1:
			for i := range sentences {
				sims[i] = semantic.Cosine(vectors[0], vectors[i+1])
			}
		}
	}

	kw := keywords(q.context)
	out := make([]scoredSentence, len(sentences))
	for i, s := range sentences {
		lower := strings.ToLower(s)
		hits := 0
		for _, k := range kw {
			if strings.Contains(lower, k) {
				hits++
			}
		}
		out[i] = scoredSentence{text: s, score: sims[i] + min(maxKeywordBoost, keywordBoostStep*float64(hits))}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].score > out[j].score
	})
	return out
}

func withContext(history []session.Turn, question string) string {
	if len(history) == 0 {
		return question
	}
	parts := make([]string, 0, len(history))
	for _, turn := range history {
		prefix := "Assistant:"
		if turn.Role == session.RoleUser {
			prefix = "User:"
		}
		parts = append(parts, prefix+" "+turn.Text)
	}
	return strings.Join(parts, " | ") + " | " + question
}

func tail(turns []session.Turn, n int) []session.Turn {
	if len(turns) > n {
		return turns[len(turns)-n:]
	}
	return turns
}
