package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/spigell/talent-ranker/internal/engine"
	"github.com/spigell/talent-ranker/internal/ingest"
	"github.com/spigell/talent-ranker/internal/logger"
	"github.com/spigell/talent-ranker/internal/scoring"
	"github.com/spigell/talent-ranker/internal/session"
	"go.uber.org/zap"
)

// ReweightRequest recombines a previous ranking with new weights.
type ReweightRequest struct {
	Ranking *engine.RankResponse `json:"ranking"`
	Weights scoring.Weights      `json:"weights"`
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "service": serviceName})
}

// POST /api/rank
func (s *Server) rank(c *fiber.Ctx) error {
	var req engine.RankRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid rank request body")
	}
	return s.respondRank(c, req)
}

// POST /api/sort-resumes
func (s *Server) sortResumes(c *fiber.Ctx) error {
	req, err := s.uploadRequest(c)
	if err != nil {
		return err
	}
	req.JobDescription = c.FormValue("job_description")
	return s.respondRank(c, req)
}

// POST /api/semantic-search
func (s *Server) semanticSearch(c *fiber.Ctx) error {
	req, err := s.uploadRequest(c)
	if err != nil {
		return err
	}
	req.Query = c.FormValue("query")
	return s.respondRank(c, req)
}

func (s *Server) respondRank(c *fiber.Ctx, req engine.RankRequest) error {
	resp, err := s.engine.Rank(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// POST /api/reweight
func (s *Server) reweight(c *fiber.Ctx) error {
	var req ReweightRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid reweight request body")
	}
	if req.Ranking == nil {
		return fiber.NewError(fiber.StatusBadRequest, "ranking is required")
	}
	w := req.Weights
	if w.Semantic < 0 || w.Skill < 0 || w.Experience < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "weights must be non-negative")
	}
	return c.JSON(engine.Reweight(req.Ranking, w))
}

// POST /api/candidate-ask accepts JSON or the form fields question,
// resume_text, candidate_id and history (a JSON array of turns).
func (s *Server) candidateAsk(c *fiber.Ctx) error {
	var req engine.AskRequest
	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEApplicationJSON) {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid question body")
		}
	} else {
		req = engine.AskRequest{
			CandidateID: c.FormValue("candidate_id"),
			Question:    c.FormValue("question"),
			ResumeText:  c.FormValue("resume_text"),
			History:     s.formHistory(c),
		}
	}

	answer, err := s.engine.Ask(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(answer)
}

// DELETE /api/candidates/:id/session
func (s *Server) clearSession(c *fiber.Ctx) error {
	if err := s.engine.ClearSession(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// formHistory decodes the optional history field. A malformed value is
// ignored so the question is still answered.
func (s *Server) formHistory(c *fiber.Ctx) []session.Turn {
	raw := strings.TrimSpace(c.FormValue("history"))
	if raw == "" {
		return nil
	}
	var turns []session.Turn
	if err := json.Unmarshal([]byte(raw), &turns); err != nil {
		logger.WithCandidate(s.logger, c.FormValue("candidate_id")).Warn("ignoring malformed history", zap.Error(err))
		return nil
	}
	return turns
}

func (s *Server) uploadRequest(c *fiber.Ctx) (engine.RankRequest, error) {
	var req engine.RankRequest

	form, err := c.MultipartForm()
	if err != nil {
		return req, fiber.NewError(fiber.StatusBadRequest, "expected a multipart form with resumes")
	}

	if raw := strings.TrimSpace(c.FormValue("weights")); raw != "" {
		w, err := scoring.ParseWeights(raw)
		if err != nil {
			return req, fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		req.Weights = &w
	}

	files := form.File["resumes"]
	if len(files) == 0 {
		return req, fiber.NewError(fiber.StatusBadRequest, "at least one resume must be provided")
	}

	req.Resumes = make([]engine.Resume, 0, len(files))
	for _, fh := range files {
		doc, err := readUpload(fh)
		if err != nil {
			return req, fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		req.Resumes = append(req.Resumes, engine.Resume{ID: doc.ID, Filename: doc.Filename, Text: doc.Text})
	}
	return req, nil
}

func readUpload(fh *multipart.FileHeader) (*ingest.Document, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
	}

	doc, err := ingest.FromBytes(fh.Filename, data)
	if errors.Is(err, ingest.ErrUnsupportedFormat) {
		return nil, fmt.Errorf("%s: only .txt, .md and .pdf resumes are supported", fh.Filename)
	}
	return doc, err
}
