package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spigell/talent-ranker/internal/engine"
	"github.com/spigell/talent-ranker/internal/export"
	"github.com/spigell/talent-ranker/internal/ingest"
	"github.com/spigell/talent-ranker/internal/scoring"
	"github.com/spigell/talent-ranker/internal/utils"
	"go.uber.org/zap"
)

const (
	PromptShowCandidate = "Show candidate details"
	PromptReweight      = "Change weights"
	PromptAsk           = "Ask about a candidate"
	PromptExport        = "Export to xlsx"
	PromptExit          = "Exit"
	PromptBack          = "back"

	formatTable = "table"
	formatJSON  = "json"
)

var errExit = errors.New("exit requested")

var rankPrompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptShowCandidate, PromptAsk, PromptReweight, PromptExport, PromptExit},
}

var rankCmd = &cobra.Command{
	Use:   "rank [flags] resume-files...",
	Short: "Rank resumes against a job description or a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRank,
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().String("jd", "", "file with the job description")
	rankCmd.Flags().StringP("query", "q", "", "natural language query instead of a job description")
	rankCmd.Flags().StringP("weights", "w", "", "semantic,skill,experience weights, e.g. 0.85,0.15,0")
	rankCmd.Flags().StringP("format", "f", formatTable, "output format: table or json")
	rankCmd.Flags().String("xlsx", "", "also write the ranking to this workbook")
	rankCmd.Flags().BoolP("interactive", "i", false, "browse, re-weight and question the ranking interactively")
	rankCmd.MarkFlagsMutuallyExclusive("jd", "query")
	rankCmd.MarkFlagsOneRequired("jd", "query")
}

func runRank(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rt := setup(ctx)
	defer rt.Close()

	req, err := rankRequest(cmd, args, rt)
	if err != nil {
		return err
	}

	resp, err := rt.engine.Rank(ctx, req)
	if err != nil {
		return err
	}
	rt.logger.Info("ranking ready",
		zap.Int("candidates", len(resp.Candidates)),
		zap.Float64("processing_seconds", resp.ProcessingTime),
	)

	if path, _ := cmd.Flags().GetString("xlsx"); path != "" {
		if err := saveWorkbook(rt.logger, path, resp); err != nil {
			return err
		}
	}

	format, _ := cmd.Flags().GetString("format")
	if err := printRanking(cmd.OutOrStdout(), format, resp); err != nil {
		return err
	}

	if interactive, _ := cmd.Flags().GetBool("interactive"); interactive {
		return browse(ctx, cmd.OutOrStdout(), rt, resp)
	}
	return nil
}

func rankRequest(cmd *cobra.Command, files []string, rt *runtime) (engine.RankRequest, error) {
	var req engine.RankRequest

	if path, _ := cmd.Flags().GetString("jd"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return req, fmt.Errorf("reading the job description: %w", err)
		}
		req.JobDescription = string(data)
	}
	req.Query, _ = cmd.Flags().GetString("query")

	if raw, _ := cmd.Flags().GetString("weights"); raw != "" {
		w, err := scoring.ParseWeights(raw)
		if err != nil {
			return req, err
		}
		req.Weights = &w
	}

	maxBytes := int64(rt.config.Limits.MaxUploadMB) * 1024 * 1024
	for _, path := range files {
		doc, err := ingest.ReadFile(path, maxBytes)
		if err != nil {
			rt.logger.Warn("skipping resume", zap.String("path", path), zap.Error(err))
			continue
		}
		req.Resumes = append(req.Resumes, engine.Resume{ID: doc.ID, Filename: doc.Filename, Text: doc.Text})
	}
	if len(req.Resumes) == 0 {
		return req, errors.New("none of the given resumes could be read")
	}
	return req, nil
}

func printRanking(w io.Writer, format string, resp *engine.RankResponse) error {
	switch strings.ToLower(format) {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case formatTable, "":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RANK\tMATCH\tSEMANTIC\tSKILLS\tNAME\tFILE\tMISSING")
		for _, c := range resp.Candidates {
			fmt.Fprintf(tw, "%d\t%d%%\t%.2f\t%d/%d\t%s\t%s\t%s\n",
				c.Rank, c.MatchPercentage, c.SemanticScore,
				len(c.MatchedSkills), len(c.JDSkills),
				c.Name, c.Filename, strings.Join(c.MissingSkills, ", "),
			)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func printCandidate(w io.Writer, c engine.Candidate) {
	fmt.Fprintf(w, "\n#%d %s (%s) %d%%\n", c.Rank, c.Name, c.Filename, c.MatchPercentage)
	fmt.Fprintf(w, "%s\n\n%s\n", c.Summary, c.Feedback)
	sections := []struct {
		title string
		items []string
	}{
		{"Skills", c.Skills},
		{"Matched", c.MatchedSkills},
		{"Missing", c.MissingSkills},
		{"Evidence", c.Evidence},
		{"Improvements", c.Improvements},
	}
	for _, s := range sections {
		if len(s.items) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s:\n", s.title)
		for _, item := range s.items {
			fmt.Fprintf(w, "  - %s\n", item)
		}
	}
	fmt.Fprintln(w)
}

func saveWorkbook(logger *zap.Logger, path string, resp *engine.RankResponse) error {
	saved, err := export.SaveWorkbook(path, resp)
	if err != nil {
		return err
	}
	logger.Info("ranking exported", zap.String("filename", saved))
	return nil
}

// browse is the interactive loop over a finished ranking.
func browse(ctx context.Context, out io.Writer, rt *runtime, resp *engine.RankResponse) error {
	for {
		_, action, err := rankPrompt.Run()
		if err != nil {
			return err
		}

		resp, err = handleAction(ctx, out, rt, action, resp)
		if errors.Is(err, errExit) {
			return nil
		}
		if err != nil {
			rt.logger.Error("action failed", zap.String("action", action), zap.Error(err))
		}
	}
}

func handleAction(ctx context.Context, out io.Writer, rt *runtime, action string, resp *engine.RankResponse) (*engine.RankResponse, error) {
	switch action {
	case PromptShowCandidate:
		c, err := chooseCandidate(resp)
		if err != nil || c == nil {
			return resp, err
		}
		printCandidate(out, *c)
		return resp, nil
	case PromptAsk:
		c, err := chooseCandidate(resp)
		if err != nil || c == nil {
			return resp, err
		}
		return resp, converse(ctx, out, rt, c.ID, c.RawText)
	case PromptReweight:
		input := promptui.Prompt{
			Label:   "Weights (semantic,skill,experience)",
			Default: fmt.Sprintf("%g,%g,%g", resp.Weights.Semantic, resp.Weights.Skill, resp.Weights.Experience),
			Validate: func(s string) error {
				_, err := scoring.ParseWeights(s)
				return err
			},
		}
		raw, err := input.Run()
		if err != nil {
			return resp, err
		}
		w, err := scoring.ParseWeights(raw)
		if err != nil {
			return resp, err
		}
		resp = engine.Reweight(resp, w)
		return resp, printRanking(out, formatTable, resp)
	case PromptExport:
		input := promptui.Prompt{Label: "Workbook path", Default: app + ".xlsx"}
		path, err := input.Run()
		if err != nil {
			return resp, err
		}
		return resp, saveWorkbook(rt.logger, path, resp)
	case PromptExit:
		rt.logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return resp, errExit
	default:
		return resp, fmt.Errorf("invalid action: %s", action)
	}
}

func chooseCandidate(resp *engine.RankResponse) (*engine.Candidate, error) {
	items := make([]string, 0, len(resp.Candidates)+1)
	for _, c := range resp.Candidates {
		items = append(items, fmt.Sprintf("%d. %s / %s / %d%%", c.Rank, c.Name, c.Filename, c.MatchPercentage))
	}

	candidatePrompt := promptui.Select{
		Label: "Choose a candidate and press ENTER",
		Items: append(items, PromptBack),
		Size:  10,
	}
	idx, selected, err := candidatePrompt.Run()
	if err != nil {
		return nil, err
	}
	if selected == PromptBack {
		return nil, nil
	}
	return &resp.Candidates[idx], nil
}

// converse runs a question loop about one candidate until an empty line.
func converse(ctx context.Context, out io.Writer, rt *runtime, candidateID, resumeText string) error {
	for {
		input := promptui.Prompt{Label: "Question (empty to go back)"}
		question, err := input.Run()
		if err != nil {
			return err
		}
		if strings.TrimSpace(question) == "" {
			return nil
		}

		answer, err := rt.engine.Ask(ctx, engine.AskRequest{
			CandidateID: candidateID,
			Question:    question,
			ResumeText:  resumeText,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "\n%s\n", answer.Text)
		for _, snippet := range answer.Evidence {
			fmt.Fprintf(out, "  > %s\n", utils.TruncateForLog(snippet, 300))
		}
		fmt.Fprintln(out)
	}
}
