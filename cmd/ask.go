package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spigell/talent-ranker/internal/engine"
	"github.com/spigell/talent-ranker/internal/ingest"
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask one grounded question about a resume",
	RunE:  runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringP("resume", "r", "", "resume file (.txt, .md or .pdf)")
	askCmd.Flags().StringP("question", "q", "", "question about the candidate")
	askCmd.Flags().String("candidate", "", "candidate id used to keep conversation history (defaults to the resume id)")
	askCmd.MarkFlagRequired("resume")
	askCmd.MarkFlagRequired("question")
}

func runAsk(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rt := setup(ctx)
	defer rt.Close()

	doc, err := readResume(cmd, rt)
	if err != nil {
		return err
	}

	question, _ := cmd.Flags().GetString("question")
	candidateID, _ := cmd.Flags().GetString("candidate")
	if candidateID == "" {
		candidateID = doc.ID
	}

	answer, err := rt.engine.Ask(ctx, engine.AskRequest{
		CandidateID: candidateID,
		Question:    question,
		ResumeText:  doc.Text,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, answer.Text)
	for _, snippet := range answer.Evidence {
		fmt.Fprintf(out, "  > %s\n", snippet)
	}
	return nil
}

func readResume(cmd *cobra.Command, rt *runtime) (*ingest.Document, error) {
	path, _ := cmd.Flags().GetString("resume")
	return ingest.ReadFile(path, int64(rt.config.Limits.MaxUploadMB)*1024*1024)
}
