package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Hold an interactive grounded conversation about a resume",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringP("resume", "r", "", "resume file (.txt, .md or .pdf)")
	chatCmd.Flags().Bool("keep-session", false, "keep the conversation history after exiting")
	chatCmd.MarkFlagRequired("resume")
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rt := setup(ctx)
	defer rt.Close()

	doc, err := readResume(cmd, rt)
	if err != nil {
		return err
	}
	rt.logger.Info("chatting about a resume", zap.String("filename", doc.Filename), zap.Int("chars", len(doc.Text)))

	err = converse(ctx, cmd.OutOrStdout(), rt, doc.ID, doc.Text)
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		err = nil
	}

	if keep, _ := cmd.Flags().GetBool("keep-session"); !keep {
		if clearErr := rt.engine.ClearSession(context.WithoutCancel(ctx), doc.ID); clearErr != nil {
			rt.logger.Warn("clearing the session", zap.Error(clearErr))
		}
	}
	return err
}
