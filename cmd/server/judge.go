package main

import (
	"errors"
	"fmt"
	"time"

	"debatehub/config"
	"debatehub/internal/debate"
	"debatehub/services"

	"github.com/spf13/cobra"
)

var sampleDebate = map[debate.Phase]string{
	debate.PhaseOpeningFor:           "Good evening. I firmly support the motion and will outline three reasons.",
	debate.PhaseOpeningAgainst:       "I disagree with the motion and will demonstrate why it fails real-world tests.",
	debate.PhaseCrossForQuestion:     "Could you clarify how your plan addresses the second-order consequences?",
	debate.PhaseCrossAgainstAnswer:   "Certainly. The negative impacts you highlight are mitigated by phased adoption.",
	debate.PhaseCrossAgainstQuestion: "What evidence do you have that your proposal scales nationwide?",
	debate.PhaseCrossForAnswer:       "We have data from three pilot programs that show 30 percent efficiency gains.",
	debate.PhaseClosingFor:           "In summary, the motion stands: it is practical, evidence-backed, and humane.",
	debate.PhaseClosingAgainst:       "In closing, the proposal ignores key risks. The safer choice is to reject it.",
}

// sampleBundles splits the sample debate into the two sides' bundles.
func sampleBundles() map[debate.Stance]map[debate.Phase]string {
	bundles := map[debate.Stance]map[debate.Phase]string{
		debate.StanceFor:     {},
		debate.StanceAgainst: {},
	}
	for phase, text := range sampleDebate {
		stance, _ := debate.ActingStance(phase)
		bundles[stance][phase] = text
	}
	return bundles
}

// newJudgeCommand runs the judge once against a sample debate, which is
// handy for checking the model and prompt without a live session.
func newJudgeCommand(configPath *string) *cobra.Command {
	var topic string
	cmd := &cobra.Command{
		Use:   "judge",
		Short: "Judge a sample debate and print the verdict",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Gemini.ApiKey == "" {
				return errors.New("gemini.apiKey (or GEMINI_API_KEY) is required")
			}
			logger := newLogger(cfg.Log.Level)

			judge, err := services.NewGeminiJudge(cmd.Context(), cfg.Gemini.ApiKey, cfg.Gemini.Model)
			if err != nil {
				return err
			}
			svc := services.NewJudgmentService(services.NewMemoryJudgmentStore(), judge, cfg.Debate.JudgeTimeout, logger)

			roomID := fmt.Sprintf("sample-%d", time.Now().Unix())
			res, err := svc.SubmitSession(cmd.Context(), roomID, topic, sampleBundles())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Judgment Result:")
			fmt.Fprintln(cmd.OutOrStdout(), res.Result)
			if res.Verdict != nil && res.Verdict.Failed {
				return fmt.Errorf("judging failed: %s", res.Verdict.FailureReason)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "The motion under debate", "debate topic")
	return cmd
}
