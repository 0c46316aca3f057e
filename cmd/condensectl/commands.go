package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/condensate/internal/buildconfig"
	"github.com/Harshitk-cp/condensate/internal/config"
	"github.com/Harshitk-cp/condensate/internal/domain"
	"github.com/Harshitk-cp/condensate/internal/guardrail"
	"github.com/Harshitk-cp/condensate/internal/lexical"
	"github.com/Harshitk-cp/condensate/internal/provenance"
	"github.com/Harshitk-cp/condensate/internal/service"
)

func openGuardrail() (*guardrail.Engine, error) {
	return guardrail.Open(config.GuardrailPatternsFile(), config.InstructionBlockThreshold(), config.SafetyBlockThreshold())
}

// check scores text the way candidate facts are scored before admission.
// Blocked text exits 1.
func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [text...]",
		Short: "Score text for instruction injection and unsafe content",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			guard, err := openGuardrail()
			if err != nil {
				return err
			}
			res := guard.Check(text)
			newLogger().Debug("guardrail check",
				zap.Float64("instruction_score", res.InstructionScore),
				zap.Float64("safety_score", res.SafetyScore))

			out := cmd.OutOrStdout()
			if jsonOut {
				if err := printJSON(out, res); err != nil {
					return err
				}
			} else {
				instr, safety := guard.Thresholds()
				fmt.Fprintf(out, "instruction: %.2f (block at %.2f) %s\n", res.InstructionScore, instr, strings.Join(res.InstructionMatches, ", "))
				fmt.Fprintf(out, "safety:      %.2f (block at %.2f) %s\n", res.SafetyScore, safety, strings.Join(res.SafetyMatches, ", "))
				switch {
				case res.ShouldBlock:
					fmt.Fprintln(out, "verdict: blocked")
				case res.ShouldFlag:
					fmt.Fprintln(out, "verdict: flagged")
				default:
					fmt.Fprintln(out, "verdict: clean")
				}
			}
			if res.ShouldBlock {
				return &exitCodeError{code: exitFailure, msg: res.Reason()}
			}
			return nil
		},
	}
}

type previewOutput struct {
	*service.DeterministicResult
	Status          domain.AssertionStatus `json:"status"`
	RejectionReason string                 `json:"rejection_reason,omitempty"`
}

// preview runs deterministic condensation on one text without touching the
// database. Stop words come from STOPWORDS_FILE only.
func newPreviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview [text...]",
		Short: "Show the entities and summary deterministic condensation would produce",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			logger := newLogger()
			lex := lexical.Bootstrap(cmd.Context(), config.StopwordsFile(), "", logger)
			guard, err := openGuardrail()
			if err != nil {
				return err
			}

			res := service.NewDeterministicCondenser(lex).Process(text)
			admitter := service.NewAdmitter(guard, nil, domain.ParseReviewMode(config.ReviewMode()), "")
			status, reason := admitter.Status(domain.MethodDeterministic, guard.Check(res.Condensed))

			po := previewOutput{DeterministicResult: res, Status: status}
			if reason != nil {
				po.RejectionReason = *reason
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, po)
			}
			fmt.Fprintf(out, "summary: %s\n", res.Condensed)
			fmt.Fprintf(out, "savings: %d%%\n", res.SavingsPct)
			fmt.Fprintf(out, "status:  %s\n", status)
			if po.RejectionReason != "" {
				fmt.Fprintf(out, "reason:  %s\n", po.RejectionReason)
			}
			for _, e := range res.Entities {
				fmt.Fprintf(out, "  %-10s %s (%.2f)\n", e.Type, e.Name, e.Confidence)
			}
			return nil
		},
	}
}

// verify checks the signatures of proof envelopes against CONDENSATE_SECRET.
// Input is one envelope or an array of them. Any invalid envelope exits 1.
func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [envelope-json]",
		Short: "Verify proof envelope signatures",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			envs, err := parseEnvelopes(raw)
			if err != nil {
				return err
			}

			secret, explicit := config.Secret()
			if !explicit {
				fmt.Fprintln(os.Stderr, "warning: CONDENSATE_SECRET not set, verifying with the development secret")
			}
			signer, err := provenance.NewSigner(secret)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			invalid := 0
			results := make([]map[string]any, 0, len(envs))
			for i, env := range envs {
				ok := signer.Verify(env)
				if !ok {
					invalid++
				}
				results = append(results, map[string]any{"index": i, "method": env.Method, "valid": ok})
				if !jsonOut {
					fmt.Fprintf(out, "%d %s %s valid=%t\n", i, env.Method, env.Timestamp, ok)
				}
			}
			if jsonOut {
				if err := printJSON(out, results); err != nil {
					return err
				}
			}
			if invalid > 0 {
				return &exitCodeError{code: exitFailure, msg: fmt.Sprintf("%d of %d envelopes invalid", invalid, len(envs))}
			}
			return nil
		},
	}
}

func parseEnvelopes(raw string) ([]domain.ProofEnvelope, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") {
		var envs []domain.ProofEnvelope
		if err := json.Unmarshal([]byte(raw), &envs); err != nil {
			return nil, fmt.Errorf("parse envelopes: %w", err)
		}
		return envs, nil
	}
	var env domain.ProofEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}
	return []domain.ProofEnvelope{env}, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), buildconfig.VersionInfo())
			}
			fmt.Fprintln(cmd.OutOrStdout(), buildconfig.String())
			return nil
		},
	}
}
