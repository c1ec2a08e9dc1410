package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"becoming/internal/becoming/models"
	"becoming/pkg/proof"
)

type proofResult struct {
	Source    string `json:"source"`
	ProofHash string `json:"proof_hash"`
}

type checkResult struct {
	ProofHash string `json:"proof_hash"`
	Valid     bool   `json:"valid"`
	Reason    string `json:"reason,omitempty"`
}

// NewProofCommand groups proof hash helpers.
func NewProofCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proof",
		Short: "Proof hashes for milestones",
	}
	cmd.AddCommand(newProofHashCommand(rootOpts))
	cmd.AddCommand(newProofCheckCommand(rootOpts))
	return cmd
}

func newProofHashCommand(rootOpts *RootOptions) *cobra.Command {
	var text string
	cmd := &cobra.Command{
		Use:   "hash [file|-]",
		Short: "SHA-256 a file, stdin or --text into a proof hash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				result proofResult
				err    error
			)
			switch {
			case cmd.Flags().Changed("text") && len(args) > 0:
				return errors.New("use either --text or a file argument")
			case cmd.Flags().Changed("text"):
				result = proofResult{Source: "text", ProofHash: proof.HashText(text)}
			case len(args) == 0 || args[0] == "-":
				result.Source = "stdin"
				result.ProofHash, err = proof.HashReader(cmd.InOrStdin())
			default:
				result.Source = args[0]
				result.ProofHash, err = proof.HashFile(args[0])
			}
			if err != nil {
				return err
			}
			return output(cmd.OutOrStdout(), rootOpts, result, result.ProofHash)
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "hash this text instead of a file")
	return cmd
}

func newProofCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <proof-hash>",
		Short: "Check that a proof hash would be accepted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result := checkResult{ProofHash: args[0], Valid: true}
			if err := models.ValidateProofHash(args[0]); err != nil {
				result.Valid = false
				result.Reason = err.Error()
			}
			line := "valid"
			if !result.Valid {
				line = "invalid: " + result.Reason
			}
			if err := output(cmd.OutOrStdout(), rootOpts, result, line); err != nil {
				return err
			}
			if !result.Valid {
				return errInvalidProof
			}
			return nil
		},
	}
}

var errInvalidProof = errors.New("invalid proof hash")
