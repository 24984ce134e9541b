package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/compozy/webhookflow/engine/workflow"
)

// newValidateCommand builds "validate <file>": load a single workflow
// definition and run schema/business-rule validation without starting the
// server, so a definition can be checked in CI before it is deployed.
func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a workflow definition file without starting the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0])
		},
	}
}

func runValidate(cmd *cobra.Command, path string) error {
	def, err := loadWorkflowFile(path)
	if err != nil {
		return err
	}
	schemaResult, err := workflow.SchemaValidate(def)
	if err != nil {
		return fmt.Errorf("failed to run schema validation: %w", err)
	}
	result := workflow.Validate(def)
	result.Errors = append(schemaResult.Errors, result.Errors...)
	printValidationResult(cmd, path, result)
	if !result.OK() {
		return fmt.Errorf("workflow %q failed validation with %d error(s)", def.Name, len(result.Errors))
	}
	return nil
}

func printValidationResult(cmd *cobra.Command, path string, result workflow.ValidationResult) {
	out := cmd.OutOrStdout()
	if result.OK() && len(result.Warnings) == 0 {
		fmt.Fprintf(out, "%s: valid\n", path)
		return
	}
	for _, issue := range result.Errors {
		fmt.Fprintf(out, "%s: error: %s: %s\n", path, issue.Path, issue.Message)
	}
	for _, issue := range result.Warnings {
		fmt.Fprintf(out, "%s: warning: %s: %s\n", path, issue.Path, issue.Message)
	}
}
