package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tabledesk/internal/reconciler"
)

func newPlanCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "plan <file>",
		Short: "Print the DDL an edited table definition needs",
		Long: `Reads a JSON table definition and prints the statements that turn its
"previous" snapshot into the edited definition. Without "previous" the
table is created. Nothing is sent to a server. Use "-" to read stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			ops, err := reconciler.Reconcile(in)
			if err != nil {
				return err
			}
			getLogger(cmd.Context()).Debug("plan built", "table", in.Name, "operations", len(ops))

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(ops)
			}
			return renderPlan(cmd.OutOrStdout(), ops)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the operations as JSON")
	return cmd
}

func readInput(stdin io.Reader, path string) (reconciler.Input, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return reconciler.Input{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var in reconciler.Input
	if err := json.Unmarshal(raw, &in); err != nil {
		return reconciler.Input{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return in, nil
}

var (
	addColor    = color.New(color.FgGreen)
	dropColor   = color.New(color.FgRed)
	changeColor = color.New(color.FgYellow)
)

func operationColor(kind reconciler.Kind) *color.Color {
	switch kind {
	case reconciler.KindAddColumn, reconciler.KindAddConstraint, reconciler.KindInherit, reconciler.KindCreateTable, reconciler.KindGrant:
		return addColor
	case reconciler.KindDropColumn, reconciler.KindDropConstraint, reconciler.KindNoInherit, reconciler.KindWithoutOids:
		return dropColor
	}
	return changeColor
}

func renderPlan(w io.Writer, ops []reconciler.Operation) error {
	if len(ops) == 0 {
		_, err := fmt.Fprintln(w, "No changes.")
		return err
	}
	for _, op := range ops {
		c := operationColor(op.Kind)
		for _, stmt := range op.Statements() {
			if _, err := c.Fprintln(w, stmt); err != nil {
				return err
			}
		}
	}
	return nil
}
