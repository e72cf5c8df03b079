package cmd

import (
	"log/slog"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"civicdesk/internal/bootstrap"
	"civicdesk/internal/bootstrap/logging"
	"civicdesk/internal/errs"
	"civicdesk/internal/usecase/console"
	grievanceuc "civicdesk/internal/usecase/grievance"
)

var consoleOperatorCmd = &cobra.Command{
	Use:   "operator",
	Short: "Start the operator console (resolve, reject with undo)",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *grievanceuc.Service) error {
		ctx := cmd.Context()

		if err := app.InitSchema(ctx); err != nil {
			return errs.Wrap(err, "migrate schema")
		}

		operator, _ := cmd.Flags().GetString("operator")
		if strings.TrimSpace(operator) == "" {
			operator = os.Getenv("USER")
		}
		area, _ := cmd.Flags().GetString("area")
		refresh, _ := cmd.Flags().GetDuration("refresh-interval")
		if refresh <= 0 {
			refresh = app.Config.Console.RefreshInterval
		}

		ctx = logging.WithAttrs(ctx, slog.String("operator", operator))
		model := console.NewOperatorModel(ctx, svc, console.Options{
			Operator:         operator,
			Area:             area,
			RejectUndoWindow: app.Config.Console.RejectUndoWindow,
			RefreshInterval:  refresh,
		})

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run operator console")
		}
		return nil
	}),
}

func init() {
	consoleCmd.AddCommand(consoleOperatorCmd)
	consoleOperatorCmd.Flags().String("operator", "", "Operator name recorded on audit events (default $USER)")
	consoleOperatorCmd.Flags().String("area", "", "Only show grievances from this area")
	consoleOperatorCmd.Flags().Duration("refresh-interval", 0, "Auto refresh interval (default console.refresh_interval)")
}
