package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"tabledesk/internal/database"
	"tabledesk/internal/repositories"
	"tabledesk/internal/services"
)

// withCatalog connects to the administered server for the duration of fn.
func withCatalog(ctx context.Context, fn func(*services.CatalogService) error) error {
	cfg := getConfig(ctx)
	logger := getLogger(ctx)

	pool, err := database.Connect(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(services.NewCatalogService(repositories.NewCatalogRepository(pool), logger))
}

func newFunctionsCommand() *cobra.Command {
	var (
		schema   string
		triggers bool
		showSQL  bool
	)

	cmd := &cobra.Command{
		Use:   "functions [name]",
		Short: "List the functions of a schema, or show one of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd.Context(), func(svc *services.CatalogService) error {
				functions, err := svc.Functions(cmd.Context(), schema, triggers)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()

				if len(args) == 0 {
					t := newTable(w, table.Row{"Function", "Returns", "Language", "Volatility", "Owner"})
					for _, f := range functions {
						t.AppendRow(table.Row{f.FullName(), f.ReturnType, f.Language, f.Volatility, f.Owner})
					}
					t.Render()
					return nil
				}

				found := false
				for _, f := range functions {
					if f.Name != args[0] && f.FullName() != args[0] {
						continue
					}
					found = true
					if showSQL {
						_, _ = fmt.Fprintln(w, f.SQL())
					} else {
						renderProperties(w, f.Properties())
					}
				}
				if !found {
					return fmt.Errorf("function %s: %w", args[0], repositories.ErrObjectNotFound)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&schema, "schema", "public", "schema to list")
	cmd.Flags().BoolVar(&triggers, "triggers", false, "list trigger functions instead")
	cmd.Flags().BoolVar(&showSQL, "sql", false, "print the CREATE statement instead of the properties")
	return cmd
}

func newUsersCommand() *cobra.Command {
	var showSQL bool

	cmd := &cobra.Command{
		Use:   "users [name]",
		Short: "List login roles, or show one of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd.Context(), func(svc *services.CatalogService) error {
				w := cmd.OutOrStdout()

				if len(args) == 1 {
					u, err := svc.User(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					if showSQL {
						_, _ = fmt.Fprintln(w, u.SQL())
					} else {
						renderProperties(w, u.Properties())
					}
					return nil
				}

				users, err := svc.Users(cmd.Context())
				if err != nil {
					return err
				}
				t := newTable(w, table.Row{"User", "Superuser", "Create DB", "Create Role", "Member Of"})
				for _, u := range users {
					t.AppendRow(table.Row{u.Name, u.Superuser, u.CreateDB, u.CreateRole, strings.Join(u.MemberOf, ", ")})
				}
				t.Render()
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showSQL, "sql", false, "print the CREATE statement instead of the properties")
	return cmd
}
