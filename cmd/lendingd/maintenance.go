package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/library-lending-go/lending/config"
	"github.com/AntonStoeckl/library-lending-go/lending/engine"
	"github.com/AntonStoeckl/library-lending-go/testutil/fixtures"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the document table of the postgres engines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			if err = a.backend.Migrate(cmd.Context()); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "schema ready (%s)\n", a.backend.Engine())

			return nil
		},
	}
}

func newSeedCommand(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write books, students and loans from a YAML fixture file into the store",
		Long: `Write books, students and loans from a YAML fixture file into the store.
Without --file the embedded sample library is used. Existing documents are overwritten.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			set, err := a.seed(cmd.Context(), file)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d books, %d students, %d loans (%s)\n",
				len(set.Books), len(set.Students), len(set.Loans), a.backend.Engine())

			if a.backend.Engine() == config.EngineMemory {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "the memory engine keeps nothing after exit, use serve --seed instead")
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "YAML fixture file (default: embedded sample library)")

	return cmd
}

func newReconcileCommand(opts *rootOptions) *cobra.Command {
	var studentID string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Repair the loan lists of students",
		Long: `Repair the loan lists of students: re-link active loans missing from a list and drop
listed ids whose loan is returned, void, missing or someone else's.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			return a.reconcile(cmd.Context(), cmd.OutOrStdout(), studentID)
		},
	}

	cmd.Flags().StringVar(&studentID, "student", "", "only repair this student")

	return cmd
}

// reconcile repairs one student, or all of them when studentID is empty, and reports every
// repaired list to out.
func (a *app) reconcile(ctx context.Context, out io.Writer, studentID string) error {
	service, err := a.newService()
	if err != nil {
		return err
	}

	var reports []engine.ReconcileReport
	if studentID != "" {
		report, reconcileErr := service.Reconcile(ctx, studentID)
		if reconcileErr != nil {
			return reconcileErr
		}

		reports = append(reports, report)
	} else if reports, err = service.ReconcileAll(ctx); err != nil {
		return err
	}

	repaired := 0
	for _, report := range reports {
		if !report.Changed() {
			continue
		}

		repaired++
		_, _ = fmt.Fprintf(out, "%s: reinserted %v, dropped %v\n", report.StudentID, report.Reinserted, report.Dropped)
	}

	_, _ = fmt.Fprintf(out, "checked %d students, repaired %d\n", len(reports), repaired)

	return nil
}

func loadFixtures(file string) (fixtures.Set, error) {
	if file == "" {
		return fixtures.Default(), nil
	}

	return fixtures.Load(file)
}

func (a *app) seed(ctx context.Context, file string) (fixtures.Set, error) {
	set, err := loadFixtures(file)
	if err != nil {
		return fixtures.Set{}, err
	}

	if err = set.Seed(ctx, a.backend.Store, a.cfg.Engine.Collections.Collections()); err != nil {
		return fixtures.Set{}, err
	}

	a.logger.Info("store seeded", "books", len(set.Books), "students", len(set.Students), "loans", len(set.Loans))

	return set, nil
}
