package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cityatlas/platform-management/modules/inventory/domain"
	"github.com/cityatlas/platform-management/modules/inventory/infrastructure/tabular"
	"github.com/cityatlas/platform-management/modules/inventory/services"
	"github.com/cityatlas/platform-management/pkg/composables"
	"github.com/cityatlas/platform-management/pkg/configuration"
)

// batchFlags are shared by all insertion subcommands.
type batchFlags struct {
	city       string
	file       string
	dryRun     bool
	logEvery   int
	prefixes   []string
	newPrefix  string
	properties []string
	mapping    string
	audit      string
}

func (f *batchFlags) register(cmd *cobra.Command, withAddress bool) {
	cmd.Flags().StringVar(&f.city, "city", "", "City name or code to reconcile against (required)")
	cmd.Flags().StringVar(&f.file, "file", "", "Input document: csv, xlsx, json or geojson (required)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Run the full pipeline but discard all changes at the end")
	cmd.Flags().IntVar(&f.logEvery, "log-every", 200, "Commit and log progress every N rows")
	cmd.Flags().StringSliceVar(&f.properties, "properties", nil, "Extra property mapping dbkey:column (repeatable)")
	cmd.Flags().StringVar(&f.mapping, "mapping", "", "YAML column-mapping profile")
	cmd.Flags().StringVar(&f.audit, "audit", "", "Audit workbook path (default next to input, - to disable)")
	if withAddress {
		cmd.Flags().StringSliceVar(&f.prefixes, "address-prefix", nil, "Accepted address prefix, longest match wins (repeatable)")
		cmd.Flags().StringVar(&f.newPrefix, "new-prefix", "", "Replacement prefix stored on inserted addresses")
	}
	_ = cmd.MarkFlagRequired("city")
	_ = cmd.MarkFlagRequired("file")
}

func (f *batchFlags) propertiesMapping() (domain.PropertiesMapping, error) {
	props := make(domain.PropertiesMapping, len(f.properties))
	for _, p := range f.properties {
		key, column, found := strings.Cut(p, ":")
		if !found || key == "" || column == "" {
			return nil, fmt.Errorf("invalid --properties value %q, expected dbkey:column", p)
		}
		props[key] = column
	}
	return props, nil
}

func (f *batchFlags) normalizer() domain.AddressNormalizer {
	return domain.NewAddressNormalizer(f.prefixes, f.newPrefix)
}

// openPool connects to the database configured in the environment and puts
// the pool into the context for the repositories.
func openPool(ctx context.Context) (context.Context, *pgxpool.Pool, error) {
	cfg := configuration.Use()
	pool, err := pgxpool.New(ctx, cfg.Database.ConnectionString())
	if err != nil {
		return ctx, nil, fmt.Errorf("connecting to the database: %w", err)
	}
	return composables.WithPool(ctx, pool), pool, nil
}

// validator is the pre-flight header check every upserter implements.
type validator interface {
	Validate(table *domain.Table) error
}

// finalizer is the optional post-batch sweep of an upserter.
type finalizer interface {
	Finalize(ctx context.Context) error
}

// runBatch runs the per-row pipeline over a loaded document with SIGINT
// wired to the interactive cancel prompt, runs the upserter's post-batch
// sweep and writes the audit log.
func runBatch(ctx context.Context, f *batchFlags, kind domain.EntityKind, table *domain.Table, proc services.RowProcessor, pool *pgxpool.Pool, log *logrus.Logger, allowSuppress bool) error {
	if v, ok := proc.(validator); ok {
		if err := v.Validate(table); err != nil {
			return err
		}
	}
	log.WithFields(logrus.Fields{"rows": table.Len(), "city": f.city, "dry_run": f.dryRun}).
		Info("starting batch")

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	runner := services.NewBatchRunner(pool, promptDecider(log, allowSuppress), log)
	result, err := runner.Run(sigCtx, table, proc, services.BatchOptions{
		DryRun:   f.dryRun,
		LogEvery: f.logEvery,
	})
	if err != nil {
		return err
	}
	stop()

	if fin, ok := proc.(finalizer); ok && !f.dryRun && result.Progress.Cancelled == 0 {
		if err := composables.InTx(ctx, fin.Finalize); err != nil {
			return fmt.Errorf("post-batch sweep: %w", err)
		}
	}

	if f.audit != "-" && !result.SuppressExport {
		writeAudit(f.auditPath(), table, result, kind, log)
	}
	return nil
}

func (f *batchFlags) auditPath() string {
	if f.audit != "" {
		return f.audit
	}
	base := strings.TrimSuffix(filepath.Base(f.file), filepath.Ext(f.file))
	return filepath.Join(filepath.Dir(f.file), base+"_insertion.xlsx")
}

func writeAudit(path string, table *domain.Table, result *services.BatchResult, kind domain.EntityKind, log *logrus.Logger) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		if err := tabular.WriteAuditCSV(path, table, result.Outcomes, kind); err != nil {
			log.WithError(err).Error("could not write the audit log")
			return
		}
		log.WithField("file", path).Info("audit log written")
		return
	}
	sheet, err := tabular.WriteAudit(path, table, result.Outcomes, kind)
	if err != nil {
		log.WithError(err).Error("could not write the audit log")
		return
	}
	log.WithFields(logrus.Fields{"file": path, "sheet": sheet}).Info("audit log written")
}

// promptDecider asks on stdin what to do with work already applied when the
// batch is interrupted. The suppress option additionally drops the audit
// export.
func promptDecider(log *logrus.Logger, allowSuppress bool) services.CancelDeciderFunc {
	return func(progress domain.BatchProgress) services.CancelDecision {
		log.WithFields(progress.Fields()).Warn("batch interrupted")
		prompt := "Keep the changes made so far? (y/n): "
		if allowSuppress {
			prompt = "Keep the changes made so far? (y = keep / n = discard / s = discard and skip the audit export): "
		}
		fmt.Fprint(os.Stderr, prompt)
		answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes", "д", "1":
			return services.CancelKeep
		case "s":
			if allowSuppress {
				return services.CancelDiscardSuppressExport
			}
		}
		return services.CancelDiscard
	}
}
