package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Simplici0/furniture/internal/config"
	"github.com/Simplici0/furniture/internal/db"
	"github.com/Simplici0/furniture/internal/migrations"
	"github.com/Simplici0/furniture/internal/rawmaterial"
	"github.com/Simplici0/furniture/internal/seed"
)

func main() {
	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:   "rawcalc",
		Short: "Raw material calculator for furniture production",
	}

	rootCmd.AddCommand(calcCmd(cfg))
	rootCmd.AddCommand(initCmd(cfg))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func calcCmd(cfg config.Config) *cobra.Command {
	var (
		dbPath  string
		timeout time.Duration
		explain bool
	)

	cmd := &cobra.Command{
		Use:   "calc [product-type-id] [material-type-id] [quantity] [parameter-one] [parameter-two]",
		Short: "Print the raw material amount for a production order, or -1",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runCalc(ctx, cmd.OutOrStdout(), rawmaterial.FileStore{Path: dbPath}, args, explain)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", cfg.DBPath, "SQLite database with reference data")
	cmd.Flags().DurationVar(&timeout, "timeout", cfg.CalcTimeout, "Maximum time for the calculation")
	cmd.Flags().BoolVarP(&explain, "explain", "e", false, "Print intermediate values")
	return cmd
}

// runCalc prints the amount for args. Failures print -1 and are logged, the
// command itself still succeeds.
func runCalc(ctx context.Context, out io.Writer, store rawmaterial.Store, args []string, explain bool) error {
	res, err := calc(ctx, store, args)
	if err != nil {
		log.Printf("raw material calculation failed: %v", err)
	}

	if explain && err == nil {
		fmt.Fprintf(out, "coefficient:     %g\n", res.Coefficient)
		fmt.Fprintf(out, "loss factor:     %g (%g)\n", res.LossFactor, res.LossFraction)
		fmt.Fprintf(out, "per unit:        %g\n", res.PerUnit)
		fmt.Fprintf(out, "total:           %g\n", res.TotalRaw)
		fmt.Fprintf(out, "total with loss: %g\n", res.TotalWithLoss)
	}

	_, werr := fmt.Fprintln(out, rawmaterial.Amount(res, err))
	return werr
}

func calc(ctx context.Context, store rawmaterial.Store, args []string) (rawmaterial.Result, error) {
	in, err := rawmaterial.Coerce(args[0], args[1], args[2], args[3], args[4])
	if err != nil {
		return rawmaterial.Result{}, err
	}
	return rawmaterial.Compute(ctx, store, in)
}

func initCmd(cfg config.Config) *cobra.Command {
	var (
		dbPath      string
		catalogPath string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create or upgrade the database and load the reference catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.Context(), cmd.OutOrStdout(), dbPath, catalogPath)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", cfg.DBPath, "SQLite database to initialize")
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "YAML reference catalogue (defaults to the built-in one)")
	return cmd
}

func runInit(ctx context.Context, out io.Writer, dbPath, catalogPath string) error {
	catalog, err := loadCatalog(catalogPath)
	if err != nil {
		return err
	}

	database, err := db.Open(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	applied, err := migrations.Up(ctx, database)
	if err != nil {
		return err
	}

	stats, err := seed.Run(database, catalog)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "%s: %d migrations applied, %d reference rows inserted, %d already present\n",
		dbPath, applied, stats.Inserts, stats.Skipped)
	return err
}

func loadCatalog(path string) (seed.Catalog, error) {
	if path == "" {
		return seed.DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return seed.Catalog{}, fmt.Errorf("read catalogue: %w", err)
	}
	return seed.ParseCatalog(data)
}
