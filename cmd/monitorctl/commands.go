package main

import (
	"fmt"
	"strings"

	"monitoring-service/internal/models"
	"monitoring-service/internal/services"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// runCmd executes one pipeline run in-process and evaluates alerts inline.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the monitoring pipeline once",
	Long: `Processes every enabled monitoring configuration, or the ones selected by
--area-id and --index, and prints the run summary. Alerts are evaluated as
soon as each record is committed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := models.RunRequest{
			IndexCode: strings.ToUpper(runIndex),
			DaysBack:  runDaysBack,
			Force:     runForce,
			Provider:  models.Provider(strings.ToUpper(runProvider)),
		}
		if runAreaID != "" {
			id, err := uuid.Parse(runAreaID)
			if err != nil {
				return fmt.Errorf("invalid --area-id: %w", err)
			}
			req.AreaID = &id
		}

		env, err := openEnvironment()
		if err != nil {
			return err
		}
		defer env.close()

		gw := newGateway()
		defer gw.Close()

		ctx, cancel := commandContext()
		defer cancel()

		evaluator := services.NewAlertEvaluator(env.store, services.NewAlertEngine(), nil)
		calculator := services.NewIndexCalculator(gw, services.NewGeometryService(), cfg.PipelineCfg.ImageTimeout)
		orchestrator := services.NewOrchestrator(env.store, calculator, evaluator, nil, services.OrchestratorConfig{
			Workers:         cfg.PipelineCfg.Workers,
			ConfigTimeout:   cfg.PipelineCfg.ConfigTimeout,
			DefaultDaysBack: cfg.PipelineCfg.DaysBack,
			DefaultProvider: models.Provider(cfg.GatewayCfg.DefaultProvider),
		})

		summary, err := orchestrator.Run(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(summary)
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed-indices",
	Short: "Create or refresh the vegetation index catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnvironment()
		if err != nil {
			return err
		}
		defer env.close()

		ctx, cancel := commandContext()
		defer cancel()

		result, err := services.NewVegetationIndexService(env.store).Seed(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Created %d, updated %d vegetation indices\n", result.Created, result.Updated)
		return nil
	},
}

var indicesCmd = &cobra.Command{
	Use:   "indices",
	Short: "List the vegetation index catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnvironment()
		if err != nil {
			return err
		}
		defer env.close()

		ctx, cancel := commandContext()
		defer cancel()

		activeOnly, _ := cmd.Flags().GetBool("active")
		indices, err := services.NewVegetationIndexService(env.store).List(ctx, activeOnly)
		if err != nil {
			return err
		}
		for _, index := range indices {
			fmt.Printf("%-6s %-5t %s\n", index.Code, index.IsActive, index.Name)
		}
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete monitoring records and resolved alerts older than --days",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		if !cmd.Flags().Changed("days") {
			days = cfg.PipelineCfg.RetentionDays
		}

		env, err := openEnvironment()
		if err != nil {
			return err
		}
		defer env.close()

		ctx, cancel := commandContext()
		defer cancel()

		result, err := services.NewRetentionService(env.store).Cleanup(ctx, days)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var (
	runAreaID   string
	runIndex    string
	runProvider string
	runDaysBack int
	runForce    bool
)

func setupCommands() {
	runCmd.Flags().StringVar(&runAreaID, "area-id", "", "Only process configurations of this area")
	runCmd.Flags().StringVar(&runIndex, "index", "", "Only process this index code")
	runCmd.Flags().StringVar(&runProvider, "provider", "", "Imagery provider (SENTINEL2, LANDSAT, MODIS)")
	runCmd.Flags().IntVar(&runDaysBack, "days-back", 0, "Days of imagery to search, 0 uses the configured default")
	runCmd.Flags().BoolVar(&runForce, "force", false, "Process configurations even when a recent record exists")

	indicesCmd.Flags().Bool("active", false, "Only list active indices")
	cleanupCmd.Flags().Int("days", services.DefaultRetentionDays, "Days of history to keep")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(indicesCmd)
	rootCmd.AddCommand(cleanupCmd)
}
