package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jengzang/dmarcviz/internal/database"
	"github.com/jengzang/dmarcviz/internal/geo"
	"github.com/jengzang/dmarcviz/internal/models"
	"github.com/jengzang/dmarcviz/internal/repository"
	"github.com/jengzang/dmarcviz/internal/service"
)

// Import-specific flag values.
var importType string

var importCmd = &cobra.Command{
	Use:   "import [path...]",
	Short: "Import DMARC aggregate report XML files",
	Long: `Import DMARC aggregate reports. Directories are walked recursively and only
files ending in .xml are read. Reports already stored (same report id and
organisation) are skipped.

  dmarcviz import --type in ./reports
  dmarcviz import --type out sent/report.xml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importType, "type", "t", models.ReportTypeIncoming,
		"report type: in (received by our domains) or out (sent by us)")
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	resolver, err := geo.NewResolver(cfg.GeoIP)
	if err != nil {
		return err
	}

	if err := database.Init(database.Config{Path: cfg.DBPath}); err != nil {
		return err
	}
	defer database.Close()

	db := database.GetDB()
	svc := service.NewImportService(repository.NewReportRepository(db), repository.NewImportTaskRepository(db), resolver)
	result, err := svc.Import(cmd.Context(), importType, args...)
	if err != nil {
		return err
	}

	printImportResult(cmd, result)
	if len(result.Failed) > 0 {
		return fmt.Errorf("%d file(s) failed to import", len(result.Failed))
	}
	return nil
}

func printImportResult(cmd *cobra.Command, result *service.ImportResult) {
	w := cmd.OutOrStdout()
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)
	dim := color.New(color.Faint)

	_, _ = bold.Fprintf(w, "Import summary (task %d)\n", result.TaskID)
	_, _ = fmt.Fprintf(w, "  %s %d\n", green.Sprint("imported:"), result.Imported)
	_, _ = fmt.Fprintf(w, "  %s %d\n", yellow.Sprint("skipped: "), result.Skipped)
	_, _ = fmt.Fprintf(w, "  %s %d\n", dim.Sprint("ignored: "), result.Ignored)
	_, _ = fmt.Fprintf(w, "  %s %d\n", red.Sprint("failed:  "), len(result.Failed))
	for _, err := range result.Failed {
		_, _ = fmt.Fprintf(w, "    %s\n", red.Sprint(err))
	}
}
