package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamscao/sshrecord/internal/config"
	"github.com/adamscao/sshrecord/internal/logger"
	"github.com/adamscao/sshrecord/internal/models"
	"github.com/adamscao/sshrecord/internal/recordstore"
	"github.com/adamscao/sshrecord/internal/storage"
)

var (
	configPath string
	cfg        *config.Config
	engine     storage.Engine
)

var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "SSH CA record store administration tool",
	Long:  "Administrative tool for managing the SSH certificate issuance record table",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initEngine(cmd.Context())
	},
	SilenceUsage: true,
}

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Manage the record table",
}

var tableCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the record table if it does not exist",
	RunE:  createTable,
}

var tableCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configured record table the way the server does at startup",
	RunE:  checkTable,
}

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect issuance records",
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List issuance records, newest first",
	RunE:  listRecords,
}

var recordsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete records past their expiry",
	RunE:  purgeRecords,
}

var connectionsCmd = &cobra.Command{
	Use:   "connections",
	Short: "Manage engine connections",
}

var connectionsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop idle engine connections",
	RunE:  clearConnections,
}

var (
	tableName     string
	principal     string
	targetService string
	limit         int
	outputJSON    bool
	purgeBefore   string
)

func init() {
	// Root flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/ssh-ca/config.yaml", "Config file path")
	rootCmd.PersistentFlags().StringVarP(&tableName, "table", "t", "", "Record table (defaults to record_store.table)")

	// Records flags
	recordsListCmd.Flags().StringVarP(&principal, "principal", "p", "", "Filter by principal full name")
	recordsListCmd.Flags().StringVarP(&targetService, "service", "s", "", "Filter by target service")
	recordsListCmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum records to show")
	recordsListCmd.Flags().BoolVar(&outputJSON, "json", false, "Print records as JSON lines")
	recordsPurgeCmd.Flags().StringVar(&purgeBefore, "before", "", "Purge records expired before this RFC3339 time (default now)")

	// Add commands
	tableCmd.AddCommand(tableCreateCmd, tableCheckCmd)
	recordsCmd.AddCommand(recordsListCmd, recordsPurgeCmd)
	connectionsCmd.AddCommand(connectionsClearCmd)
	rootCmd.AddCommand(tableCmd, recordsCmd, connectionsCmd)
}

func main() {
	if err := execute(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// execute runs one command and closes the engine it opened, even on failure
func execute(ctx context.Context, args []string) error {
	engine = nil
	defer func() {
		if engine != nil {
			engine.Close()
		}
	}()

	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func initEngine(ctx context.Context) error {
	var err error
	cfg, err = config.LoadRecordStoreWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if tableName != "" {
		cfg.RecordStore.Table = tableName
	}

	engine, err = storage.Open(ctx, cfg.RecordStore)
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	return nil
}

func newStore() *recordstore.Store {
	level := cfg.Logging.Level
	if level == "" {
		level = "warn"
	}
	return storage.NewRecordStore(engine, cfg.RecordStore,
		recordstore.WithLogger(logger.New(level, "text")))
}

func createTable(cmd *cobra.Command, args []string) error {
	table := cfg.RecordStore.Table
	if table == "" {
		return fmt.Errorf("no table configured")
	}
	if err := engine.CreateTable(cmd.Context(), table); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Table %s ready (engine: %s)\n", table, cfg.RecordStore.Engine)
	return nil
}

func checkTable(cmd *cobra.Command, args []string) error {
	store := newStore()
	if err := store.CheckTable(cmd.Context()); err != nil {
		return err
	}
	conn, err := store.GetConnection(cmd.Context())
	if err != nil {
		return err
	}
	defer conn.Close()
	fmt.Fprintf(cmd.OutOrStdout(), "Table %s is usable (engine: %s)\n", conn.Table(), cfg.RecordStore.Engine)
	return nil
}

func listRecords(cmd *cobra.Command, args []string) error {
	records, err := engine.ListRecords(cmd.Context(), cfg.RecordStore.Table, models.RecordFilter{
		Principal:     principal,
		TargetService: targetService,
		Limit:         limit,
	})
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	if outputJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ISSUED\tPRINCIPAL\tSOURCE IP\tSERVICE\tCERT ID")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.IssuedAt.Format(time.RFC3339), r.Principal, r.SourceIP, r.TargetService, r.CertificateID)
	}
	return w.Flush()
}

func purgeRecords(cmd *cobra.Command, args []string) error {
	before := time.Now()
	if purgeBefore != "" {
		t, err := time.Parse(time.RFC3339, purgeBefore)
		if err != nil {
			return fmt.Errorf("invalid --before: %w", err)
		}
		before = t
	}

	n, err := engine.PurgeExpired(cmd.Context(), cfg.RecordStore.Table, before)
	if err != nil {
		return fmt.Errorf("failed to purge records: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Purged %d expired records\n", n)
	return nil
}

func clearConnections(cmd *cobra.Command, args []string) error {
	newStore().ClearConnections()
	fmt.Fprintln(cmd.OutOrStdout(), "Idle connections cleared")
	return nil
}
