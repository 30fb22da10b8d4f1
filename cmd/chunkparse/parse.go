package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/nao1215/chunkparse"
	"github.com/nao1215/chunkparse/chunkstore"
	"github.com/nao1215/chunkparse/domain/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"github.com/thanos-io/objstore"
)

var parseConfig struct {
	chunkSize   int64
	workers     int
	config      string
	out         string
	format      string
	compression string
	sqlite      string
	table       string
	metrics     bool
	verbose     bool
}

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "parse a container file in parallel chunks",
	Long: `
Splits a container file into fixed-size chunks, parses them in parallel and
reports the rows found. The rows can be exported to a file (--out) and loaded
into a SQLite database (--sqlite).
`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().Int64Var(
		&parseConfig.chunkSize, "chunk-size", 0, "chunk size in bytes (0 uses the recommended size)")
	parseCmd.Flags().IntVarP(
		&parseConfig.workers, "workers", "c", 0, "number of chunks parsed at once (0 uses GOMAXPROCS)")
	parseCmd.Flags().StringVar(
		&parseConfig.config, "config", "", "parse configuration saved by \"preview --save\"")
	parseCmd.Flags().StringVarP(
		&parseConfig.out, "out", "o", "", "directory to export the rows to")
	parseCmd.Flags().StringVar(
		&parseConfig.format, "format", "csv", "export format: csv, tsv, ltsv, parquet or xlsx")
	parseCmd.Flags().StringVar(
		&parseConfig.compression, "compression", "", "export compression: gz, xz or zstd")
	parseCmd.Flags().StringVar(
		&parseConfig.sqlite, "sqlite", "", "SQLite database file to load the rows into")
	parseCmd.Flags().StringVar(
		&parseConfig.table, "table", "", "table name for --sqlite and --out (default: file name)")
	parseCmd.Flags().BoolVar(
		&parseConfig.metrics, "metrics", false, "print the job metrics when done")
	parseCmd.Flags().BoolVarP(
		&parseConfig.verbose, "verbose", "v", false, "log every chunk")
}

func runParse(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	format, err := chunkparse.ParseOutputFormat(parseConfig.format)
	if err != nil {
		return err
	}
	compression, err := chunkparse.ParseCompressionType(parseConfig.compression)
	if err != nil {
		return err
	}
	dumpOptions := chunkparse.NewDumpOptions().WithFormat(format).WithCompression(compression)

	bkt, name, err := openFile(args[0])
	if err != nil {
		return err
	}
	defer bkt.Close()

	cfg, err := loadConfiguration(ctx, bkt, name)
	if err != nil {
		return err
	}

	chunkSize := parseConfig.chunkSize
	if chunkSize <= 0 {
		chunkSize = cfg.ChunkSize
	}
	if chunkSize <= 0 {
		chunkSize = chunkparse.DefaultChunkSize
	}
	store, err := chunkstore.NewBucket(ctx, bkt, name, chunkSize)
	if err != nil {
		return err
	}

	var logger chunkparse.Logger = chunkparse.DiscardLogger
	if parseConfig.verbose {
		logger = chunkparse.StderrLogger{}
	}
	reg := prometheus.NewRegistry()

	job, err := chunkparse.NewBuilder().
		WithStore(store).
		WithConfiguration(cfg).
		SetParallelism(parseConfig.workers).
		WithLogger(logger).
		WithMetrics(reg).
		Build(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := job.Run(ctx)
	if err != nil {
		return err
	}
	defer res.Release()

	fmt.Fprintf(out, "job %s: %d rows from %d chunks of %d bytes in %s\n",
		job.ID(), res.Rows(), store.NumChunks(), chunkSize, time.Since(start).Round(time.Millisecond))
	if res.Warnings != nil {
		fmt.Fprintf(out, "warnings: %v\n", res.Warnings)
	}

	table := parseConfig.table
	if table == "" {
		table = strings.TrimSuffix(name, filepath.Ext(name))
	}
	if parseConfig.out != "" {
		path, err := res.Dump(parseConfig.out, table, dumpOptions)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s\n", path)
	}
	if parseConfig.sqlite != "" {
		if err := loadIntoSQLite(ctx, parseConfig.sqlite, table, res); err != nil {
			return err
		}
		fmt.Fprintf(out, "loaded table %q into %s\n", table, parseConfig.sqlite)
	}
	if parseConfig.metrics {
		return writeMetrics(cmd, reg)
	}
	return nil
}

// loadConfiguration reads the saved configuration, or previews the file.
func loadConfiguration(ctx context.Context, bkt objstore.BucketReader, name string) (*model.ParseConfiguration, error) {
	if parseConfig.config != "" {
		data, err := os.ReadFile(parseConfig.config) //nolint:gosec // path given on the command line
		if err != nil {
			return nil, errors.Wrapf(err, "read configuration %s", parseConfig.config)
		}
		return model.UnmarshalConfiguration(data)
	}

	sample, err := chunkstore.ReadSample(ctx, bkt, name, 1<<20)
	if err != nil {
		return nil, err
	}
	res, err := chunkparse.Preview(sample, chunkparse.NewPreviewOptions().WithRows(0))
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

func loadIntoSQLite(ctx context.Context, dsn, table string, res *chunkparse.Result) (err error) {
	db, err := chunkparse.OpenSQLite(dsn)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return chunkparse.LoadSQLite(ctx, db, table, res)
}

func writeMetrics(cmd *cobra.Command, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return errors.Wrap(err, "gather metrics")
	}
	enc := expfmt.NewEncoder(cmd.OutOrStdout(), expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return errors.Wrap(err, "encode metrics")
		}
	}
	return nil
}
