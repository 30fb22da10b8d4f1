package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
	"github.com/nao1215/chunkparse"
	"github.com/nao1215/chunkparse/chunkstore"
	"github.com/nao1215/chunkparse/domain/model"
	"github.com/spf13/cobra"
)

var previewConfig struct {
	sample int64
	rows   int
	save   string
}

var previewCmd = &cobra.Command{
	Use:   "preview <file>",
	Short: "derive the parse configuration of a container file",
	Long: `
Reads the leading bytes of a container file, prints the columns it would be
parsed into together with the first rows, and optionally saves the parse
configuration for later "parse --config" runs.
`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().Int64Var(
		&previewConfig.sample, "sample", 1<<20, "number of leading bytes to read")
	previewCmd.Flags().IntVarP(
		&previewConfig.rows, "rows", "n", chunkparse.DefaultPreviewRows, "number of rows to show")
	previewCmd.Flags().StringVar(
		&previewConfig.save, "save", "", "write the parse configuration to this YAML file")
}

func runPreview(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	bkt, name, err := openFile(args[0])
	if err != nil {
		return err
	}
	defer bkt.Close()
	sample, err := chunkstore.ReadSample(ctx, bkt, name, previewConfig.sample)
	if err != nil {
		return err
	}

	res, err := chunkparse.Preview(sample, chunkparse.NewPreviewOptions().WithRows(previewConfig.rows))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	cfg := res.Config
	fmt.Fprintf(out, "codec: %s\n", cfg.Codec)
	fmt.Fprintf(out, "first block: %d records, %d bytes\n", res.BlockCount, cfg.BlockSize)
	fmt.Fprintf(out, "recommended chunk size: %d\n\n", cfg.ChunkSize)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tTYPE\tDOMAIN")
	for i, n := range cfg.ColumnNames {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", n, cfg.ColumnTypes[i], strings.Join(cfg.Domain(i), ","))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, excluded := range res.Excluded {
		fmt.Fprintf(out, "skipped: %v\n", excluded)
	}

	if len(res.Rows) > 0 {
		fmt.Fprintln(out)
		tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(cfg.ColumnNames, "\t"))
		for _, row := range res.Rows {
			cells := make([]string, len(row))
			for i, v := range row {
				if v == nil {
					cells[i] = "NA"
					continue
				}
				cells[i] = fmt.Sprint(v)
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if previewConfig.save != "" {
		data, err := model.MarshalConfiguration(cfg)
		if err != nil {
			return err
		}
		if err := os.WriteFile(previewConfig.save, data, 0o600); err != nil {
			return errors.Wrapf(err, "save configuration to %s", previewConfig.save)
		}
		fmt.Fprintf(out, "\nconfiguration saved to %s\n", previewConfig.save)
	}
	return nil
}
