// Command chunkparse previews and parses Avro object container files in
// parallel chunks.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "chunkparse [command] (flags)",
	Short:         "parallel chunked parser for Avro object container files",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(
		previewCmd,
		parseCmd,
	)
}

func main() {
	log.SetFlags(0)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
