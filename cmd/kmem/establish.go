package main

import (
	"fmt"
	"os"

	"github.com/sarchlab/kmem/datarecording"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var establishConfig config

var establishCmd = &cobra.Command{
	Use:   "establish",
	Short: "Build the address space of a process and print its page tables.",
	Long: `Build the address space of a process and print every present ` +
		`page-table entry. On failure, the process error code is printed and ` +
		`used as the exit status.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		s := setUp(establishConfig)

		err := s.establish()
		s.flush()

		if err != nil {
			errno := s.process.Errno
			fmt.Fprintf(os.Stderr, "establish failed: %s (%v)\n", errno, err)
			atexit.Exit(int(errno))
		}

		s.printSummary(cmd.OutOrStdout())
		s.printTables(cmd.OutOrStdout())
	},
}

func registerEstablishCmd() {
	rootCmd.AddCommand(establishCmd)
	registerProcessFlags(establishCmd, &establishConfig)
}

// setUp builds the system described by cfg and attaches a recorder if one is
// requested.
func setUp(cfg config) *system {
	s := buildSystem(cfg, newLogger())

	if cfg.record != "" {
		s.attachRecorder(datarecording.New(cfg.record))
	}

	return s
}
