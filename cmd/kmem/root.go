package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var verbosity int

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kmem",
	Short: "kmem builds and inspects the address space of a user process.",
	Long: `kmem builds the two-level page tables of a user process from the ` +
		`sizes of its text, data and stack segments, and can serve the ` +
		`result over HTTP for inspection.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func init() {
	loadDotEnv(".env")

	rootCmd.PersistentFlags().IntVarP(&verbosity, "verbosity", "v", 0,
		"Verbosity of the diagnostic log")

	registerEstablishCmd()
	registerServeCmd()
	registerEventsCmd()
}

// loadDotEnv reads environment defaults from path if the file exists.
// Variables already set in the environment win.
func loadDotEnv(path string) {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Cannot load %s: %v\n", path, err)
	}
}

func newLogger() logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(os.Stderr, "%s: %s\n", prefix, args)
			return
		}

		fmt.Fprintln(os.Stderr, args)
	}, funcr.Options{Verbosity: verbosity})
}
