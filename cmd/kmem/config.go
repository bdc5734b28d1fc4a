package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// Environment variables that override the built-in defaults. They can also be
// set in a .env file in the working directory.
const (
	envPort       = "KMEM_PORT"
	envRecord     = "KMEM_RECORD"
	envPhysFrames = "KMEM_PHYS_FRAMES"
)

const (
	defaultTextCore   = 0x100000
	defaultProcAddr   = 0x200000
	defaultPoolBase   = 0x400000
	defaultPhysFrames = 256
)

// config describes the process to build an address space for.
type config struct {
	textVA    uint64
	textSize  uint64
	dataSize  uint64
	stackSize uint64

	textCore   uint64
	procAddr   uint64
	poolBase   uint64
	physFrames uint64

	record string
}

func (c config) dataVA() uint64 {
	return c.textVA + c.textSize
}

func envUint(key string, def uint64) uint64 {
	s, ok := os.LookupEnv(key)
	if !ok || s == "" {
		return def
	}

	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr,
			"Ignoring %s=%q, not an unsigned integer.\n", key, s)
		return def
	}

	return v
}

func envString(key, def string) string {
	s, ok := os.LookupEnv(key)
	if !ok {
		return def
	}

	return s
}

func registerProcessFlags(cmd *cobra.Command, c *config) {
	f := cmd.Flags()

	f.Uint64Var(&c.textVA, "text-va", 0,
		"Virtual address of the text segment")
	f.Uint64Var(&c.textSize, "text-size", 2*4096,
		"Size of the text segment in bytes")
	f.Uint64Var(&c.dataSize, "data-size", 4096,
		"Size of the data segment in bytes")
	f.Uint64Var(&c.stackSize, "stack-size", 4096,
		"Size of the stack segment in bytes")
	f.Uint64Var(&c.textCore, "text-core", defaultTextCore,
		"Physical address of the shared text image")
	f.Uint64Var(&c.procAddr, "proc-addr", defaultProcAddr,
		"Physical address of the private region of the process")
	f.Uint64Var(&c.poolBase, "pool-base", defaultPoolBase,
		"Physical address of the frames that back page tables")
	f.Uint64Var(&c.physFrames, "phys-frames",
		envUint(envPhysFrames, defaultPhysFrames),
		"Number of frames available for page tables")
	f.StringVar(&c.record, "record", envString(envRecord, ""),
		"Record address-space events into this SQLite database")
}
