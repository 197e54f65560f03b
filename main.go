// Copyright IBM Corp. 2024, 2025
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/econnell/deis/contrib/gen-userdata/cloudinit"
	domain "github.com/econnell/deis/contrib/gen-userdata/internal/shared"
	"github.com/econnell/deis/contrib/gen-userdata/userdata"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

// executable is swapped in tests to place the binary in a fixture layout.
var executable = os.Executable

type options struct {
	basePath   string
	seedISO    string
	instanceID string
	hostname   string
	logLevel   string
}

func main() {
	if err := newRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "gen-userdata",
		Short: "Adds the EC2 volume units to the shared CoreOS user-data",
		Long: `Reads the shared CoreOS cloud-config, adds the units that format and mount
the ephemeral and Docker volumes, moves the etcd data directory onto the
ephemeral volume and prints the result on standard output.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(opts, stdout, stderr)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.basePath, "base", "", "base user-data file (defaults to ../coreos/user-data next to the executable)")
	flags.StringVar(&opts.seedISO, "seed-iso", "", "also write a NoCloud seed image holding the generated user-data")
	flags.StringVar(&opts.instanceID, "instance-id", "deis-local", "instance-id written to the seed image meta-data")
	flags.StringVar(&opts.hostname, "hostname", "", "local-hostname written to the seed image meta-data")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level (trace, debug, info, warn, error)")

	return cmd
}

func run(opts *options, stdout, stderr io.Writer) error {
	level := hclog.LevelFromString(opts.logLevel)
	if level == hclog.NoLevel {
		return fmt.Errorf("invalid log level %q", opts.logLevel)
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "gen-userdata",
		Level:  level,
		Output: stderr,
	})

	basePath := opts.basePath
	if basePath == "" {
		exe, err := executable()
		if err != nil {
			return fmt.Errorf("unable to locate executable: %w", err)
		}

		basePath, err = userdata.BasePathFor(exe)
		if err != nil {
			return err
		}
	}

	// Nothing reaches stdout unless the whole document was generated.
	var buf bytes.Buffer
	if err := userdata.NewInjector(logger).Generate(basePath, &buf); err != nil {
		return err
	}

	if opts.seedISO != "" {
		meta := domain.MetaData{
			InstanceID:    opts.instanceID,
			LocalHostname: opts.hostname,
		}

		if err := cloudinit.NewController(logger).WriteSeed(buf.Bytes(), meta, opts.seedISO); err != nil {
			return err
		}
	}

	_, err := buf.WriteTo(stdout)
	return err
}
