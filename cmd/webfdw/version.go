package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caffeineduck/webfdw/executor"
	"github.com/caffeineduck/webfdw/fdw"
	"github.com/caffeineduck/webfdw/hostfunc"
	"github.com/caffeineduck/webfdw/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the host version and check a guest against it",
	Long: `Print the host version. With --module, start the guest and report its
host version requirement and whether this host satisfies it.`,
	Args: cobra.NoArgs,
	RunE: runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "host version:      %s\n", executor.HostVersion)
	fmt.Fprintf(out, "native guest:      requires %s\n", fdw.HostVersionRequirement)

	path := conf.GetString("module")
	if path == "" {
		return nil
	}
	mod, err := executor.LoadModule(path)
	if err != nil {
		return err
	}
	exec, err := executor.New(hostfunc.NewRegistry(), executor.WithLogger(logger))
	if err != nil {
		return err
	}
	defer exec.Close()

	// NewSession applies the version gate itself.
	sess, err := exec.NewSession(mod, executor.WithSessionLogger(logger))
	if err != nil {
		var mismatch *version.MismatchError
		if errors.As(err, &mismatch) {
			fmt.Fprintf(out, "%-18s requires %s (incompatible)\n", mod.Name()+":", mismatch.Requirement)
		}
		return err
	}
	defer sess.Close()

	fmt.Fprintf(out, "%-18s requires %s (ok)\n", mod.Name()+":", sess.HostVersionRequirement())
	return nil
}
