// cmd/lcfs/commands.go
package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sungw5/lcfs/internal/logging"
	"github.com/sungw5/lcfs/internal/status"
	"github.com/sungw5/lcfs/internal/view"
	"github.com/sungw5/lcfs/internal/workload"
)

func probeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Power on, list devices and their geometry, power off",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			e := setup(*cfgPath)
			defer e.close()

			if err := e.fs.PowerOn(); err != nil {
				return err
			}
			for _, line := range status.Summary(e.fs.Snapshot()) {
				fmt.Println(line)
			}
			return nil
		},
	}
}

func runCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run <workload.yaml>",
		Short: "Execute a workload file and verify every read",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			e := setup(*cfgPath)
			defer e.close()

			res, err := runWorkload(e, args[0])
			if err != nil {
				return err
			}
			printResult(res)
			return res.Err
		},
	}
}

func mapCmd(cfgPath *string) *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "map <workload.yaml>",
		Short: "Execute a workload file and show block occupancy",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			e := setup(*cfgPath)
			defer e.close()

			res, err := runWorkload(e, args[0])
			if err != nil {
				return err
			}
			snap := e.fs.Snapshot()

			if plain {
				printResult(res)
				for _, line := range view.Lines(snap) {
					fmt.Println(line)
				}
				return res.Err
			}

			if err := view.Show(snap); err != nil {
				return err
			}
			return res.Err
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print the map instead of opening the terminal view")
	return cmd
}

func cpCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cp <local-file> <path>",
		Short: "Copy a local file into the store and read it back",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			e := setup(*cfgPath)
			defer e.close()

			fs := e.fs
			h, err := fs.Open(args[1])
			if err != nil {
				return err
			}
			if _, err := fs.Write(h, data); err != nil {
				return err
			}
			if _, err := fs.Seek(h, 0); err != nil {
				return err
			}
			back, err := fs.Read(h, len(data))
			if err != nil {
				return err
			}
			if !bytes.Equal(back, data) {
				return fmt.Errorf("cp: read back of %s differs", args[1])
			}
			if err := fs.Close(h); err != nil {
				return err
			}

			st, _ := fs.Stat(args[1])
			fmt.Printf("%s -> %s: %d bytes in %d blocks\n", args[0], args[1], st.Length, st.Blocks())
			return nil
		},
	}
}

func runWorkload(e *env, path string) (workload.Result, error) {
	r, err := workload.Build(path, e.fs, e.log.With("component", logging.ComponentWorkload))
	if err != nil {
		return workload.Result{}, err
	}
	return r.Run(), nil
}

func printResult(res workload.Result) {
	for _, s := range res.Steps {
		outcome := "ok"
		if s.Err != nil {
			outcome = s.Err.Error()
		}
		fmt.Printf("%3d %-5s %-16s %8d  %s\n", s.Index, s.Step.Op, s.Step.Path, s.Bytes, outcome)
	}
	if res.OK() {
		fmt.Printf("%d steps passed\n", len(res.Steps))
	}
}
