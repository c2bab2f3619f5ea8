package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/proselang/prose"
	"github.com/proselang/prose/parse"
)

var runCmd = &cobra.Command{
	Use:   "run <file>...",
	Short: "Execute Prose scripts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		vm, err := newVM()
		if err != nil {
			return err
		}
		defer vm.Close()
		for _, path := range args {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			script, err := parse.Parse(f, path)
			f.Close()
			if err != nil {
				reportParseError(err)
				return fmt.Errorf("%s failed", path)
			}
			if _, rerr := vm.ExecuteScript(script); rerr != nil {
				reportRuntimeError(rerr)
				return fmt.Errorf("%s failed", path)
			}
		}
		return nil
	},
}

func newVM() (*prose.VM, error) {
	cfg := prose.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = prose.LoadConfig(configPath); err != nil {
			return nil, err
		}
	}
	return prose.NewVM(cfg)
}

var errorWord = color.New(color.FgRed, color.Bold)

// reportRuntimeError prints the error head and trace, coloring the error
// token when stderr is a terminal.
func reportRuntimeError(rerr *prose.RuntimeError) {
	fmt.Fprintf(os.Stderr, "%s: %s: %s\n", rerr.Range, errorWord.Sprint("error"), rerr.Message)
	for _, f := range rerr.Trace {
		fmt.Fprintf(os.Stderr, "  at %s %s\n", f.Name, f.Call)
	}
}

func reportParseError(err error) {
	fmt.Fprintln(os.Stderr, err)
}
