package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/proselang/prose/parse"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Run an interactive Prose session",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		vm, err := newVM()
		if err != nil {
			return err
		}
		defer vm.Close()
		stdin := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("prose> ")
			if !stdin.Scan() {
				fmt.Println()
				return stdin.Err()
			}
			line := stdin.Text()
			if strings.TrimSpace(line) == "" {
				continue
			}
			script, err := parse.Parse(strings.NewReader(line), "<repl>")
			if err != nil {
				reportParseError(err)
				continue
			}
			v, rerr := vm.ExecuteScript(script)
			if rerr != nil {
				reportRuntimeError(rerr)
				continue
			}
			fmt.Println(vm.Format(v))
		}
	},
}
