// Command yamlstream inspects YAML input as a raw event stream.
//
// The events subcommand prints one line per event in the notation of the
// YAML test suite's *.event files, which makes its output directly
// comparable against reference logs:
//
//	$ echo 'a: [1, 2]' | yamlstream events
//	+STR
//	+DOC
//	+MAP
//	=VAL :a
//	+SEQ []
//	=VAL :1
//	=VAL :2
//	-SEQ
//	-MAP
//	-DOC
//	-STR
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	yaml "github.com/willabides/yamlstream"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "yamlstream",
		Short:         "inspect YAML as a stream of parser events",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.AddCommand(eventsCmd())
	return cmd
}

func eventsCmd() *cobra.Command {
	var withMarks bool
	var checkAliases bool
	cmd := &cobra.Command{
		Use:   "events [file]",
		Short: "print the event stream for a YAML document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return printEvents(cmd, in, withMarks, checkAliases)
		},
	}
	cmd.Flags().BoolVar(&withMarks, "marks", false, "append source positions to each event")
	cmd.Flags().BoolVar(&checkAliases, "check-aliases", false, "warn about aliases with no preceding anchor")
	return cmd
}

func printEvents(cmd *cobra.Command, in io.Reader, withMarks, checkAliases bool) error {
	p := yaml.NewParser(in)
	p.SetWarningHandler(func(w yaml.Warning) {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %s\n", w.Mark, w.Msg)
	})
	out := cmd.OutOrStdout()
	for {
		e, err := p.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if checkAliases && e.Kind == yaml.EventAlias && !p.HasAnchor(e.Anchor) {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: alias *%s has no anchor\n", e.Start, e.Anchor)
		}
		if withMarks {
			fmt.Fprintf(out, "%s\t[%d:%d-%d:%d]\n",
				e.Shorthand(p.Tags()),
				e.Start.Line, e.Start.Column, e.End.Line, e.End.Column)
			continue
		}
		fmt.Fprintln(out, e.Shorthand(p.Tags()))
	}
}
