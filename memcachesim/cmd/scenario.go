package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/sarchlab/memcoherence/mem/acceptancetests/coherence"
	"github.com/spf13/cobra"
)

var scenarioQuiet bool

var scenarioCmd = &cobra.Command{
	Use:   "scenario <name>",
	Short: "Replay a named scenario and print its message sequence.",
	Long:  "Replay a named scenario and print its message sequence.\n\n" + scenarioList(),
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScenario(cmd.OutOrStdout(), args[0], scenarioQuiet)
	},
}

func init() {
	scenarioCmd.Flags().BoolVarP(&scenarioQuiet, "quiet", "q",
		envBool("quiet", false), "do not print the messages")

	rootCmd.AddCommand(scenarioCmd)
}

func scenarioList() string {
	b := new(strings.Builder)
	b.WriteString("Scenarios:\n")

	for _, s := range coherence.Scenarios() {
		fmt.Fprintf(b, "  %s  %s\n", s.Name, s.Title)
	}

	return b.String()
}

func runScenario(out io.Writer, name string, quiet bool) error {
	s, found := coherence.LookupScenario(name)
	if !found {
		return fmt.Errorf("unknown scenario %q\n%s", name, scenarioList())
	}

	p, err := s.Execute()

	if p != nil && !quiet {
		p.Log.Dump(out)
	}

	if err != nil {
		return fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	fmt.Fprintf(out, "scenario %s (%s) passed in %d cycles\n",
		s.Name, s.Title, p.Clock.Now())

	return nil
}
