package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/xsslab/xsslab/internal/mutation"
)

type mutateOutput struct {
	mutation.Result `yaml:",inline"`
	Returned        int                     `json:"returned" yaml:"returned"`
	Filter          string                  `json:"filter,omitempty" yaml:"filter,omitempty"`
	FilterResults   []mutation.FilterResult `json:"filterResults,omitempty" yaml:"filter_results,omitempty"`
}

func newMutateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mutate [payload|-]",
		Short: "Generate filter-bypass variants of an XSS payload",
		Long: `Apply encoding and obfuscation strategies to a payload and print every
unique variant. With --filter each variant is checked against a blacklist
filter (a case-insensitive regular expression, or a plain substring when
the expression does not compile).

Examples:
  xsslab mutate '<script>alert(1)</script>'
  xsslab mutate '<img src=x onerror=alert(1)>' --strategies htmlEntities,caseVariations
  xsslab mutate '<svg onload=alert(1)>' --filter '<script|onload' --format json
  echo '<script>alert(1)</script>' | xsslab mutate -
  xsslab mutate --list`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMutate(cmd, args)
		},
	}

	cmd.Flags().StringSlice("strategies", nil, "strategies to apply (default all)")
	cmd.Flags().String("filter", "", "blacklist filter to test the variants against")
	cmd.Flags().Int("limit", 0, "maximum number of variants to print (0 for all)")
	cmd.Flags().String("format", "table", "output format (table, plain, json, yaml)")
	cmd.Flags().Bool("list", false, "list the available strategies and exit")
	return cmd
}

func (a *app) runMutate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if a.v.GetBool("list") {
		return listStrategies(out, a.v.GetString("format"))
	}
	if len(args) == 0 {
		return fmt.Errorf("a payload argument is required (use - to read stdin)")
	}

	payload, err := readArg(cmd, args[0])
	if err != nil {
		return err
	}
	if payload == "" {
		return fmt.Errorf("payload is required")
	}
	if n := utf8.RuneCountInString(payload); n > a.cfg.Fuzz.MaxPayloadLength {
		return fmt.Errorf("payload exceeds %d characters (got %d)", a.cfg.Fuzz.MaxPayloadLength, n)
	}

	flags := mutation.ParseStrategies(a.v.GetStringSlice("strategies"))
	result := mutation.Generate(payload, flags)
	a.log.Debug("Generated mutations", "total", result.Total, "strategies", strings.Join(result.Strategies, ","))

	shown := result.Mutations
	if limit := a.v.GetInt("limit"); limit > 0 && limit < len(shown) {
		shown = shown[:limit]
	}

	filter := a.v.GetString("filter")
	filtered := mutation.TestAgainstFilter(shown, filter)

	res := result
	res.Mutations = shown
	view := mutateOutput{Result: res, Returned: len(shown), Filter: filter, FilterResults: filtered}
	format := a.v.GetString("format")
	if ok, err := writeStructured(out, format, view); ok {
		return err
	}

	switch strings.ToLower(format) {
	case "plain":
		for _, m := range shown {
			fmt.Fprintln(out, m.Payload)
		}
		return nil
	case "table":
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}

	header := []string{"#", "Strategy", "Encoding", "Payload"}
	if filtered != nil {
		header = append(header, "Filter")
	}
	table := newTable(out, header...)
	bypassed := 0
	for i, m := range shown {
		row := []string{strconv.Itoa(i + 1), m.Strategy, m.Encoding, truncate(m.Payload, 80)}
		if filtered != nil {
			if filtered[i].Blocked {
				row = append(row, red("blocked"))
			} else {
				bypassed++
				row = append(row, green("bypassed"))
			}
		}
		table.Append(row)
	}
	table.Render()

	printf(out, "\n%s %d of %d unique variants from %d strategies\n",
		bold("Showing"), len(shown), result.Total, len(result.Strategies))
	if filtered != nil {
		printf(out, "%s %d of %d variants slip past %q\n", bold("Filter:"), bypassed, len(shown), filter)
	}
	return nil
}

func listStrategies(out io.Writer, format string) error {
	type entry struct {
		Name        string `json:"name" yaml:"name"`
		Description string `json:"description" yaml:"description"`
	}
	var entries []entry
	for _, s := range mutation.AllStrategies() {
		entries = append(entries, entry{Name: string(s), Description: mutation.Describe(s)})
	}
	if ok, err := writeStructured(out, format, entries); ok {
		return err
	}

	table := newTable(out, "Strategy", "Description")
	for _, e := range entries {
		table.Append([]string{e.Name, e.Description})
	}
	table.Render()
	return nil
}

// readArg returns arg itself, or all of stdin when arg is "-".
func readArg(cmd *cobra.Command, arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}
