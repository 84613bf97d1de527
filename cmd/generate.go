package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var generateJSON bool

var generateCmd = &cobra.Command{
	Use:   "generate <prompt>",
	Short: "Generate a tab group for a topic",
	Long: `Asks the configured generation provider for a named group of tabs about the
prompt. In grounded mode the group is built from live search results. When
generation fails a fallback group of search links is returned instead.`,
	Example: `  tidytabs generate "learn rust async"
  tidytabs generate --json "weekend trip to Lisbon"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		prompt := strings.TrimSpace(strings.Join(args, " "))
		if prompt == "" {
			return fmt.Errorf("prompt must not be empty")
		}

		out := cmd.OutOrStdout()
		res := appInstance.Generator.Generate(cmd.Context(), prompt)
		if res.Fallback {
			fmt.Fprintln(cmd.ErrOrStderr(), color.YellowString("Generation fell back: %v", res.Reason))
		}
		if generateJSON {
			return printJSON(out, res.Group)
		}

		fmt.Fprintln(out, color.GreenString(res.Group.GroupName))
		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"#", "Title", "URL", "Description"})
		table.SetBorder(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		for i, tab := range res.Group.Tabs {
			table.Append([]string{strconv.Itoa(i + 1), tab.Title, tab.URL, tab.Description})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().BoolVar(&generateJSON, "json", false, "Print the tab group as JSON")
}
