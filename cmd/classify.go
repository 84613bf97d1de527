package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"tidytabs/internal/clix"
	"tidytabs/internal/models"
)

var (
	classifyFile       string
	classifyConfidence bool
	classifyThreshold  float64
	classifyLLM        bool
	classifyJSON       bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify [title...]",
	Short: "Categorize tab titles",
	Long: `Categorizes tab titles with the local classifier (keyword rules, TF-IDF model
and confidence gate). Titles come from arguments, from --file, or from stdin
with --file -. Use --llm to try the configured LLM categorizer first.`,
	Example: `  tidytabs classify "Netflix - Watch TV Shows" "Go Documentation"
  tidytabs classify --confidence --threshold 0.6 --file titles.txt
  cat titles.json | tidytabs classify --file - --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		titles, err := clix.ParseTitles(cmd.Flags(), args, cmd.InOrStdin())
		if err != nil {
			return err
		}

		var threshold *float64
		if cmd.Flags().Changed("threshold") {
			if classifyThreshold < 0 || classifyThreshold > 1 {
				return fmt.Errorf("--threshold must be within [0, 1], got %v", classifyThreshold)
			}
			threshold = &classifyThreshold
		}

		out := cmd.OutOrStdout()
		svc := appInstance.CategorizationService
		switch {
		case classifyConfidence:
			if classifyJSON {
				return printJSON(out, svc.CategorizeLocalWithConfidence(cmd.Context(), titles, threshold))
			}
			printDecisions(out, appInstance.Classifier.Decide(cmd.Context(), titles, threshold))
			return nil
		case classifyLLM:
			res, usedLLM := svc.Categorize(cmd.Context(), titles)
			if !usedLLM {
				fmt.Fprintln(cmd.ErrOrStderr(), color.YellowString("LLM categorizer unavailable, showing local classification."))
			}
			if classifyJSON {
				return printJSON(out, res)
			}
			printCategories(out, res)
			return nil
		default:
			res := svc.CategorizeLocal(cmd.Context(), titles)
			if classifyJSON {
				return printJSON(out, res)
			}
			printCategories(out, res)
			return nil
		}
	},
}

func printDecisions(w io.Writer, decisions []models.Decision) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Title", "Category", "Confidence", "Source"})
	table.SetBorder(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, d := range decisions {
		table.Append([]string{d.Title, d.Category, fmt.Sprintf("%.3f", d.Confidence), sourceLabel(d.Source)})
	}
	table.Render()
}

func sourceLabel(source string) string {
	switch source {
	case models.DecisionSourceRule, models.DecisionSourceModel:
		return color.GreenString(source)
	case models.DecisionSourceGate:
		return color.YellowString(source)
	default:
		return color.RedString(source)
	}
}

func printCategories(w io.Writer, res models.ClassificationResult) {
	categories := make([]string, 0, len(res))
	for c := range res {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Category", "Title"})
	table.SetBorder(false)
	table.SetAutoMergeCells(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, c := range categories {
		for _, title := range res[c] {
			table.Append([]string{c, title})
		}
	}
	table.Render()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().StringVarP(&classifyFile, "file", "f", "", "Read titles from a file (JSON array, {\"titles\": [...]}, or one per line); - for stdin")
	classifyCmd.Flags().BoolVarP(&classifyConfidence, "confidence", "c", false, "Show the confidence and decision source for each title")
	classifyCmd.Flags().Float64VarP(&classifyThreshold, "threshold", "t", 0, "Confidence threshold override in [0, 1]")
	classifyCmd.Flags().BoolVar(&classifyLLM, "llm", false, "Use the LLM categorizer when configured")
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "Print JSON instead of a table")
}
