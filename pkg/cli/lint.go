package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/protolink/pkg/linter"
	"github.com/platinummonkey/protolink/pkg/linter/rules"
)

func getLintCmd(gs *globalState) *cobra.Command {
	var (
		configFile    string
		format        string
		failOnWarning bool
		listRules     bool
	)

	cmd := &cobra.Command{
		Use:   "lint [root...]",
		Short: "Lint proto files for style",
		Example: `
  # Lint with protolink.lint.yaml from the config directory.
  protolink lint

  # Emit GitHub Actions annotations.
  protolink lint ./proto --format github`[1:],
		RunE: func(cmd *cobra.Command, args []string) error {
			lintConfig, err := loadLintConfig(gs, configFile)
			if err != nil {
				return err
			}

			engine := linter.NewLintEngine(lintConfig)
			rules.RegisterDefaultRules(engine.Registry())
			if listRules {
				return lintListRules(gs.stdout, engine)
			}

			p, err := gs.newPipeline(args)
			if err != nil {
				return err
			}
			s, err := p.Link(cmd.Context())
			if err != nil {
				return gs.reportLinkError(err)
			}

			results := engine.LintSchema(s)
			summary := engine.GenerateSummary(results)

			switch format {
			case "json":
				err = lintOutputJSON(gs.stdout, results, summary)
			case "github":
				lintOutputGitHub(gs.stdout, results)
			case "text":
				lintOutputText(gs.stdout, results, summary)
			default:
				return fmt.Errorf("unknown output format %q", format)
			}
			if err != nil {
				return err
			}

			if summary.Errors > 0 {
				return &exitError{code: 1, err: fmt.Errorf("lint failed with %d errors", summary.Errors)}
			}
			if failOnWarning && summary.Warnings > 0 {
				return &exitError{code: 1, err: fmt.Errorf("lint failed with %d warnings", summary.Warnings)}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configFile, "lint-config", "", "lint config file (default: lint.config or protolink.lint.yaml)")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, json, github")
	cmd.Flags().BoolVar(&failOnWarning, "fail-on-warning", false, "exit 1 on warnings too")
	cmd.Flags().BoolVar(&listRules, "rules", false, "list available rules and exit")
	return cmd
}

func loadLintConfig(gs *globalState, path string) (*linter.Config, error) {
	if path != "" {
		lc, err := linter.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load lint config: %w", err)
		}
		return lc, nil
	}
	return gs.cfg.LoadLintConfig()
}

func lintListRules(w io.Writer, engine *linter.LintEngine) error {
	allRules := engine.Registry().GetAllRules()
	fmt.Fprintf(w, "Available lint rules (%d):\n\n", len(allRules))

	byCategory := make(map[linter.Category][]linter.Rule)
	for _, rule := range allRules {
		byCategory[rule.Category()] = append(byCategory[rule.Category()], rule)
	}

	for _, cat := range []linter.Category{
		linter.CategoryNaming,
		linter.CategoryStyle,
		linter.CategoryDocumentation,
		linter.CategoryStructure,
	} {
		catRules := byCategory[cat]
		if len(catRules) == 0 {
			continue
		}
		catName := string(cat)
		fmt.Fprintf(w, "%s Rules:\n", strings.ToUpper(catName[:1])+catName[1:])
		for _, rule := range catRules {
			fmt.Fprintf(w, "  - %-25s [%s]\n    %s\n", rule.Name(), rule.Severity(), rule.Description())
		}
		fmt.Fprintln(w)
	}
	return nil
}

func lintOutputText(w io.Writer, results []linter.LintResult, summary linter.Summary) {
	for _, result := range results {
		if len(result.Violations) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s:\n", result.FilePath)
		for _, v := range result.Violations {
			fmt.Fprintf(w, "  %s:%d:%d: [%s] %s (%s)\n",
				result.FilePath,
				v.Location.Line,
				v.Location.Column,
				v.Severity,
				v.Message,
				v.Rule,
			)
			if v.SuggestedFix != nil {
				fmt.Fprintf(w, "    Fix: %s\n", v.SuggestedFix.Description)
			}
		}
	}

	fmt.Fprintf(w, "\nSummary:\n")
	fmt.Fprintf(w, "  Files:      %d\n", summary.TotalFiles)
	fmt.Fprintf(w, "  Violations: %d\n", summary.TotalViolations)
	fmt.Fprintf(w, "  Errors:     %d\n", summary.Errors)
	fmt.Fprintf(w, "  Warnings:   %d\n", summary.Warnings)
	fmt.Fprintf(w, "  Infos:      %d\n", summary.Infos)

	if summary.TotalViolations == 0 {
		fmt.Fprintln(w, "\nAll files passed linting")
	}
}

func lintOutputJSON(w io.Writer, results []linter.LintResult, summary linter.Summary) error {
	output := struct {
		Results []linter.LintResult `json:"results"`
		Summary linter.Summary      `json:"summary"`
	}{
		Results: results,
		Summary: summary,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

// lintOutputGitHub writes GitHub Actions annotations:
// ::error file={name},line={line},col={col}::{message}
func lintOutputGitHub(w io.Writer, results []linter.LintResult) {
	for _, result := range results {
		for _, v := range result.Violations {
			level := "error"
			switch v.Severity {
			case linter.SeverityWarning:
				level = "warning"
			case linter.SeverityInfo:
				level = "notice"
			}
			fmt.Fprintf(w, "::%s file=%s,line=%d,col=%d::[%s] %s\n",
				level,
				result.FilePath,
				v.Location.Line,
				v.Location.Column,
				v.Rule,
				v.Message,
			)
		}
	}
}
