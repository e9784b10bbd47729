package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/protolink/pkg/compatibility"
	"github.com/platinummonkey/protolink/pkg/storage"
)

type checkCmd struct {
	gs *globalState

	against  string
	snapshot string
	version  string
	mode     string
	format   string
	verbose  bool
}

func getCheckCmd(gs *globalState) *cobra.Command {
	c := &checkCmd{gs: gs}
	cmd := &cobra.Command{
		Use:   "check [root...]",
		Short: "Check a schema for breaking changes",
		Long: `Compare the schema below the roots with a baseline: another source tree
(--against) or a stored snapshot (--snapshot). The exit status is 1 when the
change is incompatible in the selected mode.`,
		Example: `
  # Compare with the main branch checkout.
  protolink check ./proto --against ../main/proto

  # Compare with every stored version of a snapshot.
  protolink check --snapshot payments --mode BACKWARD_TRANSITIVE`[1:],
		RunE: c.run,
	}

	cmd.Flags().StringVar(&c.against, "against", "", "baseline source root")
	cmd.Flags().StringVar(&c.snapshot, "snapshot", "", "baseline snapshot name")
	cmd.Flags().StringVar(&c.version, "version", "", "baseline snapshot version (default: latest, or all for transitive modes)")
	cmd.Flags().StringVar(&c.mode, "mode", "BACKWARD", "compatibility mode: NONE, BACKWARD, FORWARD, FULL, BACKWARD_TRANSITIVE, FORWARD_TRANSITIVE, FULL_TRANSITIVE")
	cmd.Flags().StringVar(&c.format, "format", "text", "output format: text, json")
	cmd.Flags().BoolVarP(&c.verbose, "verbose", "v", false, "show info level violations")
	cmd.MarkFlagsMutuallyExclusive("against", "snapshot")
	cmd.MarkFlagsOneRequired("against", "snapshot")
	return cmd
}

func (c *checkCmd) run(cmd *cobra.Command, args []string) error {
	mode, err := compatibility.ParseCompatibilityMode(c.mode)
	if err != nil {
		return fmt.Errorf("invalid compatibility mode: %w", err)
	}
	if c.format != "text" && c.format != "json" {
		return fmt.Errorf("unknown output format %q", c.format)
	}

	p, err := c.gs.newPipeline(args)
	if err != nil {
		return err
	}
	newSchema, err := p.Link(cmd.Context())
	if err != nil {
		return c.gs.reportLinkError(err)
	}

	history, err := c.baseline(cmd.Context(), mode)
	if err != nil {
		return err
	}

	result, err := compatibility.CheckHistory(history, compatibility.FromSchema(newSchema), mode)
	if err != nil {
		return fmt.Errorf("compatibility check failed: %w", err)
	}

	if c.format == "json" {
		encoder := json.NewEncoder(c.gs.stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return err
		}
	} else {
		outputCheckText(c.gs.stdout, result, c.verbose)
	}

	if !result.Compatible {
		return &exitError{code: 1, err: errors.New("compatibility check failed")}
	}
	return nil
}

// baseline returns the schemas to compare with, oldest first.
func (c *checkCmd) baseline(ctx context.Context, mode compatibility.CompatibilityMode) ([]*compatibility.SchemaGraph, error) {
	if c.against != "" {
		p, err := c.gs.newPipeline([]string{c.against})
		if err != nil {
			return nil, err
		}
		old, err := p.Link(ctx)
		if err != nil {
			return nil, fmt.Errorf("baseline %s does not link: %w", c.against, err)
		}
		return []*compatibility.SchemaGraph{compatibility.FromSchema(old)}, nil
	}

	store, err := c.gs.openStore()
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if c.version != "" || !mode.Transitive() {
		var snap *storage.Snapshot
		if c.version == "" {
			snap, err = store.Latest(ctx, c.snapshot)
		} else {
			snap, err = store.Get(ctx, c.snapshot, c.version)
		}
		c.gs.metrics.ObserveSnapshotOperation("get", err)
		if err != nil {
			return nil, err
		}
		c.gs.logger.WithField("baseline", snap.Name+"@"+snap.Version).Debug("Loaded baseline snapshot")
		return []*compatibility.SchemaGraph{compatibility.FromDescriptorSet(snap.Files)}, nil
	}

	infos, err := store.List(ctx, c.snapshot)
	c.gs.metrics.ObserveSnapshotOperation("list", err)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("%w: %s", storage.ErrSnapshotNotFound, c.snapshot)
	}
	history := make([]*compatibility.SchemaGraph, 0, len(infos))
	for _, info := range infos {
		snap, err := store.Get(ctx, info.Name, info.Version)
		c.gs.metrics.ObserveSnapshotOperation("get", err)
		if err != nil {
			return nil, err
		}
		history = append(history, compatibility.FromDescriptorSet(snap.Files))
	}
	return history, nil
}

func outputCheckText(w io.Writer, result *compatibility.CheckResult, verbose bool) {
	fmt.Fprintf(w, "Compatibility Check: %s\n", result.Mode)
	if result.Compatible {
		fmt.Fprintf(w, "Result: COMPATIBLE\n\n")
	} else {
		fmt.Fprintf(w, "Result: INCOMPATIBLE\n\n")
	}

	summary := result.Summary
	fmt.Fprintf(w, "Summary:\n")
	fmt.Fprintf(w, "  Total Violations: %d\n", summary.TotalViolations)
	fmt.Fprintf(w, "  Errors:           %d\n", summary.Errors)
	fmt.Fprintf(w, "  Warnings:         %d\n", summary.Warnings)
	fmt.Fprintf(w, "  Info:             %d\n", summary.Infos)
	fmt.Fprintf(w, "  Wire Breaking:    %d\n", summary.WireBreaking)
	fmt.Fprintf(w, "  Source Breaking:  %d\n", summary.SourceBreaking)

	for _, v := range result.Violations {
		if !verbose && v.Level == compatibility.ViolationLevelInfo {
			continue
		}
		fmt.Fprintf(w, "\n[%s] %s\n", v.Level, v.Rule)
		fmt.Fprintf(w, "  Location: %s\n", v.Location)
		fmt.Fprintf(w, "  Message:  %s\n", v.Message)
		if v.OldValue != "" || v.NewValue != "" {
			fmt.Fprintf(w, "  Change:   %s -> %s\n", v.OldValue, v.NewValue)
		}
		var breaking []string
		if v.WireBreaking {
			breaking = append(breaking, "wire-breaking")
		}
		if v.SourceBreaking {
			breaking = append(breaking, "source-breaking")
		}
		if len(breaking) > 0 {
			fmt.Fprintf(w, "  Breaking: %s\n", strings.Join(breaking, ", "))
		}
		if v.Suggestion != "" {
			fmt.Fprintf(w, "  Hint:     %s\n", v.Suggestion)
		}
	}
}
