package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/protolink/pkg/descriptor"
	"github.com/platinummonkey/protolink/pkg/storage"
)

func getSnapshotCmd(gs *globalState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Store and fetch schema snapshots",
		Long: `Snapshots are named, versioned descriptor sets kept in the configured
storage backend. They serve as baselines for protolink check.`,
	}
	cmd.AddCommand(
		getSnapshotPushCmd(gs),
		getSnapshotPullCmd(gs),
		getSnapshotListCmd(gs),
		getSnapshotDeleteCmd(gs),
	)
	return cmd
}

func getSnapshotPushCmd(gs *globalState) *cobra.Command {
	var version string

	cmd := &cobra.Command{
		Use:   "push NAME [root...]",
		Short: "Link the roots and store the result as a snapshot",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := gs.newPipeline(args[1:])
			if err != nil {
				return err
			}
			snap, err := p.Snapshot(cmd.Context(), args[0], version)
			if err != nil {
				return gs.reportLinkError(err)
			}

			store, err := gs.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			err = store.Put(cmd.Context(), snap)
			gs.metrics.ObserveSnapshotOperation("put", err)
			if err != nil {
				return err
			}
			gs.logger.WithFields(logrus.Fields{
				"snapshot": snap.Name,
				"version":  snap.Version,
				"files":    snap.FileCount,
			}).Debug("Snapshot stored")
			fmt.Fprintf(gs.stdout, "Stored %s@%s (%d files, %s)\n", snap.Name, snap.Version, snap.FileCount, snap.Digest)
			return nil
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "snapshot version (default: current UTC time)")
	return cmd
}

func getSnapshotPullCmd(gs *globalState) *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "pull NAME [VERSION]",
		Short: "Write a stored descriptor set",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := descriptor.ParseFormat(format)
			if err != nil {
				return err
			}
			store, err := gs.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			var snap *storage.Snapshot
			if len(args) == 2 {
				snap, err = store.Get(cmd.Context(), args[0], args[1])
			} else {
				snap, err = store.Latest(cmd.Context(), args[0])
			}
			gs.metrics.ObserveSnapshotOperation("get", err)
			if err != nil {
				return err
			}

			data, err := descriptor.Marshal(snap.Files, outFormat)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = gs.stdout.Write(data)
				return err
			}
			if err := afero.WriteFile(gs.fs, output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write descriptors: %w", err)
			}
			gs.logger.WithFields(logrus.Fields{
				"snapshot": snap.Name,
				"version":  snap.Version,
				"path":     output,
			}).Info("Wrote descriptor set")
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "binary", "descriptor encoding: binary, json, text")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

func getSnapshotListCmd(gs *globalState) *cobra.Command {
	return &cobra.Command{
		Use:   "list [NAME]",
		Short: "List stored snapshots",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := gs.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			infos, err := store.List(cmd.Context(), name)
			gs.metrics.ObserveSnapshotOperation("list", err)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(gs.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tVERSION\tFILES\tCREATED\tDIGEST")
			for _, info := range infos {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
					info.Name, info.Version, info.FileCount, info.CreatedAt.Format(time.RFC3339), info.Digest)
			}
			return tw.Flush()
		},
	}
}

func getSnapshotDeleteCmd(gs *globalState) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME VERSION",
		Short: "Delete one snapshot version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := gs.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			err = store.Delete(cmd.Context(), args[0], args[1])
			gs.metrics.ObserveSnapshotOperation("delete", err)
			if err != nil {
				return err
			}
			fmt.Fprintf(gs.stdout, "Deleted %s@%s\n", args[0], args[1])
			return nil
		},
	}
}
