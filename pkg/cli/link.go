package cli

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/protolink/pkg/descriptor"
)

func getLinkCmd(gs *globalState) *cobra.Command {
	var descriptorOut, format string

	cmd := &cobra.Command{
		Use:   "link [root...]",
		Short: "Link and validate proto files",
		Long: `Link every proto file below the roots into one schema and report every
diagnostic. The exit status is 1 when the schema has errors.`,
		Example: `
  # Link the configured roots.
  protolink link

  # Link ./proto and write its descriptor set.
  protolink link ./proto --descriptor-out schema.pb`[1:],
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := descriptor.ParseFormat(format)
			if err != nil {
				return err
			}
			p, err := gs.newPipeline(args)
			if err != nil {
				return err
			}

			s, err := p.Link(cmd.Context())
			if err != nil {
				return gs.reportLinkError(err)
			}
			fmt.Fprintf(gs.stdout, "Linked %d files: %d types, %d services\n",
				len(s.ProtoFiles()), len(s.Types()), len(s.Services()))

			if descriptorOut == "" {
				return nil
			}
			set, err := descriptor.Build(s)
			if err != nil {
				return err
			}
			data, err := descriptor.Marshal(set, outFormat)
			if err != nil {
				return err
			}
			if descriptorOut == "-" {
				_, err = gs.stdout.Write(data)
				return err
			}
			if err := afero.WriteFile(gs.fs, descriptorOut, data, 0o644); err != nil {
				return fmt.Errorf("failed to write descriptors: %w", err)
			}
			gs.logger.WithField("path", descriptorOut).Info("Wrote descriptor set")
			return nil
		},
	}

	cmd.Flags().StringVarP(&descriptorOut, "descriptor-out", "o", "", "write the FileDescriptorSet to this path (- for stdout)")
	cmd.Flags().StringVar(&format, "format", "binary", "descriptor encoding: binary, json, text")
	return cmd
}
