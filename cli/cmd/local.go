package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arcbox-labs/buildkit-client/pkg/buildkit"
)

func newCmdLocal() *cobra.Command {
	o := newBuildOptions()
	var contextDir, dockerfile string

	cmd := &cobra.Command{
		Use:   "local",
		Short: "build an image from a local context directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recipe := buildkit.Recipe{
				SourceKind: buildkit.SourceLocal,
				Local: buildkit.LocalSource{
					ContextRoot:        contextDir,
					DockerfileRelative: dockerfile,
				},
			}
			if err := applyCommonOptions(&recipe, o); err != nil {
				return err
			}

			result, err := buildkit.RunBuild(cmd.Context(), buildkit.BuildOptions{
				Addr:   daemonAddr,
				Recipe: recipe,
				Sink:   buildkit.NewLogrusSink(),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okStatus, result.ImageDigest)
			return nil
		},
	}

	cmd.Flags().StringVar(&contextDir, "context", ".", "local build context directory")
	cmd.Flags().StringVar(&dockerfile, "dockerfile", "Dockerfile", "path to the Dockerfile, relative to --context")
	addBuildFlags(cmd, o)

	return cmd
}
