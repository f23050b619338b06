package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arcbox-labs/buildkit-client/pkg/buildkit"
)

// gitTokenEnvVar supplies a VCS credential for git-source builds when
// --token is not passed explicitly (spec.md §6).
const gitTokenEnvVar = "BUILDCTL_GIT_TOKEN"

func newCmdGithub() *cobra.Command {
	o := newBuildOptions()
	var repoURL, ref, subdir, token string

	cmd := &cobra.Command{
		Use:   "github",
		Short: "build an image from a remote git context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cred := token
			if cred == "" {
				cred = os.Getenv(gitTokenEnvVar)
			}

			recipe := buildkit.Recipe{
				SourceKind: buildkit.SourceGit,
				Git: buildkit.GitSource{
					URL:        repoURL,
					Ref:        ref,
					Subdir:     subdir,
					Credential: cred,
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

	cmd.Flags().StringVar(&repoURL, "url", "", "git repository URL (required)")
	cmd.Flags().StringVar(&ref, "ref", "main", "git ref to build")
	cmd.Flags().StringVar(&subdir, "subdir", "", "subdirectory within the repository containing the build context")
	cmd.Flags().StringVar(&token, "token", "", fmt.Sprintf("VCS credential for the clone [$%s]", gitTokenEnvVar))
	addBuildFlags(cmd, o)
	cmd.MarkFlagRequired("url")

	return cmd
}
