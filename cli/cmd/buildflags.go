package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/arcbox-labs/buildkit-client/pkg/buildkit"
)

// buildOptions holds the flag values common to the local and github build
// subcommands, the way the teacher's proxyConfigOptions centralizes flags
// shared by install and inject.
type buildOptions struct {
	buildArgs []string
	target    string
	platforms string
	tags      []string
	cacheFrom []string
	cacheTo   []string
	noCache   bool
	pull      bool
	secrets   []string
	registry  string
	regUser   string
	regPass   string
}

func newBuildOptions() *buildOptions {
	return &buildOptions{}
}

// addBuildFlags registers the flags shared by "local" and "github" as a
// dedicated pflag.FlagSet merged into cmd, the same pattern the teacher
// uses for its install/proxy/inject flag groups (cli/cmd/options.go).
func addBuildFlags(cmd *cobra.Command, o *buildOptions) {
	fs := pflag.NewFlagSet("build", pflag.ExitOnError)

	fs.StringArrayVar(&o.buildArgs, "build-arg", nil, "build argument key=value, may be repeated")
	fs.StringVar(&o.target, "target", "", "target build stage")
	fs.StringVar(&o.platforms, "platform", "", "comma-separated platform list, e.g. linux/amd64,linux/arm64")
	fs.StringArrayVar(&o.tags, "tag", nil, "image tag, may be repeated")
	fs.StringArrayVar(&o.cacheFrom, "cache-from", nil, "cache import directive, type=<type>[,attr=value...]")
	fs.StringArrayVar(&o.cacheTo, "cache-to", nil, "cache export directive, type=<type>[,attr=value...]")
	fs.BoolVar(&o.noCache, "no-cache", false, "disable the daemon's build cache")
	fs.BoolVar(&o.pull, "pull", false, "always pull base images")
	fs.StringArrayVar(&o.secrets, "secret", nil, "secret binding, id=name,src=path")
	fs.StringVar(&o.registry, "registry", "", "registry host the image will be pushed to")
	fs.StringVar(&o.regUser, "registry-user", "", "registry username")
	fs.StringVar(&o.regPass, "registry-password", "", "registry password")

	cmd.Flags().AddFlagSet(fs)
}

// parseBuildArgs turns "key=value" flag values into the recipe's map form.
func parseBuildArgs(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(raw))
	for _, kv := range raw {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --build-arg %q: expected key=value", kv)
		}
		out[k] = v
	}
	return out, nil
}

// parseCacheDirectives turns "type=<type>,attr=value,..." flag values into
// CacheDirective values (spec.md §3).
func parseCacheDirectives(raw []string) ([]buildkit.CacheDirective, error) {
	var out []buildkit.CacheDirective
	for _, entry := range raw {
		parts := strings.Split(entry, ",")
		if len(parts) == 0 || !strings.Contains(parts[0], "=") {
			return nil, fmt.Errorf("invalid cache directive %q: expected type=value[,attr=value...]", entry)
		}
		typeKV := strings.SplitN(parts[0], "=", 2)
		if typeKV[0] != "type" {
			return nil, fmt.Errorf("invalid cache directive %q: must start with type=...", entry)
		}
		d := buildkit.CacheDirective{Type: typeKV[1], Attrs: map[string]string{}}
		for _, attr := range parts[1:] {
			k, v, ok := strings.Cut(attr, "=")
			if !ok {
				return nil, fmt.Errorf("invalid cache directive attribute %q", attr)
			}
			d.Attrs[k] = v
		}
		out = append(out, d)
	}
	return out, nil
}

// parseSecrets turns "id=name,src=path" flag values into SecretBindings.
func parseSecrets(raw []string) ([]buildkit.SecretBinding, error) {
	var out []buildkit.SecretBinding
	for _, entry := range raw {
		var b buildkit.SecretBinding
		for _, field := range strings.Split(entry, ",") {
			k, v, ok := strings.Cut(field, "=")
			if !ok {
				return nil, fmt.Errorf("invalid --secret %q", entry)
			}
			switch k {
			case "id":
				b.ID = v
			case "src":
				b.Src = v
			default:
				return nil, fmt.Errorf("invalid --secret field %q", k)
			}
		}
		if b.ID == "" {
			return nil, fmt.Errorf("invalid --secret %q: missing id", entry)
		}
		out = append(out, b)
	}
	return out, nil
}

// applyCommonOptions fills in the modifiers shared by every build recipe
// from the parsed flag values.
func applyCommonOptions(r *buildkit.Recipe, o *buildOptions) error {
	buildArgs, err := parseBuildArgs(o.buildArgs)
	if err != nil {
		return err
	}
	r.BuildArgs = buildArgs
	r.Target = o.target
	r.Tags = o.tags
	r.NoCache = o.noCache
	r.AlwaysPull = o.pull

	platforms, err := buildkit.ParsePlatforms(o.platforms)
	if err != nil {
		return err
	}
	r.Platforms = platforms

	cacheImports, err := parseCacheDirectives(o.cacheFrom)
	if err != nil {
		return err
	}
	r.CacheImports = cacheImports

	cacheExports, err := parseCacheDirectives(o.cacheTo)
	if err != nil {
		return err
	}
	r.CacheExports = cacheExports

	secrets, err := parseSecrets(o.secrets)
	if err != nil {
		return err
	}
	r.Secrets = secrets

	if o.registry != "" {
		r.Credential = &buildkit.RegistryCredential{
			Host:     o.registry,
			Username: o.regUser,
			Password: o.regPass,
		}
	}
	return nil
}
