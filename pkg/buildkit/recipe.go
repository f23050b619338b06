package buildkit

import "fmt"

// SourceKind tags which of Recipe.Local and Recipe.Git is populated.
type SourceKind int

const (
	// SourceLocal builds from a local context directory, shipped to the
	// daemon through the attach stream's DiffCopy handler.
	SourceLocal SourceKind = iota
	// SourceGit builds from a remote VCS reference the daemon clones
	// directly; no DiffCopy context transfer happens for this source kind.
	SourceGit
)

// LocalSource names a local build context and the Dockerfile within it.
type LocalSource struct {
	ContextRoot        string // path to the context directory
	DockerfileRelative string // path relative to ContextRoot, default "Dockerfile"
}

// GitSource names a remote VCS build context.
type GitSource struct {
	URL        string
	Ref        string
	Subdir     string
	Credential string // VCS token, inlined into the context descriptor URI
}

// RegistryCredential is a host-scoped set of registry credentials, resolved
// by the Credentials callback handler at build time.
type RegistryCredential struct {
	Host     string
	Username string
	Password string
}

// CacheDirective is a cache import or export directive, passed through
// verbatim to the solve request's cache attribute lists (spec.md §4.8).
type CacheDirective struct {
	Type  string // "registry", "inline", "local"
	Attrs map[string]string
}

// SecretBinding names one secret by ID, sourced from a local file. Bindings
// are carried on the Recipe only: buildSolveRequest does not forward them and
// no secrets sub-service is registered on the session.
type SecretBinding struct {
	ID  string
	Src string
}

// Recipe is the discriminated build recipe described in spec.md §3: either a
// local context or a git reference, plus the modifiers that shape the solve
// request.
type Recipe struct {
	SourceKind SourceKind
	Local      LocalSource
	Git        GitSource

	BuildArgs    map[string]string
	Target       string
	Platforms    []Platform
	Tags         []string
	Credential   *RegistryCredential
	CacheImports []CacheDirective
	CacheExports []CacheDirective
	Secrets      []SecretBinding
	NoCache      bool
	AlwaysPull   bool
}

// Validate rejects recipes with configuration errors before any RPC is
// issued, per spec.md §7's "rejected synchronously" rule for this error
// class.
func (r Recipe) Validate() error {
	switch r.SourceKind {
	case SourceLocal:
		if r.Local.ContextRoot == "" {
			return fmt.Errorf("buildkit: local build requires a context root")
		}
	case SourceGit:
		if r.Git.URL == "" {
			return fmt.Errorf("buildkit: git build requires a repository url")
		}
		if r.Git.Ref == "" {
			return fmt.Errorf("buildkit: git build requires a ref")
		}
	default:
		return fmt.Errorf("buildkit: unknown source kind %d", r.SourceKind)
	}
	if len(r.Tags) == 0 {
		return fmt.Errorf("buildkit: at least one image tag is required")
	}
	return nil
}

// dockerfileName returns the Dockerfile's path relative to the context root,
// defaulting to "Dockerfile" when unset, for the frontend's "filename"
// attribute.
func (r Recipe) dockerfileName() string {
	if r.SourceKind == SourceLocal && r.Local.DockerfileRelative != "" {
		return r.Local.DockerfileRelative
	}
	return "Dockerfile"
}

// Result is the outcome of a completed solve call.
type Result struct {
	ImageDigest      string
	ExporterResponse map[string]string
}
