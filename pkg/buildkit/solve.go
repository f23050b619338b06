package buildkit

import (
	"fmt"
	"net/url"
	"strings"
)

// dockerfileFrontend is the only frontend this client ever selects (spec.md
// GLOSSARY: "Frontend").
const dockerfileFrontend = "dockerfile.v0"

// SolveRequest is the JSON-shaped body the control client sends to the
// daemon's Solve RPC. Field names mirror BuildKit's own ControlSolveRequest
// closely enough to be recognizable while staying plain Go structs (no
// generated protobuf stub, see pkg/buildkit/control.go).
type SolveRequest struct {
	Ref           string            `json:"ref"`
	Frontend      string            `json:"frontend"`
	FrontendAttrs map[string]string `json:"frontend_attrs"`
	Exporter      string            `json:"exporter,omitempty"`
	ExporterAttrs map[string]string `json:"exporter_attrs,omitempty"`
	CacheImports  []cacheEntry      `json:"cache_imports,omitempty"`
	CacheExports  []cacheEntry      `json:"cache_exports,omitempty"`
	Session       string            `json:"session"`
}

type cacheEntry struct {
	Type  string            `json:"type"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// SolveResponse is the Solve RPC's reply.
type SolveResponse struct {
	ExporterResponse map[string]string `json:"exporter_response,omitempty"`
}

// buildSolveRequest shapes the solve payload for r, tagged with the session
// correlating shared key, per spec.md §4.8.
func buildSolveRequest(r Recipe, ref, sharedKey string) (SolveRequest, error) {
	contextDesc, err := contextDescriptor(r, sharedKey)
	if err != nil {
		return SolveRequest{}, err
	}

	attrs := map[string]string{
		"filename": r.dockerfileName(),
	}
	for k, v := range r.BuildArgs {
		attrs["build-arg:"+k] = v
	}
	if r.Target != "" {
		attrs["target"] = r.Target
	}
	if len(r.Platforms) > 0 {
		attrs["platform"] = JoinPlatforms(r.Platforms)
	}
	if r.NoCache {
		attrs["no-cache"] = ""
	}
	if r.AlwaysPull {
		attrs["image-resolve-mode"] = "pull"
	}
	attrs["context"] = contextDesc

	req := SolveRequest{
		Ref:           ref,
		Frontend:      dockerfileFrontend,
		FrontendAttrs: attrs,
		Session:       sharedKey,
	}

	if len(r.Tags) > 0 {
		req.Exporter = "image"
		req.ExporterAttrs = map[string]string{
			"name": strings.Join(r.Tags, ","),
			"push": "true",
		}
	}

	for _, c := range r.CacheImports {
		req.CacheImports = append(req.CacheImports, cacheEntry{Type: c.Type, Attrs: c.Attrs})
	}
	for _, c := range r.CacheExports {
		req.CacheExports = append(req.CacheExports, cacheEntry{Type: c.Type, Attrs: c.Attrs})
	}

	return req, nil
}

// contextDescriptor builds the context source descriptor URI: for local
// builds, an "input:<shared_key>:context" reference the daemon resolves
// through the attach stream's DiffCopy handler; for git builds, a
// "<scheme>://[<token>@]<host>/<path>#<ref>" URI with the token, if any,
// inlined (spec.md §4.8).
func contextDescriptor(r Recipe, sharedKey string) (string, error) {
	switch r.SourceKind {
	case SourceLocal:
		return fmt.Sprintf("input:%s:context", sharedKey), nil
	case SourceGit:
		u, err := url.Parse(r.Git.URL)
		if err != nil {
			return "", fmt.Errorf("buildkit: parsing git url %q: %w", r.Git.URL, err)
		}
		if r.Git.Credential != "" {
			u.User = url.User(r.Git.Credential)
		}
		if r.Git.Subdir != "" {
			u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(r.Git.Subdir, "/")
		}
		u.Fragment = r.Git.Ref
		return u.String(), nil
	default:
		return "", fmt.Errorf("buildkit: unknown source kind %d", r.SourceKind)
	}
}
