package buildkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSolveRequestLocalContext(t *testing.T) {
	r := Recipe{
		SourceKind: SourceLocal,
		Local:      LocalSource{ContextRoot: "/ctx", DockerfileRelative: "Dockerfile.dev"},
		BuildArgs:  map[string]string{"VERSION": "1.2.3"},
		Target:     "builder",
		Platforms:  []Platform{{OS: "linux", Arch: "amd64"}},
		Tags:       []string{"registry.example.com/app:latest"},
		NoCache:    true,
	}

	req, err := buildSolveRequest(r, "ref-123", "shared-abc")
	require.NoError(t, err)

	assert.Equal(t, "ref-123", req.Ref)
	assert.Equal(t, dockerfileFrontend, req.Frontend)
	assert.Equal(t, "shared-abc", req.Session)
	assert.Equal(t, "Dockerfile.dev", req.FrontendAttrs["filename"])
	assert.Equal(t, "1.2.3", req.FrontendAttrs["build-arg:VERSION"])
	assert.Equal(t, "builder", req.FrontendAttrs["target"])
	assert.Equal(t, "linux/amd64", req.FrontendAttrs["platform"])
	assert.Equal(t, "", req.FrontendAttrs["no-cache"])
	assert.Equal(t, "input:shared-abc:context", req.FrontendAttrs["context"])

	assert.Equal(t, "image", req.Exporter)
	assert.Equal(t, "registry.example.com/app:latest", req.ExporterAttrs["name"])
	assert.Equal(t, "true", req.ExporterAttrs["push"])
}

func TestBuildSolveRequestGitContextInlinesToken(t *testing.T) {
	r := Recipe{
		SourceKind: SourceGit,
		Git: GitSource{
			URL:        "https://github.com/example/repo.git",
			Ref:        "deadbeef",
			Subdir:     "docker",
			Credential: "ghp_secret",
		},
		Tags: []string{"app:latest"},
	}

	req, err := buildSolveRequest(r, "ref-1", "shared-1")
	require.NoError(t, err)

	ctx := req.FrontendAttrs["context"]
	assert.Contains(t, ctx, "ghp_secret@github.com")
	assert.Contains(t, ctx, "/repo.git/docker")
	assert.Contains(t, ctx, "#deadbeef")
}

func TestBuildSolveRequestWithoutTagsOmitsExporter(t *testing.T) {
	r := Recipe{
		SourceKind: SourceLocal,
		Local:      LocalSource{ContextRoot: "/ctx"},
	}
	req, err := buildSolveRequest(r, "ref", "key")
	require.NoError(t, err)
	assert.Empty(t, req.Exporter)
	assert.Nil(t, req.ExporterAttrs)
}

func TestBuildSolveRequestCacheDirectivesPassThrough(t *testing.T) {
	r := Recipe{
		SourceKind:   SourceLocal,
		Local:        LocalSource{ContextRoot: "/ctx"},
		Tags:         []string{"app:latest"},
		CacheImports: []CacheDirective{{Type: "registry", Attrs: map[string]string{"ref": "cache:latest"}}},
		CacheExports: []CacheDirective{{Type: "inline"}},
	}
	req, err := buildSolveRequest(r, "ref", "key")
	require.NoError(t, err)
	require.Len(t, req.CacheImports, 1)
	assert.Equal(t, "registry", req.CacheImports[0].Type)
	assert.Equal(t, "cache:latest", req.CacheImports[0].Attrs["ref"])
	require.Len(t, req.CacheExports, 1)
	assert.Equal(t, "inline", req.CacheExports[0].Type)
}
