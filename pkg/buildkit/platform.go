package buildkit

import (
	"fmt"
	"strings"
)

// Platform is a structured os/arch[/variant] triple, the unit the solve
// request's frontend attributes and the CLI's --platform flag both speak
// (spec.md §3).
type Platform struct {
	OS      string
	Arch    string
	Variant string
}

// String renders the canonical "os/arch[/variant]" form the frontend
// attribute and cache key expect.
func (p Platform) String() string {
	if p.Variant == "" {
		return fmt.Sprintf("%s/%s", p.OS, p.Arch)
	}
	return fmt.Sprintf("%s/%s/%s", p.OS, p.Arch, p.Variant)
}

// ParsePlatform parses a single "os/arch[/variant]" string.
func ParsePlatform(s string) (Platform, error) {
	parts := strings.Split(s, "/")
	if len(parts) < 2 || len(parts) > 3 {
		return Platform{}, fmt.Errorf("buildkit: invalid platform %q: expected os/arch[/variant]", s)
	}
	p := Platform{OS: parts[0], Arch: parts[1]}
	if len(parts) == 3 {
		p.Variant = parts[2]
	}
	if p.OS == "" || p.Arch == "" {
		return Platform{}, fmt.Errorf("buildkit: invalid platform %q: empty os or arch component", s)
	}
	return p, nil
}

// ParsePlatforms parses a comma-joined platform list, the form taken by the
// CLI's --platform flag and the wire-level frontend attribute.
func ParsePlatforms(csv string) ([]Platform, error) {
	if csv == "" {
		return nil, nil
	}
	var out []Platform
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		p, err := ParsePlatform(part)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// JoinPlatforms renders a platform list as the comma-joined canonical string
// the frontend attribute carries.
func JoinPlatforms(platforms []Platform) string {
	strs := make([]string, len(platforms))
	for i, p := range platforms {
		strs[i] = p.String()
	}
	return strings.Join(strs, ",")
}
