package orchestrator

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// composeManifest is the subset of a docker-compose file's structure
// ParseManifestImages needs: each service's image reference.
type composeManifest struct {
	Services map[string]struct {
		Image string `yaml:"image"`
	} `yaml:"services"`
}

// imageLine matches a bare "image: <ref>" line for the fallback scanner,
// used when the manifest does not parse as valid YAML (e.g. heavy use of
// anchors/extensions the yaml.v3 decoder chokes on, or a malformed file).
var imageLine = regexp.MustCompile(`(?m)^\s*image:\s*["']?([^"'\s#]+)["']?\s*(?:#.*)?$`)

// ParseManifestImages extracts the image references a compose manifest's
// services declare. This is a fallback source of truth only — the
// engine's primary signal for which images a stack uses is its live
// containers' compose-project label (spec §9 Open Question 2); this
// function exists for stacks whose manifest lists an image that no
// container currently instantiates (e.g. a scaled-to-zero service).
//
// env substitutes ${VAR:-default} and ${VAR} references using the
// stack's recorded environment before image references are extracted.
func ParseManifestImages(manifest string, env []EnvVar) []string {
	resolved := substituteEnv(manifest, env)

	var doc composeManifest
	if err := yaml.Unmarshal([]byte(resolved), &doc); err == nil && len(doc.Services) > 0 {
		images := make([]string, 0, len(doc.Services))
		for _, svc := range doc.Services {
			if svc.Image != "" {
				images = append(images, svc.Image)
			}
		}
		return images
	}

	// Fallback: line-scan for "image:" entries the YAML parser rejected.
	var images []string
	for _, m := range imageLine.FindAllStringSubmatch(resolved, -1) {
		images = append(images, m[1])
	}
	return images
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

func substituteEnv(s string, env []EnvVar) string {
	values := make(map[string]string, len(env))
	for _, e := range env {
		values[e.Name] = e.Value
	}
	return envRef.ReplaceAllStringFunc(s, func(match string) string {
		groups := envRef.FindStringSubmatch(match)
		name, def := groups[1], groups[2]
		if v, ok := values[name]; ok && v != "" {
			return v
		}
		if def != "" {
			return def
		}
		return strings.TrimSpace(match)
	})
}
