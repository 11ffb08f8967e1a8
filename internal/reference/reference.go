// Package reference parses and normalises Docker image references.
package reference

import (
	"fmt"
	"regexp"
	"strings"
)

// dockerHub is the canonical registry host for unqualified images.
const dockerHub = "docker.io"

// hubAliases are registry hostnames that all refer to Docker Hub's index.
var hubAliases = map[string]bool{
	"docker.io":       true,
	"index.docker.io": true,
	"registry-1.docker.io": true,
}

// Reference is a parsed, normalised image reference.
//
// Registry is always populated (absent input normalises to "docker.io").
// Repository includes any path segments; single-segment Docker Hub names
// are expanded to "library/<name>". Tag defaults to "latest" when absent
// and no digest is present. Digest, when present, makes the reference
// immutable.
type Reference struct {
	Registry   string
	Repository string
	Tag        string
	Digest     string
}

// IsDigestPinned reports whether this reference names an immutable image.
func (r Reference) IsDigestPinned() bool {
	return r.Digest != ""
}

// String renders the reference back to its canonical form.
func (r Reference) String() string {
	var b strings.Builder
	if r.Registry != dockerHub {
		b.WriteString(r.Registry)
		b.WriteByte('/')
	}
	b.WriteString(r.Repository)
	if r.Digest != "" {
		b.WriteByte('@')
		b.WriteString(r.Digest)
		return b.String()
	}
	b.WriteByte(':')
	b.WriteString(r.Tag)
	return b.String()
}

// envSubst matches the ${VAR:-default} compose env-substitution form.
var envSubst = regexp.MustCompile(`\$\{[A-Za-z_][A-Za-z0-9_]*:-([^}]*)\}`)

// resolveEnvDefaults replaces every ${VAR:-default} occurrence with its
// default value, so compose-file image references of the form
// "myrepo/app:${TAG:-latest}" parse as if the literal default were written.
func resolveEnvDefaults(s string) string {
	return envSubst.ReplaceAllString(s, "$1")
}

// Parse splits an image reference string into its structured form.
// Returns an error when s is empty or contains whitespace.
func Parse(s string) (Reference, error) {
	if s == "" {
		return Reference{}, fmt.Errorf("reference: empty string")
	}
	if strings.ContainsAny(s, " \t\n\r") {
		return Reference{}, fmt.Errorf("reference: %q contains whitespace", s)
	}

	s = resolveEnvDefaults(s)

	var ref Reference

	// Split off the digest, if any.
	name := s
	if i := strings.Index(s, "@"); i >= 0 {
		name = s[:i]
		ref.Digest = s[i+1:]
	}

	// Determine registry host vs. repository path.
	registry := dockerHub
	repoPart := name
	if slash := strings.Index(name, "/"); slash >= 0 {
		firstSegment := name[:slash]
		if strings.ContainsAny(firstSegment, ".:") || firstSegment == "localhost" {
			registry = firstSegment
			repoPart = name[slash+1:]
		}
	}
	ref.Registry = NormaliseRegistry(registry)

	// Split off the tag (only a colon after the last slash counts).
	repository := repoPart
	tag := ""
	if i := strings.LastIndex(repoPart, ":"); i >= 0 {
		if slash := strings.LastIndex(repoPart, "/"); i > slash {
			repository = repoPart[:i]
			tag = repoPart[i+1:]
		}
	}

	if ref.Registry == dockerHub && !strings.Contains(repository, "/") {
		repository = "library/" + repository
	}
	ref.Repository = repository

	if ref.Digest == "" && tag == "" {
		tag = "latest"
	}
	ref.Tag = tag

	return ref, nil
}

// NormaliseRegistry collapses Docker Hub aliases to the canonical "docker.io".
func NormaliseRegistry(host string) string {
	if hubAliases[strings.ToLower(host)] {
		return dockerHub
	}
	return host
}

// Equal reports whether two references denote the same logical image,
// ignoring redundant registry aliases and the implicit "library/" prefix.
func Equal(a, b Reference) bool {
	return a.Registry == b.Registry && a.Repository == b.Repository &&
		a.Tag == b.Tag && a.Digest == b.Digest
}

// CanonicalAliases returns every fully-qualified name the engine may use
// for the same logical image: the literal rendering, the "docker.io/…" and
// "index.docker.io/…" forms when the registry is Docker Hub, and — for
// single-segment Docker Hub names — the bare name and its "docker.io/<name>"
// form alongside the "library/…" forms.
func CanonicalAliases(r Reference) []string {
	suffix := ":" + r.Tag
	if r.Digest != "" {
		suffix = "@" + r.Digest
	}

	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	if r.Registry != dockerHub {
		add(r.Registry + "/" + r.Repository + suffix)
		return out
	}

	add(r.Repository + suffix)
	add(dockerHub + "/" + r.Repository + suffix)
	add("index.docker.io/" + r.Repository + suffix)

	if bare, ok := strings.CutPrefix(r.Repository, "library/"); ok {
		add(bare + suffix)
		add(dockerHub + "/" + bare + suffix)
	}

	return out
}
