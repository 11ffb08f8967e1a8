package reference

import "testing"

func TestParseBasic(t *testing.T) {
	tests := []struct {
		in   string
		want Reference
	}{
		{"nginx", Reference{Registry: "docker.io", Repository: "library/nginx", Tag: "latest"}},
		{"nginx:1.25", Reference{Registry: "docker.io", Repository: "library/nginx", Tag: "1.25"}},
		{"library/nginx", Reference{Registry: "docker.io", Repository: "library/nginx", Tag: "latest"}},
		{"gitea/gitea:1.21", Reference{Registry: "docker.io", Repository: "gitea/gitea", Tag: "1.21"}},
		{"ghcr.io/user/repo:v1.0", Reference{Registry: "ghcr.io", Repository: "user/repo", Tag: "v1.0"}},
		{"docker.io/library/nginx", Reference{Registry: "docker.io", Repository: "library/nginx", Tag: "latest"}},
		{"index.docker.io/library/nginx:latest", Reference{Registry: "docker.io", Repository: "library/nginx", Tag: "latest"}},
		{"registry.local:5000/myapp:v2", Reference{Registry: "registry.local:5000", Repository: "myapp", Tag: "v2"}},
		{"repo/x@sha256:abcd", Reference{Registry: "docker.io", Repository: "repo/x", Tag: "", Digest: "sha256:abcd"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseEnvSubstitution(t *testing.T) {
	got, err := Parse("myrepo/app:${TAG:-latest}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Tag != "latest" {
		t.Errorf("Tag = %q, want %q", got.Tag, "latest")
	}
	if got.Repository != "myrepo/app" {
		t.Errorf("Repository = %q, want %q", got.Repository, "myrepo/app")
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "my repo/app", "myrepo/app:1.0 "} {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q) expected error, got nil", in)
		}
	}
}

func TestParseRenderRoundTrip(t *testing.T) {
	for _, in := range []string{"nginx:1.25", "ghcr.io/user/repo:v1.0", "myrepo/app@sha256:abcd1234"} {
		ref, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", in, err)
		}
		again, err := Parse(ref.String())
		if err != nil {
			t.Fatalf("Parse(render(%q)): %v", in, err)
		}
		if !Equal(ref, again) {
			t.Errorf("round-trip mismatch for %q: %+v vs %+v", in, ref, again)
		}
	}
}

func TestEqualIgnoresAliasesAndLibraryPrefix(t *testing.T) {
	a, _ := Parse("redis")
	b, _ := Parse("docker.io/library/redis:latest")
	if !Equal(a, b) {
		t.Errorf("expected %+v to equal %+v", a, b)
	}
}

func TestIsDigestPinned(t *testing.T) {
	pinned, _ := Parse("repo/x@sha256:deadbeef")
	if !pinned.IsDigestPinned() {
		t.Error("expected digest-pinned reference to report pinned")
	}
	unpinned, _ := Parse("repo/x:latest")
	if unpinned.IsDigestPinned() {
		t.Error("expected tag reference to report not pinned")
	}
}

func TestCanonicalAliases(t *testing.T) {
	ref, _ := Parse("redis")
	aliases := CanonicalAliases(ref)
	want := map[string]bool{
		"library/redis:latest":            true,
		"docker.io/library/redis:latest":  true,
		"index.docker.io/library/redis:latest": true,
		"redis:latest":                    true,
		"docker.io/redis:latest":          true,
	}
	for _, a := range aliases {
		if !want[a] {
			t.Errorf("unexpected alias %q", a)
		}
		delete(want, a)
	}
	if len(want) != 0 {
		t.Errorf("missing aliases: %v", want)
	}
}
