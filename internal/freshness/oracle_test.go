package freshness

import (
	"context"
	"testing"

	"github.com/moby/moby/api/types/container"

	"github.com/drydock/drydock/internal/dockerengine"
	"github.com/drydock/drydock/internal/logging"
	"github.com/drydock/drydock/internal/reference"
)

// stubEngine implements dockerengine.API with just enough behavior for
// the Oracle's HasNewer to exercise: an image store that a Pull call can
// mutate, simulating a registry rolling the tag forward mid-check.
type stubEngine struct {
	images  map[string]dockerengine.ImageSummary // keyed by every alias it should resolve under
	pullErr error
	afterPull map[string]dockerengine.ImageSummary // replaces images on Pull, nil to leave unchanged
}

func (s *stubEngine) ListContainers(context.Context, bool) ([]container.Summary, error) { return nil, nil }
func (s *stubEngine) ListContainersByLabel(context.Context, string, string) ([]container.Summary, error) {
	return nil, nil
}
func (s *stubEngine) InspectContainer(context.Context, string) (container.InspectResponse, error) {
	return container.InspectResponse{}, nil
}
func (s *stubEngine) StopContainer(context.Context, string, int) error  { return nil }
func (s *stubEngine) RemoveContainer(context.Context, string, bool) error { return nil }
func (s *stubEngine) CreateContainer(context.Context, string, dockerengine.ContainerSpec) (string, error) {
	return "", nil
}
func (s *stubEngine) StartContainer(context.Context, string) error { return nil }
func (s *stubEngine) ListImages(context.Context, bool) ([]dockerengine.ImageSummary, error) {
	return nil, nil
}

func (s *stubEngine) InspectImage(_ context.Context, ref string) (dockerengine.ImageSummary, error) {
	img, ok := s.images[ref]
	if !ok {
		return dockerengine.ImageSummary{}, &dockerengine.EngineError{Kind: dockerengine.KindNotFound}
	}
	return img, nil
}

func (s *stubEngine) Pull(_ context.Context, _, _ string, _ func(dockerengine.PullEvent)) error {
	if s.pullErr != nil {
		return s.pullErr
	}
	if s.afterPull != nil {
		s.images = s.afterPull
	}
	return nil
}

func (s *stubEngine) TagImage(context.Context, string, string, string, bool) error { return nil }
func (s *stubEngine) DeleteImage(context.Context, string, bool) error              { return nil }
func (s *stubEngine) Ping(context.Context) error                                  { return nil }
func (s *stubEngine) Close() error                                                { return nil }

var _ dockerengine.API = (*stubEngine)(nil)

func TestHasNewerSkipsDigestPinnedReferences(t *testing.T) {
	eng := &stubEngine{}
	o := NewOracle(eng, logging.New(false))

	ref, err := reference.Parse("myrepo/app@sha256:" + "a00000000000000000000000000000000000000000000000000000000000")
	if err != nil {
		t.Fatal(err)
	}

	result, err := o.HasNewer(context.Background(), ref)
	if err != nil {
		t.Fatal(err)
	}
	if result.HasNewer {
		t.Error("a digest-pinned reference must never report an update")
	}
}

func TestHasNewerReportsFirstPullAsNewer(t *testing.T) {
	eng := &stubEngine{images: map[string]dockerengine.ImageSummary{}}
	o := NewOracle(eng, logging.New(false))

	ref, _ := reference.Parse("myrepo/app:1.0")
	result, err := o.HasNewer(context.Background(), ref)
	if err != nil {
		t.Fatal(err)
	}
	if !result.HasNewer || !result.FirstPull {
		t.Errorf("first pull should report HasNewer=true, FirstPull=true, got %+v", result)
	}
}

func TestHasNewerDetectsChangedDigest(t *testing.T) {
	before := dockerengine.ImageSummary{ID: "sha256:old", RepoDigests: []string{"myrepo/app@sha256:old"}}
	after := dockerengine.ImageSummary{ID: "sha256:new", RepoDigests: []string{"myrepo/app@sha256:new"}}

	eng := &stubEngine{
		images:    map[string]dockerengine.ImageSummary{"myrepo/app:1.0": before},
		afterPull: map[string]dockerengine.ImageSummary{"myrepo/app:1.0": after},
	}
	o := NewOracle(eng, logging.New(false))

	ref, _ := reference.Parse("myrepo/app:1.0")
	result, err := o.HasNewer(context.Background(), ref)
	if err != nil {
		t.Fatal(err)
	}
	if !result.HasNewer {
		t.Error("expected a changed digest after pull to report an update")
	}
	if result.OldID != "sha256:old" || result.NewID != "sha256:new" {
		t.Errorf("OldID/NewID = %q/%q, want sha256:old/sha256:new", result.OldID, result.NewID)
	}
}

func TestHasNewerNoChangeReportsNoUpdate(t *testing.T) {
	same := dockerengine.ImageSummary{ID: "sha256:same", RepoDigests: []string{"myrepo/app@sha256:same"}}
	eng := &stubEngine{images: map[string]dockerengine.ImageSummary{"myrepo/app:1.0": same}}
	o := NewOracle(eng, logging.New(false))

	ref, _ := reference.Parse("myrepo/app:1.0")
	result, err := o.HasNewer(context.Background(), ref)
	if err != nil {
		t.Fatal(err)
	}
	if result.HasNewer {
		t.Errorf("expected no update when the image is unchanged, got %+v", result)
	}
}
