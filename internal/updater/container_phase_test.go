package updater

import (
	"context"
	"testing"
	"time"

	"github.com/moby/moby/api/types/container"
)

func summaryContainer(id, name, image string) container.Summary {
	return container.Summary{ID: id, Names: []string{"/" + name}, Image: image}
}

func freshState(excludePatterns []string) *CycleState {
	return newCycleState(map[string]bool{}, excludePatterns)
}

func TestProcessContainerSkipsDigestPinnedImage(t *testing.T) {
	eng := newMockEngine()
	clk := newMockClock(time.Now())
	u := testUpdater(t, eng, clk)

	c := summaryContainer("c1", "app", "sha256:deadbeef")
	state := freshState(nil)
	result := &CycleResult{}

	u.processContainer(context.Background(), c, state, result)

	if len(result.Updates) != 0 || len(eng.tagCalls) != 0 {
		t.Fatalf("expected a bare sha256: image to be skipped untouched")
	}
}

func TestProcessContainerSkipsExcludedReference(t *testing.T) {
	eng := newMockEngine()
	clk := newMockClock(time.Now())
	u := testUpdater(t, eng, clk)

	c := summaryContainer("c1", "app", "myrepo/app:1.0")
	state := freshState([]string{"myrepo/app"})
	result := &CycleResult{}

	u.processContainer(context.Background(), c, state, result)

	if len(result.Updates) != 0 || len(eng.tagCalls) != 0 {
		t.Fatalf("expected an excluded image reference to be skipped")
	}
}

func TestProcessContainerSkipsIgnoredContainerName(t *testing.T) {
	eng := newMockEngine()
	clk := newMockClock(time.Now())
	u := testUpdater(t, eng, clk)

	c := summaryContainer("c1", "app", "myrepo/app:1.0")
	state := newCycleState(map[string]bool{"app": true}, nil)
	result := &CycleResult{}

	u.processContainer(context.Background(), c, state, result)

	if len(result.Updates) != 0 || len(eng.tagCalls) != 0 {
		t.Fatalf("expected a container previously rolled back to stay ignored")
	}
}

func TestProcessContainerSkipsStackOwnedRepository(t *testing.T) {
	eng := newMockEngine()
	clk := newMockClock(time.Now())
	u := testUpdater(t, eng, clk)

	c := summaryContainer("c1", "app", "myrepo/app:1.0")
	state := freshState(nil)
	state.StackRepos["myrepo/app"] = true
	result := &CycleResult{}

	u.processContainer(context.Background(), c, state, result)

	if len(result.Updates) != 0 || len(eng.tagCalls) != 0 {
		t.Fatalf("expected an image already handled by the Stack phase to be skipped")
	}
}

func TestProcessContainerUpdatesWhenNoSkipRuleMatches(t *testing.T) {
	eng := newMockEngine()
	eng.inspectResults["c1"] = baseSnapshot("myrepo/app:1.0")
	eng.inspectResults["new-app"] = container.InspectResponse{
		ID:    "new-app",
		Name:  "/app",
		State: &container.State{Running: true},
	}
	// No local copy of the image is known, so HasNewer reports a first
	// pull as an update without needing to fake an actual registry pull.
	clk := newMockClock(time.Now())
	u := testUpdater(t, eng, clk)

	c := summaryContainer("c1", "app", "myrepo/app:1.0")
	state := freshState(nil)
	result := &CycleResult{}

	u.processContainer(context.Background(), c, state, result)

	if len(result.Updates) != 1 {
		t.Fatalf("Updates = %d, want 1 (no skip rule applies)", len(result.Updates))
	}
	if len(eng.tagCalls) != 1 {
		t.Fatalf("expected the state machine's backup tag to run, tagCalls = %v", eng.tagCalls)
	}
}
