package updater

import (
	"context"
	"sync"
	"time"

	"github.com/moby/moby/api/types/container"

	"github.com/drydock/drydock/internal/dockerengine"
)

// mockEngine implements dockerengine.API for updater tests.
type mockEngine struct {
	mu sync.Mutex

	containers    []container.Summary
	containersErr error

	images    []dockerengine.ImageSummary
	imagesErr error

	inspectResults map[string]container.InspectResponse
	inspectErr     map[string]error

	stopCalls   []string
	removeCalls []string

	createCalls     []string
	createConfigs   map[string]*container.Config
	createErrOnCall map[int]error // 0-indexed call number -> error
	createSeq       []string      // IDs to hand back on successive CreateContainer calls
	createIdx       int

	startCalls []string
	startErr   error

	tagCalls []string
	tagErr   error

	deleteCalls []string
	deleteErr   error

	pullErr error
}

func newMockEngine() *mockEngine {
	return &mockEngine{
		inspectResults: make(map[string]container.InspectResponse),
		inspectErr:     make(map[string]error),
		createConfigs:  make(map[string]*container.Config),
	}
}

func (m *mockEngine) ListContainers(_ context.Context, _ bool) ([]container.Summary, error) {
	return m.containers, m.containersErr
}

func (m *mockEngine) ListContainersByLabel(_ context.Context, _, _ string) ([]container.Summary, error) {
	return m.containers, m.containersErr
}

func (m *mockEngine) InspectContainer(_ context.Context, id string) (container.InspectResponse, error) {
	if err, ok := m.inspectErr[id]; ok && err != nil {
		return container.InspectResponse{}, err
	}
	return m.inspectResults[id], nil
}

func (m *mockEngine) StopContainer(_ context.Context, id string, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls = append(m.stopCalls, id)
	return nil
}

func (m *mockEngine) RemoveContainer(_ context.Context, id string, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeCalls = append(m.removeCalls, id)
	return nil
}

func (m *mockEngine) CreateContainer(_ context.Context, name string, spec dockerengine.ContainerSpec) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := len(m.createCalls)
	m.createCalls = append(m.createCalls, name)
	m.createConfigs[name] = spec.Config
	if err, ok := m.createErrOnCall[idx]; ok {
		return "", err
	}
	if m.createIdx < len(m.createSeq) {
		id := m.createSeq[m.createIdx]
		m.createIdx++
		return id, nil
	}
	return "new-" + name, nil
}

func (m *mockEngine) StartContainer(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startCalls = append(m.startCalls, id)
	return m.startErr
}

func (m *mockEngine) ListImages(_ context.Context, _ bool) ([]dockerengine.ImageSummary, error) {
	return m.images, m.imagesErr
}

func (m *mockEngine) InspectImage(_ context.Context, ref string) (dockerengine.ImageSummary, error) {
	for _, img := range m.images {
		for _, rt := range img.RepoTags {
			if rt == ref {
				return img, nil
			}
		}
	}
	return dockerengine.ImageSummary{}, &dockerengine.EngineError{Kind: dockerengine.KindNotFound}
}

func (m *mockEngine) Pull(_ context.Context, _, _ string, _ func(dockerengine.PullEvent)) error {
	return m.pullErr
}

func (m *mockEngine) TagImage(_ context.Context, id, repo, tag string, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tagCalls = append(m.tagCalls, id+"->"+repo+":"+tag)
	return m.tagErr
}

func (m *mockEngine) DeleteImage(_ context.Context, ref string, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls = append(m.deleteCalls, ref)
	return m.deleteErr
}

func (m *mockEngine) Ping(_ context.Context) error { return nil }
func (m *mockEngine) Close() error                 { return nil }

var _ dockerengine.API = (*mockEngine)(nil)

// mockClock is a deterministic clock.Clock for tests: Now is fixed unless
// advanced, and After fires immediately.
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock(now time.Time) *mockClock {
	return &mockClock{now: now}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func (c *mockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}
