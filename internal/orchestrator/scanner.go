package orchestrator

import (
	"context"
	"sync"
)

// ScannedContainer is a container enriched with endpoint and stack membership.
type ScannedContainer struct {
	ID           string
	Name         string
	Image        string
	ImageID      string
	State        string
	Labels       map[string]string
	EndpointID   int
	EndpointName string
	StackID      int    // 0 if standalone
	StackName    string // "" if standalone
}

// Scanner wraps Client and caches stack lookups for a single scan cycle,
// so enumerating containers across many endpoints does not re-list
// stacks once per endpoint (spec §4.E cycle-scoped state).
type Scanner struct {
	client *Client

	mu     sync.Mutex
	stacks []Stack
}

// NewScanner returns a Scanner backed by the given client.
func NewScanner(client *Client) *Scanner {
	return &Scanner{client: client}
}

// Client returns the underlying Portainer client.
func (s *Scanner) Client() *Client {
	return s.client
}

// ResetCache clears the cached stack list. Call at the start of each cycle.
func (s *Scanner) ResetCache() {
	s.mu.Lock()
	s.stacks = nil
	s.mu.Unlock()
}

// Endpoints returns Docker endpoints that are currently up.
func (s *Scanner) Endpoints(ctx context.Context) ([]Endpoint, error) {
	all, err := s.client.ListEndpoints(ctx)
	if err != nil {
		return nil, err
	}
	var out []Endpoint
	for _, ep := range all {
		if ep.IsDocker() && ep.Status == StatusUp {
			out = append(out, ep)
		}
	}
	return out, nil
}

// Stacks returns the cycle-cached stack list, restricted to Swarm and
// Compose types (Kubernetes stacks carry no image-bearing compose
// manifest and are skipped per spec §4.E.2).
func (s *Scanner) Stacks(ctx context.Context) ([]Stack, error) {
	all, err := s.cachedStacks(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Stack, 0, len(all))
	for _, st := range all {
		if st.Type == StackSwarm || st.Type == StackCompose {
			out = append(out, st)
		}
	}
	return out, nil
}

// EndpointContainers returns containers for the given endpoint, enriched
// with stack membership via the compose-project label.
func (s *Scanner) EndpointContainers(ctx context.Context, ep Endpoint) ([]ScannedContainer, error) {
	stacks, err := s.cachedStacks(ctx)
	if err != nil {
		return nil, err
	}

	projectToStack := make(map[string]Stack)
	for _, st := range stacks {
		if st.EndpointID == ep.ID {
			projectToStack[st.Name] = st
		}
	}

	raw, err := s.client.ListContainers(ctx, ep.ID)
	if err != nil {
		return nil, err
	}

	out := make([]ScannedContainer, 0, len(raw))
	for _, c := range raw {
		sc := ScannedContainer{
			ID:           c.ID,
			Name:         c.Name(),
			Image:        c.Image,
			ImageID:      c.ImageID,
			State:        c.State,
			Labels:       c.Labels,
			EndpointID:   ep.ID,
			EndpointName: ep.Name,
		}
		if project := c.StackName(); project != "" {
			if st, ok := projectToStack[project]; ok {
				sc.StackID = st.ID
				sc.StackName = st.Name
			}
		}
		out = append(out, sc)
	}
	return out, nil
}

// RedeployStack triggers a stack redeploy, preserving its recorded env vars.
func (s *Scanner) RedeployStack(ctx context.Context, stackID, endpointID int) error {
	stacks, err := s.cachedStacks(ctx)
	if err != nil {
		return err
	}
	var env []EnvVar
	for _, st := range stacks {
		if st.ID == stackID {
			env = st.Env
			break
		}
	}
	return s.client.RedeployStack(ctx, stackID, endpointID, env)
}

func (s *Scanner) cachedStacks(ctx context.Context) ([]Stack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stacks != nil {
		return s.stacks, nil
	}
	stacks, err := s.client.ListStacks(ctx)
	if err != nil {
		return nil, err
	}
	s.stacks = stacks
	return s.stacks, nil
}

