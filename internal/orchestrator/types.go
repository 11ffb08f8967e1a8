// Package orchestrator talks to a Portainer instance: the "Orchestrator
// Gateway" that lets the update engine discover stacks and containers
// across Portainer-managed Docker environments and trigger redeploys.
package orchestrator

import (
	"errors"
)

// ErrManifestNotFound is returned by GetManifest when the stack has no
// compose file content on record (e.g. a Swarm stack created outside
// Portainer, or a stack ID that no longer exists).
var ErrManifestNotFound = errors.New("orchestrator: manifest not found")

// EndpointType mirrors Portainer's endpoint type enum.
type EndpointType int

const (
	EndpointDocker      EndpointType = 1
	EndpointAgentDocker EndpointType = 2
	EndpointAzure       EndpointType = 3
	EndpointEdgeAgent   EndpointType = 4
	EndpointKubernetes  EndpointType = 5
	EndpointEdgeK8s     EndpointType = 7
)

// EndpointStatus mirrors Portainer's endpoint status.
type EndpointStatus int

const (
	StatusUp   EndpointStatus = 1
	StatusDown EndpointStatus = 2
)

// Endpoint represents a Portainer-managed environment.
type Endpoint struct {
	ID     int            `json:"Id"`
	Name   string         `json:"Name"`
	URL    string         `json:"URL"`
	Type   EndpointType   `json:"Type"`
	Status EndpointStatus `json:"Status"`
}

// IsDocker reports whether this endpoint is a Docker environment the
// update engine can scan.
func (e Endpoint) IsDocker() bool {
	return e.Type == EndpointDocker || e.Type == EndpointAgentDocker || e.Type == EndpointEdgeAgent
}

// StackType mirrors Portainer's stack type enum. Only StackSwarm and
// StackCompose stacks carry a docker-compose manifest; StackKubernetes
// stacks are skipped entirely (spec §4.E.2 — Kubernetes is out of scope).
type StackType int

const (
	StackSwarm      StackType = 1
	StackCompose    StackType = 2
	StackKubernetes StackType = 3
)

// Stack represents a Portainer stack.
type Stack struct {
	ID         int       `json:"Id"`
	Name       string    `json:"Name"`
	Type       StackType `json:"Type"`
	EndpointID int       `json:"EndpointId"`
	Status     int       `json:"Status"`
	Env        []EnvVar  `json:"Env"`
}

// EnvVar is a key-value pair for stack environment variables.
type EnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Container is a simplified container from Portainer's Docker proxy.
type Container struct {
	ID      string            `json:"Id"`
	Names   []string          `json:"Names"`
	Image   string            `json:"Image"`
	ImageID string            `json:"ImageID"`
	State   string            `json:"State"`
	Status  string            `json:"Status"`
	Labels  map[string]string `json:"Labels"`
	Created int64             `json:"Created"`
}

// Name returns the container name without the leading slash.
func (c Container) Name() string {
	if len(c.Names) == 0 {
		return ""
	}
	name := c.Names[0]
	if len(name) > 0 && name[0] == '/' {
		return name[1:]
	}
	return name
}

// StackName returns the compose project name from labels, or empty for a
// standalone container.
func (c Container) StackName() string {
	return c.Labels["com.docker.compose.project"]
}

// StackRedeploy is the request body for PUT /api/stacks/{id}. The update
// engine always redeploys with PullImage and Prune set, so a stack
// redeploy both pulls fresh images and removes containers and images the
// new compose file no longer references (spec §4.E.2).
type StackRedeploy struct {
	Env       []EnvVar `json:"env"`
	PullImage bool     `json:"pullImage"`
	Prune     bool     `json:"prune"`
}

// manifestResponse is Portainer's GET /api/stacks/{id}/file response body.
type manifestResponse struct {
	StackFileContent string `json:"StackFileContent"`
}

// authRequest is the body for POST /api/auth (username/password login).
type authRequest struct {
	Username string `json:"Username"`
	Password string `json:"Password"`
}

// authResponse is the body Portainer returns from a successful login.
type authResponse struct {
	JWT string `json:"jwt"`
}
