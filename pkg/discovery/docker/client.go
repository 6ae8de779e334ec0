package docker

import (
	"context"
	"fmt"
	"strconv"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/jihwankim/nomos-harness/pkg/discovery"
)

// Client wraps the Docker API client for discovering Compose-managed node
// containers by label, the one discovery mechanism this domain needs (no
// Kurtosis enclave, no by-name/by-ID lookup is used anywhere in the
// harness).
type Client struct {
	cli *client.Client
}

// New creates a new Docker client
func New() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	return &Client{cli: cli}, nil
}

// Close closes the Docker client connection
func (c *Client) Close() error {
	if c.cli != nil {
		return c.cli.Close()
	}
	return nil
}

// GetClient returns the underlying Docker API client
func (c *Client) GetClient() *client.Client {
	return c.cli
}

// GetContainersByLabel finds containers matching label filters
func (c *Client) GetContainersByLabel(ctx context.Context, labels map[string]string) ([]*discovery.Service, error) {
	f := buildLabelFilters(labels)

	containers, err := c.cli.ContainerList(ctx, types.ContainerListOptions{
		Filters: f,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	services := make([]*discovery.Service, 0, len(containers))
	for _, ctr := range containers {
		svc, err := c.containerToService(ctx, ctr)
		if err != nil {
			// Log warning but continue
			fmt.Printf("Warning: failed to convert container %s: %v\n", ctr.ID[:12], err)
			continue
		}
		services = append(services, svc)
	}

	return services, nil
}

// Helper function to convert types.Container to Service
func (c *Client) containerToService(ctx context.Context, ctr types.Container) (*discovery.Service, error) {
	// Get full container details
	inspectData, err := c.cli.ContainerInspect(ctx, ctr.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect container: %w", err)
	}

	return c.inspectToService(inspectData)
}

// Helper function to convert inspect data to Service
func (c *Client) inspectToService(ctr types.ContainerJSON) (*discovery.Service, error) {
	svc := &discovery.Service{
		ContainerID:   ctr.ID[:12], // Short ID
		ContainerName: ctr.Name,
		NetworkMode:   string(ctr.HostConfig.NetworkMode),
		PID:           ctr.State.Pid,
		Labels:        ctr.Config.Labels,
		Ports:         make(map[string]uint16),
	}

	// Extract name (remove leading '/')
	if len(ctr.Name) > 0 && ctr.Name[0] == '/' {
		svc.Name = ctr.Name[1:]
	} else {
		svc.Name = ctr.Name
	}

	// Get IP address (try to get from first network)
	if len(ctr.NetworkSettings.Networks) > 0 {
		for _, network := range ctr.NetworkSettings.Networks {
			svc.IP = network.IPAddress
			break
		}
	}

	// Extract ports
	for port, bindings := range ctr.NetworkSettings.Ports {
		if len(bindings) > 0 {
			portNum, err := strconv.Atoi(bindings[0].HostPort)
			if err == nil {
				svc.Ports[string(port)] = uint16(portNum)
			}
		}
	}

	return svc, nil
}

// Helper to build Docker API filters from label map
func buildLabelFilters(labels map[string]string) filters.Args {
	f := filters.NewArgs()
	for key, value := range labels {
		if value == "" {
			f.Add("label", key)
		} else {
			f.Add("label", fmt.Sprintf("%s=%s", key, value))
		}
	}
	return f
}
