package firecrest

import (
	"context"

	"github.com/firecrest-hpc/firecrest_sdk_go/internal/fcapi"
)

// Service describes one FirecREST microservice and its availability.
type Service struct {
	Service     string `json:"service"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// System describes one cluster reachable through the deployment.
type System struct {
	System      string `json:"system"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// Parameter is one entry of the deployment's configuration listing.
type Parameter struct {
	Name  string `json:"name"`
	Unit  string `json:"unit"`
	Value any    `json:"value"`
}

// AllServices returns every available microservice with its status.
func (c *Client) AllServices(ctx context.Context) ([]Service, error) {
	body, err := c.get(ctx, "/status/services", nil, nil)
	if err != nil {
		return nil, err
	}
	var out []Service
	if err := fcapi.DecodeOut(body, &out); err != nil {
		return nil, &RequestError{Op: "GET /status/services", Err: err}
	}
	return out, nil
}

// Service returns information about a single microservice.
func (c *Client) Service(ctx context.Context, name string) (*Service, error) {
	body, err := c.get(ctx, "/status/services/"+name, nil, nil)
	if err != nil {
		return nil, err
	}
	var out Service
	if err := fcapi.DecodeOut(body, &out); err != nil {
		return nil, &RequestError{Op: "GET /status/services/" + name, Err: err}
	}
	return &out, nil
}

// AllSystems returns every system with its availability.
func (c *Client) AllSystems(ctx context.Context) ([]System, error) {
	body, err := c.get(ctx, "/status/systems", nil, nil)
	if err != nil {
		return nil, err
	}
	var out []System
	if err := fcapi.DecodeOut(body, &out); err != nil {
		return nil, &RequestError{Op: "GET /status/systems", Err: err}
	}
	return out, nil
}

// System returns information about a single system.
func (c *Client) System(ctx context.Context, name string) (*System, error) {
	body, err := c.get(ctx, "/status/systems/"+name, nil, nil)
	if err != nil {
		return nil, err
	}
	var out System
	if err := fcapi.DecodeOut(body, &out); err != nil {
		return nil, &RequestError{Op: "GET /status/systems/" + name, Err: err}
	}
	return &out, nil
}

// Parameters returns the deployment configuration grouped per microservice.
func (c *Client) Parameters(ctx context.Context) (map[string][]Parameter, error) {
	body, err := c.get(ctx, "/status/parameters", nil, nil)
	if err != nil {
		return nil, err
	}
	var out map[string][]Parameter
	if err := fcapi.DecodeOut(body, &out); err != nil {
		return nil, &RequestError{Op: "GET /status/parameters", Err: err}
	}
	return out, nil
}
