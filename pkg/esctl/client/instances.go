package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/complianceops/escalation-engine/pkg/escalation"
)

type InstanceService struct {
	client *Client
}

func (c *Client) Instances() *InstanceService {
	return &InstanceService{client: c}
}

type SnoozeRequest struct {
	Hours  int    `json:"hours"`
	Reason string `json:"reason"`
}

type ResolveRequest struct {
	Notes string `json:"notes"`
}

func (s *InstanceService) List(ctx context.Context) ([]escalation.Instance, error) {
	var instances []escalation.Instance
	if err := s.client.do(ctx, http.MethodGet, "api/instances", nil, &instances); err != nil {
		return nil, err
	}
	return instances, nil
}

func (s *InstanceService) GetByEvent(ctx context.Context, eventID string) (*escalation.Instance, error) {
	var inst escalation.Instance
	if err := s.client.do(ctx, http.MethodGet, "api/instances/"+url.PathEscape(eventID), nil, &inst); err != nil {
		return nil, err
	}
	return &inst, nil
}

func (s *InstanceService) Snooze(ctx context.Context, eventID string, req SnoozeRequest) (*escalation.Instance, error) {
	var inst escalation.Instance
	if err := s.client.do(ctx, http.MethodPost, "api/instances/"+url.PathEscape(eventID)+"/snooze", req, &inst); err != nil {
		return nil, err
	}
	return &inst, nil
}

func (s *InstanceService) CancelSnooze(ctx context.Context, eventID string) (*escalation.Instance, error) {
	var inst escalation.Instance
	if err := s.client.do(ctx, http.MethodPost, "api/instances/"+url.PathEscape(eventID)+"/cancel-snooze", struct{}{}, &inst); err != nil {
		return nil, err
	}
	return &inst, nil
}

func (s *InstanceService) Resolve(ctx context.Context, eventID string, req ResolveRequest) (*escalation.Instance, error) {
	var inst escalation.Instance
	if err := s.client.do(ctx, http.MethodPost, "api/instances/"+url.PathEscape(eventID)+"/resolve", req, &inst); err != nil {
		return nil, err
	}
	return &inst, nil
}
