package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/complianceops/escalation-engine/pkg/escalation"
)

type EventService struct {
	client *Client
}

func (c *Client) Events() *EventService {
	return &EventService{client: c}
}

type EventListOptions struct {
	OpenOnly bool
}

func (s *EventService) List(ctx context.Context, opts EventListOptions) ([]escalation.DeadlineEvent, error) {
	endpoint := "api/events"
	params := url.Values{}
	if opts.OpenOnly {
		params.Set("open", "true")
	}
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	var events []escalation.DeadlineEvent
	if err := s.client.do(ctx, http.MethodGet, endpoint, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *EventService) Get(ctx context.Context, id string) (*escalation.DeadlineEvent, error) {
	var event escalation.DeadlineEvent
	if err := s.client.do(ctx, http.MethodGet, "api/events/"+url.PathEscape(id), nil, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (s *EventService) Put(ctx context.Context, event *escalation.DeadlineEvent) (*escalation.DeadlineEvent, error) {
	var saved escalation.DeadlineEvent
	if err := s.client.do(ctx, http.MethodPut, "api/events/"+url.PathEscape(event.ID), event, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// Evaluate triggers a one-off evaluation of the event. A nil instance
// means the event is not overdue and nothing was created.
func (s *EventService) Evaluate(ctx context.Context, id string) (*escalation.Instance, error) {
	var inst escalation.Instance
	if err := s.client.do(ctx, http.MethodPost, "api/events/"+url.PathEscape(id)+"/evaluate", nil, &inst); err != nil {
		return nil, err
	}
	if inst.ID == "" {
		return nil, nil
	}
	return &inst, nil
}
