package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/complianceops/escalation-engine/pkg/audit"
)

type AuditService struct {
	client *Client
}

func (c *Client) Audit() *AuditService {
	return &AuditService{client: c}
}

// ForEvent returns the audit trail of an event in append order.
func (s *AuditService) ForEvent(ctx context.Context, eventID string) ([]audit.Entry, error) {
	var entries []audit.Entry
	if err := s.client.do(ctx, http.MethodGet, "api/audit/events/"+url.PathEscape(eventID), nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ForChain returns the administrative audit trail of a chain.
func (s *AuditService) ForChain(ctx context.Context, chainID string) ([]audit.Entry, error) {
	var entries []audit.Entry
	if err := s.client.do(ctx, http.MethodGet, "api/audit/chains/"+url.PathEscape(chainID), nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
