package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/complianceops/escalation-engine/pkg/escalation"
)

type ChainService struct {
	client *Client
}

func (c *Client) Chains() *ChainService {
	return &ChainService{client: c}
}

type ChainListOptions struct {
	ActiveOnly bool
}

func (s *ChainService) List(ctx context.Context, opts ChainListOptions) ([]escalation.ChainDefinition, error) {
	endpoint := "api/chains"
	params := url.Values{}
	if opts.ActiveOnly {
		params.Set("active", "true")
	}
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	var chains []escalation.ChainDefinition
	if err := s.client.do(ctx, http.MethodGet, endpoint, nil, &chains); err != nil {
		return nil, err
	}
	return chains, nil
}

func (s *ChainService) Get(ctx context.Context, id string) (*escalation.ChainDefinition, error) {
	var chain escalation.ChainDefinition
	if err := s.client.do(ctx, http.MethodGet, "api/chains/"+url.PathEscape(id), nil, &chain); err != nil {
		return nil, err
	}
	return &chain, nil
}

func (s *ChainService) Create(ctx context.Context, chain *escalation.ChainDefinition) (*escalation.ChainDefinition, error) {
	var created escalation.ChainDefinition
	if err := s.client.do(ctx, http.MethodPost, "api/chains", chain, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *ChainService) Update(ctx context.Context, chain *escalation.ChainDefinition) (*escalation.ChainDefinition, error) {
	var updated escalation.ChainDefinition
	if err := s.client.do(ctx, http.MethodPut, "api/chains/"+url.PathEscape(chain.ID), chain, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *ChainService) Deactivate(ctx context.Context, id string) error {
	return s.client.do(ctx, http.MethodDelete, "api/chains/"+url.PathEscape(id), nil, nil)
}
