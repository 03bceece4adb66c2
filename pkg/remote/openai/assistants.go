package openai

import (
	"context"
	"net/http"
	"net/url"

	"github.com/nstogner/labassist/pkg/domain"
)

type toolSpec struct {
	Type string `json:"type"`
}

type fileSearchResources struct {
	VectorStoreIDs []string `json:"vector_store_ids"`
}

type toolResources struct {
	FileSearch *fileSearchResources `json:"file_search,omitempty"`
}

// assistantRequest carries every field on create and on update so that an
// update fully replaces the remote definition.
type assistantRequest struct {
	Name          string         `json:"name"`
	Model         string         `json:"model"`
	Instructions  string         `json:"instructions"`
	Tools         []toolSpec     `json:"tools"`
	ToolResources *toolResources `json:"tool_resources,omitempty"`
	Temperature   float64        `json:"temperature"`
	TopP          float64        `json:"top_p"`
}

type objectResponse struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"created_at"`
}

func toAssistantRequest(cfg domain.AssistantConfig) assistantRequest {
	req := assistantRequest{
		Name:         cfg.Name,
		Model:        cfg.Model,
		Instructions: cfg.Instructions,
		Tools:        make([]toolSpec, 0, len(cfg.Tools)),
		Temperature:  cfg.Temperature,
		TopP:         cfg.TopP,
	}
	fileSearch := false
	for _, t := range cfg.Tools {
		req.Tools = append(req.Tools, toolSpec{Type: t})
		if t == domain.ToolFileSearch {
			fileSearch = true
		}
	}
	if fileSearch {
		ids := cfg.VectorStoreIDs
		if ids == nil {
			ids = []string{}
		}
		req.ToolResources = &toolResources{FileSearch: &fileSearchResources{VectorStoreIDs: ids}}
	}
	return req
}

func (c *Client) CreateAssistant(ctx context.Context, cfg domain.AssistantConfig) (string, error) {
	var resp objectResponse
	if err := c.doJSON(ctx, http.MethodPost, "/assistants", nil, toAssistantRequest(cfg), &resp); err != nil {
		return "", remoteErr("create assistant", domain.KindAssistant, "", err)
	}
	return resp.ID, nil
}

func (c *Client) UpdateAssistant(ctx context.Context, id string, cfg domain.AssistantConfig) error {
	if err := c.doJSON(ctx, http.MethodPost, "/assistants/"+url.PathEscape(id), nil, toAssistantRequest(cfg), nil); err != nil {
		return remoteErr("update assistant", domain.KindAssistant, id, err)
	}
	return nil
}

func (c *Client) DeleteAssistant(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/assistants/"+url.PathEscape(id), nil, nil, nil); err != nil {
		return remoteErr("delete assistant", domain.KindAssistant, id, err)
	}
	return nil
}
