package openai

import (
	"context"
	"net/http"
	"net/url"

	"github.com/nstogner/labassist/pkg/domain"
)

type threadMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type createThreadRequest struct {
	Messages []threadMessage `json:"messages"`
}

func (c *Client) CreateThread(ctx context.Context, userMessage string) (string, error) {
	req := createThreadRequest{Messages: []threadMessage{{Role: "user", Content: userMessage}}}
	var resp objectResponse
	if err := c.doJSON(ctx, http.MethodPost, "/threads", nil, req, &resp); err != nil {
		return "", remoteErr("create thread", domain.KindThread, "", err)
	}
	return resp.ID, nil
}

func (c *Client) DeleteThread(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/threads/"+url.PathEscape(id), nil, nil, nil); err != nil {
		return remoteErr("delete thread", domain.KindThread, id, err)
	}
	return nil
}

func (c *Client) ListThreads(ctx context.Context) ([]domain.ResourceRecord, error) {
	items, err := listAll(ctx, c, "/threads", nil, func(o objectResponse) string { return o.ID })
	if err != nil {
		return nil, remoteErr("list threads", domain.KindThread, "", err)
	}
	records := make([]domain.ResourceRecord, 0, len(items))
	for _, o := range items {
		records = append(records, domain.ResourceRecord{
			Kind:      domain.KindThread,
			ID:        o.ID,
			CreatedAt: unixTime(o.CreatedAt),
		})
	}
	return records, nil
}
