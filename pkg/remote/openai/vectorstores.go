package openai

import (
	"context"
	"net/http"
	"net/url"

	"github.com/nstogner/labassist/pkg/domain"
)

type vectorStoreObject struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"created_at"`
	Name      string `json:"name"`
}

type createVectorStoreRequest struct {
	Name    string   `json:"name"`
	FileIDs []string `json:"file_ids,omitempty"`
}

func (c *Client) CreateVectorStore(ctx context.Context, name string, fileIDs []string) (string, error) {
	var obj vectorStoreObject
	req := createVectorStoreRequest{Name: name, FileIDs: fileIDs}
	if err := c.doJSON(ctx, http.MethodPost, "/vector_stores", nil, req, &obj); err != nil {
		return "", remoteErr("create vector store", domain.KindVectorIndex, "", err)
	}
	return obj.ID, nil
}

func (c *Client) ListVectorStores(ctx context.Context) ([]domain.ResourceRecord, error) {
	items, err := listAll(ctx, c, "/vector_stores", nil, func(v vectorStoreObject) string { return v.ID })
	if err != nil {
		return nil, remoteErr("list vector stores", domain.KindVectorIndex, "", err)
	}
	records := make([]domain.ResourceRecord, 0, len(items))
	for _, v := range items {
		records = append(records, domain.ResourceRecord{
			Kind:      domain.KindVectorIndex,
			ID:        v.ID,
			CreatedAt: unixTime(v.CreatedAt),
			Name:      v.Name,
		})
	}
	return records, nil
}

func (c *Client) DeleteVectorStore(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/vector_stores/"+url.PathEscape(id), nil, nil, nil); err != nil {
		return remoteErr("delete vector store", domain.KindVectorIndex, id, err)
	}
	return nil
}
