package openai

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/nstogner/labassist/pkg/domain"
)

type fileObject struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"created_at"`
	Filename  string `json:"filename"`
	Purpose   string `json:"purpose"`
}

// UploadFile streams r as a multipart upload.
func (c *Client) UploadFile(ctx context.Context, name string, r io.Reader, purpose string) (string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := func() error {
			if err := mw.WriteField("purpose", purpose); err != nil {
				return err
			}
			part, err := mw.CreateFormFile("file", name)
			if err != nil {
				return err
			}
			if _, err := io.Copy(part, r); err != nil {
				return err
			}
			return mw.Close()
		}()
		pw.CloseWithError(err)
	}()

	resp, err := c.send(ctx, http.MethodPost, "/files", nil, pr, mw.FormDataContentType(), false)
	// Unblock the writer if the request ended before consuming the body.
	pr.CloseWithError(io.ErrClosedPipe)
	if err != nil {
		return "", remoteErr("upload file", domain.KindFile, name, err)
	}
	defer resp.Body.Close()

	var obj fileObject
	if err := decodeJSON(resp.Body, &obj); err != nil {
		return "", remoteErr("upload file", domain.KindFile, name, err)
	}
	return obj.ID, nil
}

func (c *Client) ListFiles(ctx context.Context) ([]domain.ResourceRecord, error) {
	items, err := listAll(ctx, c, "/files", nil, func(f fileObject) string { return f.ID })
	if err != nil {
		return nil, remoteErr("list files", domain.KindFile, "", err)
	}
	records := make([]domain.ResourceRecord, 0, len(items))
	for _, f := range items {
		records = append(records, domain.ResourceRecord{
			Kind:      domain.KindFile,
			ID:        f.ID,
			CreatedAt: unixTime(f.CreatedAt),
			Purpose:   f.Purpose,
			Name:      f.Filename,
		})
	}
	return records, nil
}

func (c *Client) DeleteFile(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/files/"+url.PathEscape(id), nil, nil, nil); err != nil {
		return remoteErr("delete file", domain.KindFile, id, err)
	}
	return nil
}
