package qdrant

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// CreateSnapshot asks Qdrant to snapshot the collection and streams the
// snapshot archive back. The server-side copy is deleted once the
// returned reader is closed.
func (c *Client) CreateSnapshot(ctx context.Context) (io.ReadCloser, error) {
	var createResp struct {
		Result struct {
			Name string `json:"name"`
		} `json:"result"`
	}
	createURL := fmt.Sprintf("%s/collections/%s/snapshots", c.baseURL, c.collection)
	if err := c.postJSON(ctx, createURL, map[string]any{}, &createResp, "create snapshot"); err != nil {
		return nil, err
	}
	if createResp.Result.Name == "" {
		return nil, fmt.Errorf("qdrant create snapshot: empty snapshot name in response")
	}

	downloadURL := fmt.Sprintf("%s/collections/%s/snapshots/%s", c.baseURL, c.collection, createResp.Result.Name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create snapshot download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant snapshot download request: %w", err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, newHTTPStatusError("snapshot download", resp)
	}

	return &snapshotStream{
		body: resp.Body,
		cleanup: func() {
			c.deleteSnapshot(createResp.Result.Name)
		},
	}, nil
}

// RestoreSnapshot uploads a snapshot archive into the collection,
// replacing whatever the collection currently holds.
func (c *Client) RestoreSnapshot(ctx context.Context, snapshot io.Reader) error {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		part, err := writer.CreateFormFile("snapshot", c.collection+".snapshot")
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, snapshot); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	uploadURL := fmt.Sprintf("%s/collections/%s/snapshots/upload?priority=snapshot", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, pr)
	if err != nil {
		return fmt.Errorf("create snapshot upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant snapshot upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return newHTTPStatusError("snapshot upload", resp)
	}
	return nil
}

func (c *Client) deleteSnapshot(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	deleteURL := fmt.Sprintf("%s/collections/%s/snapshots/%s", c.baseURL, c.collection, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, deleteURL, nil)
	if err != nil {
		return
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return
	}
	_ = resp.Body.Close()
}

type snapshotStream struct {
	body    io.ReadCloser
	cleanup func()
}

func (s *snapshotStream) Read(p []byte) (int, error) {
	return s.body.Read(p)
}

func (s *snapshotStream) Close() error {
	err := s.body.Close()
	if s.cleanup != nil {
		s.cleanup()
		s.cleanup = nil
	}
	return err
}
