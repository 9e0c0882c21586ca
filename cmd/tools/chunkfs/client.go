package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/soltixdb/chunkfs/internal/models"
)

// apiClient talks to the namenode HTTP API
type apiClient struct {
	server  string
	timeout time.Duration
}

func newAPIClient(server string, timeout time.Duration) *apiClient {
	if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
		server = "http://" + server
	}
	return &apiClient{server: strings.TrimSuffix(server, "/"), timeout: timeout}
}

// apiError is a non-2xx answer of the namenode
type apiError struct {
	Status int
	Detail models.ErrorDetail
}

func (e *apiError) Error() string {
	if e.Detail.Code == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	if cls, ok := e.Detail.Details["classification"]; ok {
		return fmt.Sprintf("%s (%v, %d): %s", e.Detail.Code, cls, e.Status, e.Detail.Message)
	}
	return fmt.Sprintf("%s (%d): %s", e.Detail.Code, e.Status, e.Detail.Message)
}

func (c *apiClient) send(a *fiber.Agent) ([]byte, error) {
	a.Timeout(c.timeout)
	code, body, errs := a.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("request to %s failed: %w", c.server, errs[0])
	}
	if code < 200 || code > 299 {
		var resp models.ErrorResponse
		_ = json.Unmarshal(body, &resp)
		return nil, &apiError{Status: code, Detail: resp.Error}
	}
	return body, nil
}

func (c *apiClient) get(path string, query url.Values, out interface{}) error {
	target := c.server + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	body, err := c.send(fiber.Get(target))
	if err != nil {
		return err
	}
	return decode(body, out)
}

func (c *apiClient) postForm(path string, values url.Values, out interface{}) error {
	body, err := c.postFormRaw(path, values)
	if err != nil {
		return err
	}
	return decode(body, out)
}

func (c *apiClient) postFormRaw(path string, values url.Values) ([]byte, error) {
	a := fiber.Post(c.server+path).
		ContentType(fiber.MIMEApplicationForm).
		BodyString(values.Encode())
	return c.send(a)
}

func (c *apiClient) upload(name, dir string, chunks int, data []byte) (*models.UploadResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	_ = w.WriteField("number_of_chunks", fmt.Sprint(chunks))
	_ = w.WriteField("directory_path", dir)
	if err := w.Close(); err != nil {
		return nil, err
	}

	a := fiber.Post(c.server+"/upload_file").
		ContentType(w.FormDataContentType()).
		Body(buf.Bytes())
	body, err := c.send(a)
	if err != nil {
		return nil, err
	}
	var resp models.UploadResponse
	return &resp, decode(body, &resp)
}

func decode(body []byte, out interface{}) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
