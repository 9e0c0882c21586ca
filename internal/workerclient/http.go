package workerclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// StatusResponse is the body of GET /is_active
type StatusResponse struct {
	UUID   string `json:"uuid"`
	Status string `json:"status"`
}

// HTTPClient implements Client against the datanode HTTP API using fiber's client agent
type HTTPClient struct {
	timeout time.Duration
}

// NewHTTPClient creates a client with a per-request timeout
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{timeout: timeout}
}

func baseURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimSuffix(addr, "/")
	}
	return "http://" + addr
}

func chunkURL(addr, op, fileID string, chunkIndex int) string {
	return fmt.Sprintf("%s/%s/%s/%s", baseURL(addr), op, url.PathEscape(fileID), strconv.Itoa(chunkIndex))
}

func (c *HTTPClient) do(ctx context.Context, a *fiber.Agent) (int, []byte, error) {
	timeout, err := effectiveTimeout(ctx, c.timeout)
	if err != nil {
		fiber.ReleaseAgent(a)
		return 0, nil, fmt.Errorf("%w: %v", ErrWorkerUnavailable, err)
	}
	a.Timeout(timeout)
	code, body, errs := a.Bytes()
	if len(errs) > 0 {
		return 0, nil, fmt.Errorf("%w: %v", ErrWorkerUnavailable, errors.Join(errs...))
	}
	return code, body, nil
}

// Probe asks the worker for its status. A 503 answer is a reachable but inactive worker.
func (c *HTTPClient) Probe(ctx context.Context, addr string) (ProbeResult, error) {
	code, body, err := c.do(ctx, fiber.Get(baseURL(addr)+"/is_active"))
	if err != nil {
		return ProbeResult{}, err
	}

	var st StatusResponse
	_ = json.Unmarshal(body, &st)

	switch code {
	case fiber.StatusOK:
		return ProbeResult{NodeID: st.UUID, Active: st.Status == "" || st.Status == "active"}, nil
	case fiber.StatusServiceUnavailable:
		return ProbeResult{NodeID: st.UUID, Active: false}, nil
	default:
		return ProbeResult{}, fmt.Errorf("%w: probe status %d", ErrWorkerUnavailable, code)
	}
}

// Put stores a chunk on the worker
func (c *HTTPClient) Put(ctx context.Context, addr, fileID string, chunkIndex int, data []byte) error {
	a := fiber.Post(chunkURL(addr, "write_file", fileID, chunkIndex)).
		ContentType(fiber.MIMEOctetStream).
		Body(data)
	code, body, err := c.do(ctx, a)
	if err != nil {
		return err
	}
	if code != fiber.StatusOK && code != fiber.StatusCreated {
		return fmt.Errorf("%w: write status %d: %s", ErrWorkerUnavailable, code, truncate(body))
	}
	return nil
}

// Get fetches a chunk from the worker
func (c *HTTPClient) Get(ctx context.Context, addr, fileID string, chunkIndex int) ([]byte, error) {
	code, body, err := c.do(ctx, fiber.Get(chunkURL(addr, "read_file", fileID, chunkIndex)))
	if err != nil {
		return nil, err
	}
	switch code {
	case fiber.StatusOK:
		return body, nil
	case fiber.StatusNotFound:
		return nil, fmt.Errorf("%s/%d on %s: %w", fileID, chunkIndex, addr, ErrChunkNotFound)
	default:
		return nil, fmt.Errorf("%w: read status %d: %s", ErrWorkerUnavailable, code, truncate(body))
	}
}

// DeleteAll removes every chunk of a file from the worker
func (c *HTTPClient) DeleteAll(ctx context.Context, addr, fileID string) error {
	code, body, err := c.do(ctx, fiber.Post(baseURL(addr)+"/delete_chunks/"+url.PathEscape(fileID)))
	if err != nil {
		return err
	}
	if code != fiber.StatusOK {
		return fmt.Errorf("%w: delete status %d: %s", ErrWorkerUnavailable, code, truncate(body))
	}
	return nil
}

// SetActive toggles the worker's self-reported status through its admin route
func (c *HTTPClient) SetActive(ctx context.Context, addr string, active bool) error {
	payload, _ := json.Marshal(map[string]bool{"active": active})
	a := fiber.Post(baseURL(addr) + "/admin/status").
		ContentType(fiber.MIMEApplicationJSON).
		Body(payload)
	code, body, err := c.do(ctx, a)
	if err != nil {
		return err
	}
	if code != fiber.StatusOK {
		return fmt.Errorf("%w: status toggle %d: %s", ErrWorkerUnavailable, code, truncate(body))
	}
	return nil
}

func truncate(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
