package kinds

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cloudchain/taskengine/internal/resilience"
	"github.com/cloudchain/taskengine/internal/task"
)

func init() {
	task.Register("http", newHTTPRunner)
}

// httpRunner performs a single templated HTTP call, mirroring the original
// source's HttpTask (minus auth/cert/verify, which need no analogue for
// the generic illustration this kind provides per SPEC_FULL.md §5).
// Transport retries run through internal/resilience, independent of the
// task-level retry policy in internal/task/retry.go.
type httpRunner struct {
	url     string
	method  string
	headers map[string]string
	data    map[string]any
}

func newHTTPRunner(cfg map[string]any) (task.Runner, error) {
	url, _ := cfg["url"].(string)
	if url == "" {
		return nil, fmt.Errorf("http: url is required")
	}

	method, _ := cfg["method"].(string)
	if method == "" {
		method = "get"
	}

	headers := map[string]string{}
	if h, ok := cfg["headers"].(map[string]any); ok {
		for k, v := range h {
			headers[k] = fmt.Sprint(v)
		}
	}
	headers["User-Agent"] = "taskengine"

	data, _ := cfg["data"].(map[string]any)

	return &httpRunner{url: url, method: strings.ToUpper(method), headers: headers, data: data}, nil
}

func (r *httpRunner) Method(ctx context.Context, t *task.Task) (any, error) {
	body, err := json.Marshal(r.data)
	if err != nil {
		return nil, fmt.Errorf("http: encoding request body: %w", err)
	}

	resp, err := resilience.Retry(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, r.method, r.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		for k, v := range r.headers {
			req.Header.Set(k, v)
		}
		return http.DefaultClient.Do(req)
	}, 3)
	if err != nil {
		return nil, fmt.Errorf("http: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("http: reading response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("http: %s %s returned status %d", r.method, r.url, resp.StatusCode)
	}

	var decoded any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			decoded = string(raw)
		}
	}

	return decoded, nil
}
