// Package e2e drives a running citebroker through godog feature files.
package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cucumber/godog"

	"citebroker/e2e/steps/resolve"
)

// TestContext holds the last response of a scenario.
type TestContext struct {
	baseURL string
	client  *http.Client

	status int
	body   []byte
}

func NewTestContext(baseURL string) *TestContext {
	return &TestContext{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (tc *TestContext) reset() {
	tc.status = 0
	tc.body = nil
}

// GET fetches path and keeps the whole response.
func (tc *TestContext) GET(path string, headers map[string]string) error {
	req, err := http.NewRequest(http.MethodGet, tc.baseURL+path, nil)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	tc.status = resp.StatusCode
	tc.body, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) StatusCode() int { return tc.status }

// JSON decodes the last response as a single document.
func (tc *TestContext) JSON() (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(tc.body, &doc); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return doc, nil
}

// Lines decodes the last response as newline-delimited documents.
func (tc *TestContext) Lines() ([]map[string]any, error) {
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(tc.body))
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var doc map[string]any
		if err := json.Unmarshal(line, &doc); err != nil {
			return nil, fmt.Errorf("decode line %q: %w", line, err)
		}
		out = append(out, doc)
	}
	return out, sc.Err()
}

// RegisterSteps registers the shared steps and every feature's steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})
	ctx.Step(`^the response status should be (\d+)$`, func(code int) error {
		if tc.status != code {
			return fmt.Errorf("expected status %d, got %d: %s", code, tc.status, tc.body)
		}
		return nil
	})

	resolve.RegisterSteps(ctx, tc)
}
