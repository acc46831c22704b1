package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// apiError is a non-2xx reply from the daemon.
type apiError struct {
	Status int
	Code   string
	Msg    string
}

func (e *apiError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Msg)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Msg)
}

type client struct {
	http  *http.Client
	base  string
	token string
	out   io.Writer
}

func newClient(base, token string, out io.Writer) *client {
	return &client{
		http:  &http.Client{Timeout: 30 * time.Second},
		base:  base,
		token: token,
		out:   out,
	}
}

// do sends body as JSON (when non-nil) and returns the raw reply.
func (c *client) do(method, path string, body any) ([]byte, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.base+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var e struct {
			Code  string `json:"code"`
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return nil, &apiError{Status: resp.StatusCode, Code: e.Code, Msg: e.Error}
		}
		return nil, &apiError{Status: resp.StatusCode, Msg: string(bytes.TrimSpace(data))}
	}
	return data, nil
}

// call decodes the reply into out.
func (c *client) call(method, path string, body, out any) error {
	data, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// print writes the reply, pretty-printing JSON when possible.
func (c *client) print(method, path string, body any) error {
	data, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if json.Indent(&buf, data, "", "  ") == nil {
		_, _ = fmt.Fprintln(c.out, buf.String())
	} else {
		_, _ = fmt.Fprintln(c.out, string(data))
	}
	return nil
}
