package ark

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zonemap/schoolzone-mapper/internal/extract"
)

// Client talks to an Ark-style (OpenAI-compatible) chat-completions API.
// It implements extract.Transport and extract.BlobTransport, and normalizes
// provider payload shapes at this boundary so the rest of the pipeline only
// ever sees completion strings and text deltas.
//
// The underlying HTTP client is built lazily on first use: configuration is
// validated exactly once, and concurrent first access is serialized.
type Client struct {
	cfg    Config
	logger *slog.Logger

	initOnce sync.Once
	initErr  error
	http     *http.Client
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	return &Client{cfg: cfg, logger: logger}
}

// ensure validates configuration and builds the HTTP client once.
func (c *Client) ensure() error {
	c.initOnce.Do(func() {
		if c.cfg.APIKey == "" {
			c.initErr = fmt.Errorf("ark: ARK_API_KEY is not set")
			return
		}
		c.http = &http.Client{Timeout: c.cfg.Timeout}
	})
	return c.initErr
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type chatDelta struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (c *Client) requestBody(req extract.Request, stream bool) map[string]any {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}
	body := map[string]any{
		"model": c.cfg.Model,
		"messages": []chatMessage{
			{Role: "user", Content: req.Prompt},
		},
		"max_tokens": maxTokens,
	}
	if req.Schema != nil {
		body["response_format"] = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "school_districts",
				"strict": true,
				"schema": req.Schema,
			},
		}
	}
	if stream {
		body["stream"] = true
	}
	return body
}

// Complete implements extract.Transport.
func (c *Client) Complete(ctx context.Context, req extract.Request) (string, error) {
	if err := c.ensure(); err != nil {
		return "", err
	}
	rid := uuid.New().String()
	start := time.Now()
	c.logger.Info("ark.complete.start", "req_id", rid, "model", c.cfg.Model, "prompt_len", len(req.Prompt))

	raw, err := c.post(ctx, "/chat/completions", c.requestBody(req, false))
	if err != nil {
		c.logger.Error("ark.complete.http_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}

	var cc chatCompletionResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("decode ark response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return "", fmt.Errorf("no choices in ark response")
	}
	c.logger.Info("ark.complete.ok", "req_id", rid,
		"finish_reason", cc.Choices[0].FinishReason,
		"content_len", len(cc.Choices[0].Message.Content),
		"elapsed_ms", time.Since(start).Milliseconds())
	return cc.Choices[0].Message.Content, nil
}

// Stream implements extract.Transport. Deltas arrive as SSE "data:" events;
// a "[DONE]" sentinel or stream close ends the sequence.
func (c *Client) Stream(ctx context.Context, req extract.Request, fn func(delta string) error) error {
	if err := c.ensure(); err != nil {
		return err
	}
	rid := uuid.New().String()
	start := time.Now()
	c.logger.Info("ark.stream.start", "req_id", rid, "model", c.cfg.Model, "prompt_len", len(req.Prompt))

	b, err := json.Marshal(c.requestBody(req, true))
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Error("ark.stream.http_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("ark.stream.body_close_error", "req_id", rid, "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ark status %d: %s", resp.StatusCode, buf.String())
	}

	deltas := 0
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}
		var d chatDelta
		if err := json.Unmarshal([]byte(payload), &d); err != nil {
			// Keep-alives and provider-specific frames are skipped.
			continue
		}
		if len(d.Choices) == 0 || d.Choices[0].Delta.Content == "" {
			continue
		}
		deltas++
		if err := fn(d.Choices[0].Delta.Content); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		c.logger.Error("ark.stream.read_error", "req_id", rid, "error", err,
			"deltas", deltas, "elapsed_ms", time.Since(start).Milliseconds())
		return fmt.Errorf("read stream: %w", err)
	}

	c.logger.Info("ark.stream.ok", "req_id", rid, "deltas", deltas,
		"elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// CompleteWithBlob implements extract.BlobTransport: upload the text as a
// virtual file, reference it in the prompt, and clean the file up afterward.
func (c *Client) CompleteWithBlob(ctx context.Context, req extract.Request, name string, blob []byte) (string, error) {
	if err := c.ensure(); err != nil {
		return "", err
	}
	rid := uuid.New().String()
	start := time.Now()
	c.logger.Info("ark.blob.start", "req_id", rid, "name", name, "size", len(blob))

	fileID, err := c.uploadFile(ctx, name, blob)
	if err != nil {
		return "", fmt.Errorf("upload blob: %w", err)
	}
	defer c.deleteFile(ctx, fileID, rid)

	body := c.requestBody(req, false)
	body["messages"] = []chatMessage{
		{Role: "system", Content: "已上传文件可用，file_id: " + fileID},
		{Role: "user", Content: req.Prompt},
	}

	raw, err := c.post(ctx, "/chat/completions", body)
	if err != nil {
		c.logger.Error("ark.blob.http_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}
	var cc chatCompletionResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("decode ark response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return "", fmt.Errorf("no choices in ark response")
	}
	c.logger.Info("ark.blob.ok", "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
	return cc.Choices[0].Message.Content, nil
}

func (c *Client) uploadFile(ctx context.Context, name string, blob []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(blob); err != nil {
		return "", err
	}
	if err := mw.WriteField("purpose", "context"); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+"/files", &buf)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ark files status %d: %s", resp.StatusCode, buf.String())
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("upload response carries no file id")
	}
	return out.ID, nil
}

// deleteFile is best effort; a leaked remote file is not worth failing over.
func (c *Client) deleteFile(ctx context.Context, fileID, rid string) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		strings.TrimRight(c.cfg.BaseURL, "/")+"/files/"+fileID, nil)
	if err != nil {
		return
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Warn("ark.blob.delete_failed", "req_id", rid, "file_id", fileID, "error", err)
		return
	}
	_ = resp.Body.Close()
}

func (c *Client) post(ctx context.Context, path string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ark http error: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(io.LimitReader(resp.Body, 8192))
		return nil, fmt.Errorf("ark status %d: %s", resp.StatusCode, buf.String())
	}
	out := new(bytes.Buffer)
	if _, err := out.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
