// Package identity resolves a CPF to the holder's name through a third-party lookup service.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/frahmantamala/pix-deposit/internal/taxid"
)

var (
	ErrNotFound   = errors.New("cpf not found")
	ErrInvalidCPF = errors.New("invalid cpf")
)

type Config struct {
	BaseURL string
	Token   string
	Package string
	Timeout time.Duration
}

type Client struct {
	http   *resty.Client
	token  string
	pkg    string
	logger *slog.Logger
}

type lookupResponse struct {
	Name   string `json:"nome"`
	Status int    `json:"status"`
	Error  string `json:"erro"`
}

func NewClient(config Config, logger *slog.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pkg := config.Package
	if pkg == "" {
		pkg = "2"
	}

	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		token:  config.Token,
		pkg:    pkg,
		logger: logger,
	}
}

// LookupName returns the name registered for cpf. Numbers with wrong check
// digits are rejected locally without calling the service.
func (c *Client) LookupName(ctx context.Context, cpf string) (string, error) {
	digits := taxid.Strip(cpf)
	if !taxid.Valid(digits) {
		return "", ErrInvalidCPF
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"token":   c.token,
			"package": c.pkg,
			"cpf":     digits,
		}).
		Get("/{token}/{package}/{cpf}")
	if err != nil {
		return "", fmt.Errorf("cpf lookup request failed: %w", err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return "", ErrNotFound
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("cpf lookup returned status %d", resp.StatusCode())
	}

	var payload lookupResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return "", fmt.Errorf("failed to decode cpf lookup response: %w", err)
	}

	name := strings.TrimSpace(payload.Name)
	if name == "" {
		c.logger.Info("cpf lookup returned no name", "provider_error", payload.Error)
		return "", ErrNotFound
	}

	return name, nil
}
