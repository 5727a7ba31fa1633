// Package ghost talks to a Ghost blog that hosts the recipe collection.
package ghost

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cooking-ops/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

// Post is a recipe post as served by the Ghost API.
type Post struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	HTML      string `json:"html"`
	URL       string `json:"url,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

// PostsResponse is the envelope of the Ghost posts endpoints.
type PostsResponse struct {
	Posts []Post `json:"posts"`
}

// Client reads recipe posts from the Content API and publishes through the
// Admin API.
type Client interface {
	FetchRecipes(ctx context.Context) ([]Post, error)
	CreatePost(ctx context.Context, title, html string, publish bool) (*Post, error)
}

type ghostClient struct {
	httpClient *http.Client
	baseURL    string
	contentKey string
	adminKey   string
}

// NewClient creates a Ghost client from configuration.
func NewClient(cfg *config.Config) Client {
	return &ghostClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimSuffix(cfg.GhostURL, "/"),
		contentKey: cfg.GhostContentKey,
		adminKey:   cfg.GhostAdminKey,
	}
}

const acceptVersion = "v5.0"

// StatusError is returned when Ghost answers with an unexpected status.
type StatusError struct {
	API    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api error: status %d: %s", e.API, e.Status, e.Body)
}

// FetchRecipes fetches every post from the Content API.
func (c *ghostClient) FetchRecipes(ctx context.Context) ([]Post, error) {
	q := url.Values{}
	q.Set("key", c.contentKey)
	q.Set("limit", "all")
	q.Set("formats", "html")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ghost/api/content/posts/?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var out PostsResponse
	if err := c.do(req, "content", &out); err != nil {
		return nil, err
	}
	return out.Posts, nil
}

// CreatePost creates a post from HTML through the Admin API, as a draft unless
// publish is set.
func (c *ghostClient) CreatePost(ctx context.Context, title, html string, publish bool) (*Post, error) {
	token, err := c.adminToken(time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to create admin token: %w", err)
	}

	status := "draft"
	if publish {
		status = "published"
	}
	body, err := json.Marshal(map[string][]map[string]string{
		"posts": {{"title": title, "html": html, "status": status}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode post: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ghost/api/admin/posts/?source=html", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Ghost "+token)
	req.Header.Set("Content-Type", "application/json")

	var out PostsResponse
	if err := c.do(req, "admin", &out); err != nil {
		return nil, err
	}
	if len(out.Posts) == 0 {
		return nil, errors.New("admin api returned no post")
	}
	return &out.Posts[0], nil
}

// do sends req and decodes a 2xx JSON body into out.
func (c *ghostClient) do(req *http.Request, api string, out any) error {
	req.Header.Set("Accept-Version", acceptVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach ghost %s api: %w", api, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{API: api, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s api response: %w", api, err)
	}
	return nil
}

// adminToken signs a five minute JWT with the id:secret Admin API key.
func (c *ghostClient) adminToken(now time.Time) (string, error) {
	id, secretHex, ok := strings.Cut(c.adminKey, ":")
	if !ok || id == "" || secretHex == "" {
		return "", errors.New("invalid admin key format: expected id:secret")
	}

	secret, err := hex.DecodeString(secretHex)
	if err != nil {
		return "", fmt.Errorf("failed to decode secret hex: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(5 * time.Minute).Unix(),
		"aud": "/admin/",
	})
	token.Header["kid"] = id

	return token.SignedString(secret)
}
