package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v62/github"
)

const commitMessage = "Update inventory after purchase"

// GitHubStore persists the inventory document as a file in a GitHub
// repository through the contents API. The blob SHA is the version
// token: updates send the SHA read at fetch time, and GitHub rejects
// the write if the file has moved on.
type GitHubStore struct {
	client *github.Client
	owner  string
	repo   string
	path   string
}

// NewGitHubStore builds a store for "owner/repo" and a file path such
// as "data/products.json".
func NewGitHubStore(token, ownerRepo, path string) (*GitHubStore, error) {
	owner, repo, ok := strings.Cut(ownerRepo, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("repository must be owner/repo, got %q", ownerRepo)
	}
	return &GitHubStore{
		client: github.NewClient(nil).WithAuthToken(token),
		owner:  owner,
		repo:   repo,
		path:   path,
	}, nil
}

// WithBaseURL points the store at a different API endpoint. Tests use
// this to talk to a local server.
func (s *GitHubStore) WithBaseURL(baseURL string) *GitHubStore {
	client, err := s.client.WithEnterpriseURLs(baseURL, baseURL)
	if err == nil {
		s.client = client
	}
	return s
}

func (s *GitHubStore) Fetch(ctx context.Context) (*Document, string, error) {
	file, _, resp, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, s.path, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, "", ErrDocumentNotFound
		}
		return nil, "", fmt.Errorf("fetch %s: %w", s.path, err)
	}
	if file == nil {
		return nil, "", fmt.Errorf("fetch %s: path is a directory", s.path)
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", s.path, err)
	}

	var doc Document
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, "", fmt.Errorf("unmarshal %s: %w", s.path, err)
	}
	return &doc, file.GetSHA(), nil
}

func (s *GitHubStore) Update(ctx context.Context, doc *Document, version string) error {
	content, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal inventory document: %w", err)
	}
	content = append(content, '\n')

	_, resp, err := s.client.Repositories.UpdateFile(ctx, s.owner, s.repo, s.path, &github.RepositoryContentFileOptions{
		Message: github.String(commitMessage),
		Content: content,
		SHA:     github.String(version),
	})
	if err != nil {
		if isConflict(resp, err) {
			return ErrVersionConflict
		}
		return fmt.Errorf("update %s: %w", s.path, err)
	}
	return nil
}

// isConflict detects a stale-SHA rejection. The contents API reports
// it as 409, older deployments as a 422 mentioning the sha.
func isConflict(resp *github.Response, err error) bool {
	if resp != nil && resp.StatusCode == http.StatusConflict {
		return true
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		if ghErr.Response.StatusCode == http.StatusConflict {
			return true
		}
		if ghErr.Response.StatusCode == http.StatusUnprocessableEntity &&
			strings.Contains(strings.ToLower(ghErr.Message), "sha") {
			return true
		}
	}
	return false
}
