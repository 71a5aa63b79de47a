package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Benioh/reflection-journal/internal/models"
)

const defaultAPIBaseURL = "https://api.github.com"

// GitHubStore keeps snapshots in a GitHub repository through the contents
// API. Each blob is a file committed to the configured branch; the API's
// sha-based write-if-match contract provides the optimistic-concurrency
// signal (a stale sha is rejected with 409/422).
type GitHubStore struct {
	token    string
	repo     string // "owner/name"
	branch   string
	clientID string

	baseURL    string
	httpClient *http.Client

	mu        sync.Mutex
	reachable bool
}

// NewGitHubStore builds a store for the given repository. clientID, when
// non-empty, is stamped into commit messages so multi-device writes are
// traceable.
func NewGitHubStore(token, repo, branch, clientID string) *GitHubStore {
	if branch == "" {
		branch = "main"
	}
	return &GitHubStore{
		token:    token,
		repo:     repo,
		branch:   branch,
		clientID: clientID,
		baseURL:  defaultAPIBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetBaseURL points the store at a different API endpoint. Used by tests
// and GitHub Enterprise installations.
func (s *GitHubStore) SetBaseURL(u string) {
	s.baseURL = strings.TrimSuffix(u, "/")
}

func (s *GitHubStore) IsConfigured(ctx context.Context) bool {
	if s.token == "" || s.repo == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reachable {
		return true
	}

	// Probe the repository once; later calls reuse the cached answer so
	// enqueue paths stay non-blocking.
	err := s.doJSON(ctx, http.MethodGet, fmt.Sprintf("%s/repos/%s", s.baseURL, s.repo), nil, nil)
	if err != nil {
		return false
	}
	s.reachable = true
	return true
}

// contentEntry is one element of a contents-API directory listing.
type contentEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Sha  string `json:"sha"`
	Type string `json:"type"` // "file" or "dir"
}

// contentFile is a single file returned by the contents API.
type contentFile struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Sha     string `json:"sha"`
	Content string `json:"content"` // base64, possibly with newlines
}

func (f *contentFile) decode() ([]byte, error) {
	raw := strings.ReplaceAll(f.Content, "\n", "")
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.Path, err)
	}
	return data, nil
}

func (s *GitHubStore) contentsURL(path string) string {
	return fmt.Sprintf("%s/repos/%s/contents/%s?ref=%s",
		s.baseURL, s.repo, path, url.QueryEscape(s.branch))
}

// doJSON performs one API call and maps the response status to the package
// sentinel errors. out may be nil when the body is not needed.
func (s *GitHubStore) doJSON(ctx context.Context, method, u string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+s.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := mapStatus(resp.StatusCode); err != nil {
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func mapStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrUnauthorized
	case code == http.StatusConflict || code == http.StatusUnprocessableEntity:
		// The contents API signals a stale sha as 409 or 422.
		return ErrConflict
	default:
		return fmt.Errorf("%w: unexpected status %d", ErrUnavailable, code)
	}
}

func (s *GitHubStore) listDir(ctx context.Context, path string) ([]contentEntry, error) {
	var entries []contentEntry
	if err := s.doJSON(ctx, http.MethodGet, s.contentsURL(path), nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// latestSnapshotEntry finds the newest snapshot blob by name, or nil when
// the remote holds none.
func (s *GitHubStore) latestSnapshotEntry(ctx context.Context) (*contentEntry, error) {
	entries, err := s.listDir(ctx, "")
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var latest *contentEntry
	for i := range entries {
		e := &entries[i]
		if e.Type != "file" || !isSnapshotName(e.Name) {
			continue
		}
		if latest == nil || e.Name > latest.Name {
			latest = e
		}
	}
	return latest, nil
}

func (s *GitHubStore) LatestModifiedTime(ctx context.Context) (time.Time, bool, error) {
	entry, err := s.latestSnapshotEntry(ctx)
	if err != nil {
		return time.Time{}, false, err
	}
	if entry == nil {
		return time.Time{}, false, nil
	}

	u := fmt.Sprintf("%s/repos/%s/commits?path=%s&sha=%s&per_page=1",
		s.baseURL, s.repo, url.QueryEscape(entry.Path), url.QueryEscape(s.branch))

	var commits []struct {
		Commit struct {
			Committer struct {
				Date time.Time `json:"date"`
			} `json:"committer"`
		} `json:"commit"`
	}
	if err := s.doJSON(ctx, http.MethodGet, u, nil, &commits); err != nil {
		return time.Time{}, false, err
	}
	if len(commits) == 0 {
		return time.Time{}, false, nil
	}
	return commits[0].Commit.Committer.Date, true, nil
}

func (s *GitHubStore) ReadLatestSnapshot(ctx context.Context) (*models.Snapshot, error) {
	entry, err := s.latestSnapshotEntry(ctx)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	var file contentFile
	if err := s.doJSON(ctx, http.MethodGet, s.contentsURL(entry.Path), nil, &file); err != nil {
		return nil, err
	}
	data, err := file.decode()
	if err != nil {
		return nil, err
	}

	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot %s: %w", entry.Path, err)
	}
	return &snap, nil
}

// writeRequest is the PUT body of the contents API.
type writeRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	Sha     string `json:"sha,omitempty"`
}

func (s *GitHubStore) commitMessage(action string) string {
	msg := fmt.Sprintf("%s - %s", action, time.Now().UTC().Format("2006-01-02 15:04"))
	if s.clientID != "" {
		msg += " [" + s.clientID + "]"
	}
	return msg
}

func (s *GitHubStore) WriteSnapshot(ctx context.Context, snap *models.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	path := snapshotName(time.Now())

	// Read the current sha so the write is rejected if someone else has
	// committed in between.
	var sha string
	var existing contentFile
	switch err := s.doJSON(ctx, http.MethodGet, s.contentsURL(path), nil, &existing); {
	case err == nil:
		sha = existing.Sha
	case errors.Is(err, ErrNotFound):
		// First snapshot of the month.
	default:
		return err
	}

	action := "Update reflections backup"
	if sha == "" {
		action = "Create reflections backup"
	}

	req := writeRequest{
		Message: s.commitMessage(action),
		Content: base64.StdEncoding.EncodeToString(data),
		Branch:  s.branch,
		Sha:     sha,
	}
	return s.doJSON(ctx, http.MethodPut, s.contentsURLNoRef(path), req, nil)
}

// contentsURLNoRef is the write form of the contents endpoint; the branch
// travels in the request body instead of the query string.
func (s *GitHubStore) contentsURLNoRef(path string) string {
	return fmt.Sprintf("%s/repos/%s/contents/%s", s.baseURL, s.repo, path)
}

func (s *GitHubStore) AppendDeletionBackup(ctx context.Context, b *models.DeletionBackup) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal deletion backup: %w", err)
	}

	key := deletionBackupKey(b.Record.ID, b.DeletedAt)
	req := writeRequest{
		Message: s.commitMessage(fmt.Sprintf("Backup deleted record %d", b.Record.ID)),
		Content: base64.StdEncoding.EncodeToString(data),
		Branch:  s.branch,
	}
	return s.doJSON(ctx, http.MethodPut, s.contentsURLNoRef(key), req, nil)
}

func (s *GitHubStore) ListDeletionBackups(ctx context.Context) ([]string, error) {
	keys := []string{}

	dirs := []string{deletionNamespace}
	for len(dirs) > 0 {
		dir := dirs[0]
		dirs = dirs[1:]

		entries, err := s.listDir(ctx, dir)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		for _, e := range entries {
			switch e.Type {
			case "dir":
				dirs = append(dirs, e.Path)
			case "file":
				keys = append(keys, e.Path)
			}
		}
	}

	sort.Strings(keys)
	return keys, nil
}
