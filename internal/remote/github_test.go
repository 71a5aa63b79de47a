package remote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benioh/reflection-journal/internal/models"
)

const testRepo = "alice/journal-backup"

func newTestStore(t *testing.T, handler http.HandlerFunc) *GitHubStore {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s := NewGitHubStore("test-token", testRepo, "main", "device-1")
	s.SetBaseURL(srv.URL)
	return s
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func encodeSnapshot(t *testing.T, snap *models.Snapshot) string {
	t.Helper()
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(data)
}

func TestGitHubStore_ReadLatestSnapshot_PicksNewestByName(t *testing.T) {
	snap := &models.Snapshot{
		ExportedAt: time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC),
		TotalCount: 1,
		Reflections: []models.Reflection{
			{ID: 7, Content: "july entry", Type: models.TypeDaily},
		},
	}

	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/" + testRepo + "/contents/":
			writeJSON(t, w, []contentEntry{
				{Name: "reflections_backup_202506.json", Path: "reflections_backup_202506.json", Type: "file"},
				{Name: "reflections_backup_202507.json", Path: "reflections_backup_202507.json", Type: "file"},
				{Name: "deleted_records", Path: "deleted_records", Type: "dir"},
				{Name: "README.md", Path: "README.md", Type: "file"},
			})
		case "/repos/" + testRepo + "/contents/reflections_backup_202507.json":
			writeJSON(t, w, contentFile{
				Name:    "reflections_backup_202507.json",
				Path:    "reflections_backup_202507.json",
				Sha:     "abc123",
				Content: encodeSnapshot(t, snap),
			})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	got, err := s.ReadLatestSnapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.TotalCount)
	require.Len(t, got.Reflections, 1)
	assert.Equal(t, int64(7), got.Reflections[0].ID)
	assert.Equal(t, "july entry", got.Reflections[0].Content)
}

func TestGitHubStore_ReadLatestSnapshot_EmptyRemote(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	got, err := s.ReadLatestSnapshot(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGitHubStore_WriteSnapshot_CreateWithoutSha(t *testing.T) {
	var put writeRequest
	putDone := false

	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/repos/"+testRepo+"/contents/reflections_backup_") {
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&put))
			putDone = true
			writeJSON(t, w, map[string]any{"content": map[string]string{"sha": "new"}})
		}
	})

	err := s.WriteSnapshot(context.Background(), &models.Snapshot{ExportedAt: time.Now()})
	require.NoError(t, err)
	require.True(t, putDone)

	assert.Empty(t, put.Sha)
	assert.Equal(t, "main", put.Branch)
	assert.Contains(t, put.Message, "Create reflections backup")
	assert.Contains(t, put.Message, "[device-1]")
}

func TestGitHubStore_WriteSnapshot_UpdateCarriesSha(t *testing.T) {
	var put writeRequest

	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(t, w, contentFile{Sha: "oldsha", Content: ""})
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&put))
			writeJSON(t, w, map[string]any{"content": map[string]string{"sha": "new"}})
		}
	})

	err := s.WriteSnapshot(context.Background(), &models.Snapshot{ExportedAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, "oldsha", put.Sha)
	assert.Contains(t, put.Message, "Update reflections backup")
}

func TestGitHubStore_WriteSnapshot_StaleShaIsConflict(t *testing.T) {
	for _, code := range []int{http.StatusConflict, http.StatusUnprocessableEntity} {
		s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				writeJSON(t, w, contentFile{Sha: "oldsha"})
			case http.MethodPut:
				w.WriteHeader(code)
			}
		})

		err := s.WriteSnapshot(context.Background(), &models.Snapshot{ExportedAt: time.Now()})
		assert.ErrorIs(t, err, ErrConflict, "status %d", code)
	}
}

func TestGitHubStore_LatestModifiedTime(t *testing.T) {
	committed := time.Date(2025, 7, 15, 9, 30, 0, 0, time.UTC)

	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/repos/"+testRepo+"/contents/":
			writeJSON(t, w, []contentEntry{
				{Name: "reflections_backup_202507.json", Path: "reflections_backup_202507.json", Type: "file"},
			})
		case r.URL.Path == "/repos/"+testRepo+"/commits":
			assert.Equal(t, "reflections_backup_202507.json", r.URL.Query().Get("path"))
			writeJSON(t, w, []map[string]any{
				{"commit": map[string]any{"committer": map[string]any{"date": committed.Format(time.RFC3339)}}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	got, ok, err := s.LatestModifiedTime(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Equal(committed))
}

func TestGitHubStore_LatestModifiedTime_EmptyRemote(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []contentEntry{})
	})

	_, ok, err := s.LatestModifiedTime(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGitHubStore_AppendDeletionBackup(t *testing.T) {
	deleted := time.Date(2025, 7, 20, 14, 5, 6, 0, time.UTC)
	var gotPath string
	var put writeRequest

	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&put))
		writeJSON(t, w, map[string]any{"content": map[string]string{"sha": "new"}})
	})

	b := &models.DeletionBackup{
		DeletedAt: deleted,
		Record:    models.Reflection{ID: 42, Content: "gone"},
	}
	require.NoError(t, s.AppendDeletionBackup(context.Background(), b))

	assert.Equal(t, "/repos/"+testRepo+"/contents/deleted_records/2025-07/deleted_42_20250720_140506.json", gotPath)
	assert.Empty(t, put.Sha)

	data, err := base64.StdEncoding.DecodeString(put.Content)
	require.NoError(t, err)
	var decoded models.DeletionBackup
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, int64(42), decoded.Record.ID)
}

func TestGitHubStore_ListDeletionBackups(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/" + testRepo + "/contents/deleted_records":
			writeJSON(t, w, []contentEntry{
				{Name: "2025-07", Path: "deleted_records/2025-07", Type: "dir"},
				{Name: "2025-06", Path: "deleted_records/2025-06", Type: "dir"},
			})
		case "/repos/" + testRepo + "/contents/deleted_records/2025-07":
			writeJSON(t, w, []contentEntry{
				{Name: "deleted_5_20250701_000000.json", Path: "deleted_records/2025-07/deleted_5_20250701_000000.json", Type: "file"},
			})
		case "/repos/" + testRepo + "/contents/deleted_records/2025-06":
			writeJSON(t, w, []contentEntry{
				{Name: "deleted_3_20250615_000000.json", Path: "deleted_records/2025-06/deleted_3_20250615_000000.json", Type: "file"},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	keys, err := s.ListDeletionBackups(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"deleted_records/2025-06/deleted_3_20250615_000000.json",
		"deleted_records/2025-07/deleted_5_20250701_000000.json",
	}, keys)
}

func TestGitHubStore_ListDeletionBackups_MissingNamespace(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	keys, err := s.ListDeletionBackups(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestGitHubStore_IsConfigured(t *testing.T) {
	t.Run("missing settings", func(t *testing.T) {
		assert.False(t, NewGitHubStore("", "", "main", "").IsConfigured(context.Background()))
		assert.False(t, NewGitHubStore("tok", "", "main", "").IsConfigured(context.Background()))
	})

	t.Run("probe cached after first success", func(t *testing.T) {
		probes := 0
		s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
			probes++
			assert.Equal(t, "/repos/"+testRepo, r.URL.Path)
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			writeJSON(t, w, map[string]string{"full_name": testRepo})
		})

		assert.True(t, s.IsConfigured(context.Background()))
		assert.True(t, s.IsConfigured(context.Background()))
		assert.Equal(t, 1, probes)
	})

	t.Run("unreachable", func(t *testing.T) {
		s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		assert.False(t, s.IsConfigured(context.Background()))
	})
}
