package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/edvin/borgdesk/internal/borg"
	"github.com/edvin/borgdesk/internal/config"
	"github.com/edvin/borgdesk/internal/core"
	"github.com/edvin/borgdesk/internal/mount"
)

func newMountHandler(t *testing.T) *Mount {
	t.Helper()
	cfg := &config.Config{MountBaseDir: t.TempDir(), MountMaxAgeHours: 24}
	svcs := core.NewServices(&stubDB{}, "test-secret", "borgdesk-test")
	manager := mount.NewManager(cfg, borg.NewMockEngine(), svcs, zerolog.Nop())
	return NewMount(manager, svcs.Mount, 24*time.Hour)
}

func TestMountCreate_MissingArchive(t *testing.T) {
	h := newMountHandler(t)
	rec := httptest.NewRecorder()
	r := asUser(newRequest(http.MethodPost, "/mounts", map[string]any{
		"repository_id": "repo-1",
	}), testUserID)

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMountDownload_NotFound(t *testing.T) {
	h := newMountHandler(t)
	rec := httptest.NewRecorder()
	r := asUser(withChiURLParam(newRequest(http.MethodPost, "/mounts/mount-1/download", map[string]any{
		"paths": []string{"etc"},
	}), "id", "mount-1"), testUserID)

	h.Download(rec, r)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMountBrowse_MissingID(t *testing.T) {
	h := newMountHandler(t)
	rec := httptest.NewRecorder()
	r := asUser(newRequest(http.MethodGet, "/mounts//browse", nil), testUserID)

	h.Browse(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
