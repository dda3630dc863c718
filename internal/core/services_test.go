package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/borgdesk/internal/model"
)

func testUser(id, username string) *model.User {
	return &model.User{
		ID:        id,
		Username:  username,
		Email:     username + "@example.com",
		CreatedAt: time.Now(),
	}
}

func TestNewServices(t *testing.T) {
	db := &mockDB{}

	svcs := NewServices(db, "test-secret", "borgdesk-test")

	require.NotNil(t, svcs)
	assert.NotNil(t, svcs.Repository)
	assert.NotNil(t, svcs.Source)
	assert.NotNil(t, svcs.Job)
	assert.NotNil(t, svcs.Mount)
	assert.NotNil(t, svcs.Schedule)
	assert.NotNil(t, svcs.User)
	assert.NotNil(t, svcs.Auth)
	assert.NotNil(t, svcs.APIKey)
	assert.NotNil(t, svcs.Analytics)
	assert.NotNil(t, svcs.Dashboard)
}
