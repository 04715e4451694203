package zoho

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Tasks", r.URL.Path)
		assert.Equal(t, "Zoho-oauthtoken tok", r.Header.Get("Authorization"))

		var body struct {
			Data []Task `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Data, 1)
		assert.Equal(t, "Call donor", body.Data[0].Subject)
		assert.Equal(t, "Not Started", body.Data[0].Status)
		assert.Equal(t, "c-1", body.Data[0].Who.ID)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":[{"code":"SUCCESS","details":{"id":"task-9"},"status":"success"}]}`))
	}))
	defer srv.Close()

	client := NewCRMClientWithBaseURL("key", "tok", srv.URL)
	id, err := client.CreateTask(context.Background(), &Task{Subject: "Call donor", Who: &Lookup{ID: "c-1"}})

	require.NoError(t, err)
	assert.Equal(t, "task-9", id)
}

func TestCreateTask_RejectedRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"code":"INVALID_DATA","status":"error","message":"invalid due date"}]}`))
	}))
	defer srv.Close()

	_, err := NewCRMClientWithBaseURL("key", "tok", srv.URL).CreateTask(context.Background(), &Task{Subject: "x"})

	assert.ErrorContains(t, err, "invalid due date")
}

func TestSearchContacts_NoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ada@example.org", r.URL.Query().Get("email"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	contacts, err := NewCRMClientWithBaseURL("key", "tok", srv.URL).SearchContacts(context.Background(), "ada@example.org")

	require.NoError(t, err)
	assert.Empty(t, contacts)
}
