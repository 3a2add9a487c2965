package recoco

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/recoco/recoco-relay/pkg/config"
	"github.com/recoco/recoco-relay/pkg/logger"
)

func testConfig() config.RecocoConfig {
	return config.RecocoConfig{
		Username: "sync@example.org",
		Password: "secret",
		Timeout:  5 * time.Second,
	}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientFetchesTokenBeforeFirstRequest(t *testing.T) {
	var tokenCalls, projectCalls int

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token/":
			tokenCalls++
			if err := r.ParseForm(); err != nil {
				t.Fatalf("parse form: %v", err)
			}
			if got := r.PostForm.Get("username"); got != "sync@example.org" {
				t.Fatalf("unexpected username %q", got)
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"access": "tok-1", "refresh": "ref-1"})
		case "/projects/777/":
			projectCalls++
			if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
				t.Fatalf("unexpected auth header %q", got)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"id": 777, "name": "Friche"})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	client, err := NewClient(srv.URL, testConfig())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	project, err := client.GetProject(context.Background(), 777)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if project["name"] != "Friche" {
		t.Fatalf("name = %v", project["name"])
	}
	if tokenCalls != 1 || projectCalls != 1 {
		t.Fatalf("calls: token=%d project=%d", tokenCalls, projectCalls)
	}
}

func TestClientRefreshesTokenOn401(t *testing.T) {
	var refreshCalls int
	authorized := map[string]bool{"Bearer tok-2": true}

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token/":
			_ = json.NewEncoder(w).Encode(map[string]string{"access": "tok-1", "refresh": "ref-1"})
		case "/token/refresh/":
			refreshCalls++
			if err := r.ParseForm(); err != nil {
				t.Fatalf("parse form: %v", err)
			}
			if got := r.PostForm.Get("refresh"); got != "ref-1" {
				t.Fatalf("unexpected refresh token %q", got)
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"access": "tok-2"})
		case "/projects/1/":
			if !authorized[r.Header.Get("Authorization")] {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"id": 1, "name": "ok"})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	client, err := NewClient(srv.URL, testConfig())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	project, err := client.GetProject(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if project["name"] != "ok" {
		t.Fatalf("name = %v", project["name"])
	}
	if refreshCalls != 1 {
		t.Fatalf("refresh calls = %d", refreshCalls)
	}
}

func TestFetchProjectFieldsMergesSurveyAnswers(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/token/":
			_ = json.NewEncoder(w).Encode(map[string]string{"access": "tok"})
		case r.URL.Path == "/projects/777/":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":   777,
				"name": "Friche du centre",
				"tags": []string{"tag1", "tag2"},
			})
		case r.URL.Path == "/survey/sessions/" && r.URL.Query().Get("project_id") == "777":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"count":   1,
				"results": []map[string]any{{"id": 31}},
			})
		case r.URL.Path == "/survey/sessions/31/answers/":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"count": 1,
				"results": []map[string]any{
					{
						"id": 1,
						"question": map[string]any{
							"slug":        "description-du-site",
							"is_multiple": false,
							"choices":     []any{},
						},
						"comment": "Ancien site industriel",
					},
				},
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	client, err := NewClient(srv.URL, testConfig())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	fields, err := FetchProjectFields(context.Background(), testLogger(), client, 777)
	if err != nil {
		t.Fatalf("FetchProjectFields: %v", err)
	}

	if fields["name"] != "Friche du centre" {
		t.Fatalf("name = %v", fields["name"])
	}
	if fields["description_du_site"] != "Ancien site industriel" {
		t.Fatalf("description_du_site = %v", fields["description_du_site"])
	}
	if fields["tags"] != "tag1,tag2" {
		t.Fatalf("tags = %v", fields["tags"])
	}
}

func TestClientSurfacesRemoteErrors(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token/" {
			_ = json.NewEncoder(w).Encode(map[string]string{"access": "tok"})
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	client, err := NewClient(srv.URL, testConfig())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if _, err := client.GetProjects(context.Background()); err == nil {
		t.Fatal("expected error for 500 response")
	}
}
