package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:  srv.URL,
		Domain:   "demo",
		Username: "web@example.com",
		APIKey:   "secret",
	})
}

func TestGet_AuthAndDomainScoping(t *testing.T) {
	var gotPath, gotAuth string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{}`)
	}))

	var out map[string]any
	if err := client.GetJSON(t.Context(), AppList, nil, &out); err != nil {
		t.Fatalf("get: %v", err)
	}

	if gotPath != "/a/demo/api/application/v1/" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "ApiKey web@example.com:secret" {
		t.Errorf("auth = %q", gotAuth)
	}
}

func TestGet_GlobalPathsNotDomainScoped(t *testing.T) {
	var gotPath string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `{}`)
	}))

	var out map[string]any
	if err := client.GetJSON(t.Context(), Identity, nil, &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if gotPath != "/api/identity/v1/" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestGetJSON_StatusError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	var out map[string]any
	err := client.GetJSON(t.Context(), AppList, nil, &out)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Code != 403 {
		t.Errorf("Code = %d", statusErr.Code)
	}
}

func TestListAll_TastypiePagination(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset := r.URL.Query().Get("offset")
		if offset == "" || offset == "0" {
			fmt.Fprint(w, `{"meta": {"next": "?offset=2"}, "objects": [{"id": "1"}, {"id": "2"}]}`)
		} else {
			fmt.Fprint(w, `{"meta": {"next": null}, "objects": [{"id": "3"}]}`)
		}
	}))

	all, err := client.ListAll(t.Context(), AppList, nil, 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[2]["id"] != "3" {
		t.Errorf("all = %v", all)
	}
}

func TestListAll_DRFPagination(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			fmt.Fprint(w, `{"next": "page2", "results": [{"id": "a"}]}`)
		} else {
			fmt.Fprint(w, `{"next": null, "results": [{"id": "b"}]}`)
		}
	}))

	all, err := client.ListAll(t.Context(), CaseListV2, nil, 1, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2", len(all))
	}
}

func TestListAll_MaxResults(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"meta": {"next": "more"}, "objects": [{"id": "1"}, {"id": "2"}]}`)
	}))

	all, err := client.ListAll(t.Context(), AppList, nil, 2, 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len = %d, want capped at 3", len(all))
	}
}

func TestFetchAppCCZ_FallsBackThroughLifecycleStages(t *testing.T) {
	var latestTried []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/a/demo/api/application/v1/abc/":
			fmt.Fprint(w, `{"id": "abc", "name": "My App", "version": 7}`)
		case r.URL.Path == "/a/demo/apps/api/download_ccz/":
			latest := r.URL.Query().Get("latest")
			latestTried = append(latestTried, latest)
			if latest != "save" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			fmt.Fprint(w, "ccz-bytes")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	data, app, err := client.FetchAppCCZ(t.Context(), "abc")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(data) != "ccz-bytes" {
		t.Errorf("data = %q", data)
	}
	if app.Name != "My App" || app.Version != 7 {
		t.Errorf("app = %+v", app)
	}

	want := []string{"release", "build", "save"}
	if len(latestTried) != 3 {
		t.Fatalf("latest params = %v, want %v", latestTried, want)
	}
	for i := range want {
		if latestTried[i] != want[i] {
			t.Errorf("latest[%d] = %q, want %q", i, latestTried[i], want[i])
		}
	}
}

func TestFetchAppCCZ_NothingPublished(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/a/demo/api/application/v1/abc/" {
			fmt.Fprint(w, `{"id": "abc"}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	_, _, err := client.FetchAppCCZ(t.Context(), "abc")
	if err == nil {
		t.Fatal("expected error when no stage is published")
	}
}

func TestLookupUser(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("username") != "worker1" {
			t.Errorf("username param = %q", r.URL.Query().Get("username"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"meta":    map[string]any{"next": nil},
			"objects": []map[string]any{{"id": "uid-9", "username": "worker1@demo.commcarehq.org"}},
		})
	}))

	user, err := client.LookupUser(t.Context(), "worker1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if user.ID != "uid-9" {
		t.Errorf("ID = %q", user.ID)
	}
	if user.Username != "worker1@demo.commcarehq.org" {
		t.Errorf("Username = %q", user.Username)
	}
}

func TestLookupUser_NotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"meta": {"next": null}, "objects": []}`)
	}))

	_, err := client.LookupUser(t.Context(), "ghost")

	var notFound *UserNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected UserNotFoundError, got %v", err)
	}
	if notFound.Username != "ghost" || notFound.Domain != "demo" {
		t.Errorf("err = %+v", notFound)
	}
}

func TestFetchRestore(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/a/demo/phone/restore/" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("version") != "2.0" || q.Get("as") != "worker1@demo.commcarehq.org" {
			t.Errorf("query = %v", q)
		}
		fmt.Fprint(w, "<OpenRosaResponse/>")
	}))

	data, err := client.FetchRestore(t.Context(), "worker1@demo.commcarehq.org")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if string(data) != "<OpenRosaResponse/>" {
		t.Errorf("data = %q", data)
	}
}

func TestListDomains_BothShapes(t *testing.T) {
	t.Run("array", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `[{"domain_name": "demo"}, {"domain_name": "other"}]`)
		}))
		domains, err := client.ListDomains(t.Context())
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(domains) != 2 {
			t.Errorf("len = %d", len(domains))
		}
	})

	t.Run("paginated", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"meta": {"next": null}, "objects": [{"domain_name": "demo"}]}`)
		}))
		domains, err := client.ListDomains(t.Context())
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(domains) != 1 {
			t.Errorf("len = %d", len(domains))
		}
	})
}

func TestWithDomain_CopiesClient(t *testing.T) {
	c := New(Config{BaseURL: "https://hq.example.com", Domain: "one"})
	c2 := c.WithDomain("two")

	if c.domain != "one" {
		t.Errorf("receiver mutated: %q", c.domain)
	}
	if c2.domain != "two" {
		t.Errorf("copy domain = %q", c2.domain)
	}
}
