package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIMDBClient_Search_Normalizes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/titles" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		if r.URL.Query().Get("query") != "inception" {
			t.Errorf("unexpected query %q", r.URL.Query().Get("query"))
		}

		if _, err := w.Write([]byte(`{
			"titles": [
				{"id": "tt1375666", "primaryTitle": "Inception", "startYear": 2010, "type": "movie",
				 "primaryImage": {"url": "https://img.example/inception.jpg"}},
				{"id": "tt0816692", "primaryTitle": "Interstellar", "startYear": 2014, "type": "movie"}
			]
		}`)); err != nil {
			t.Errorf(failedToWriteResp, err)
		}
	}))
	defer ts.Close()

	c := NewIMDBClient(IMDBConfig{BaseURL: ts.URL}, testLogger())

	results := c.Search(context.Background(), "inception")
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	first := results[0]
	if first.IMDBID != "tt1375666" || first.Title != "Inception" || first.Year != 2010 {
		t.Errorf("unexpected first result: %+v", first)
	}

	if first.Image != "https://img.example/inception.jpg" {
		t.Errorf("unexpected image: %s", first.Image)
	}

	if results[1].Image != "" {
		t.Errorf("expected empty image for result without primaryImage, got %s", results[1].Image)
	}
}

func TestIMDBClient_Search_SwallowsErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := NewIMDBClient(IMDBConfig{BaseURL: ts.URL}, testLogger())

	results := c.Search(context.Background(), "inception")
	if len(results) != 0 {
		t.Errorf("expected empty results on upstream failure, got %d", len(results))
	}
}

func TestIMDBClient_Metadata_ReturnsRawDocument(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/titles/"+testIMDBID {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		if _, err := w.Write([]byte(`{"id":"tt1375666","primaryTitle":"Inception","startYear":2010}`)); err != nil {
			t.Errorf(failedToWriteResp, err)
		}
	}))
	defer ts.Close()

	c := NewIMDBClient(IMDBConfig{BaseURL: ts.URL}, testLogger())

	doc, err := c.Metadata(context.Background(), testIMDBID)
	if err != nil {
		t.Fatalf("Metadata() error = %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(doc, &decoded); err != nil {
		t.Fatalf("document is not valid JSON: %v", err)
	}

	if decoded["primaryTitle"] != "Inception" {
		t.Errorf("unexpected document: %v", decoded)
	}
}

func TestIMDBClient_Metadata_PropagatesHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	c := NewIMDBClient(IMDBConfig{BaseURL: ts.URL}, testLogger())

	if _, err := c.Metadata(context.Background(), "tt0000000"); err == nil {
		t.Fatal(expectedErrGotNil)
	}
}

func TestIMDBClient_SecondaryResourcePaths(t *testing.T) {
	var paths []string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)

		if _, err := w.Write([]byte(`{}`)); err != nil {
			t.Errorf(failedToWriteResp, err)
		}
	}))
	defer ts.Close()

	c := NewIMDBClient(IMDBConfig{BaseURL: ts.URL}, testLogger())
	ctx := context.Background()

	calls := []func() (json.RawMessage, error){
		func() (json.RawMessage, error) { return c.Credits(ctx, testIMDBID) },
		func() (json.RawMessage, error) { return c.Images(ctx, testIMDBID) },
		func() (json.RawMessage, error) { return c.Videos(ctx, testIMDBID) },
		func() (json.RawMessage, error) { return c.ParentsGuide(ctx, testIMDBID) },
		func() (json.RawMessage, error) { return c.Certificates(ctx, testIMDBID) },
		func() (json.RawMessage, error) { return c.ReleaseDates(ctx, testIMDBID) },
	}

	for _, call := range calls {
		if _, err := call(); err != nil {
			t.Fatalf("resource call error = %v", err)
		}
	}

	expected := []string{
		"/titles/tt1375666/credits",
		"/titles/tt1375666/images",
		"/titles/tt1375666/videos",
		"/titles/tt1375666/parentsGuide",
		"/titles/tt1375666/certificates",
		"/titles/tt1375666/releaseDates",
	}

	for i, p := range expected {
		if paths[i] != p {
			t.Errorf("expected path %s, got %s", p, paths[i])
		}
	}
}
