package tool

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func songUpstream(t *testing.T, body string) *SongSearchTool {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("method"); got != "track.search" {
			t.Errorf("expected track.search, got %q", got)
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return NewSongSearchTool(SongSearchConfig{APIKey: "k", APIBase: srv.URL, Logger: testLogger()})
}

func TestSongSearch_Results(t *testing.T) {
	tool := songUpstream(t, `{"results":{"trackmatches":{"track":[
		{"name":"Garota de Ipanema","artist":"Tom Jobim","url":"https://last.fm/1"},
		{"name":"Garota de Ipanema","artist":"João Gilberto","url":"https://last.fm/2"}
	]}}}`)

	out, err := tool.Execute(context.Background(), map[string]any{"title": "Garota de Ipanema"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	results, ok := out["results"].([]any)
	if !ok || len(results) != 2 {
		t.Fatalf("expected 2 results, got %v", out)
	}
	first := results[0].(map[string]any)
	if first["title"] != "Garota de Ipanema" || first["artist"] != "Tom Jobim" {
		t.Fatalf("unexpected first result: %v", first)
	}
}

func TestSongSearch_SingleObjectShape(t *testing.T) {
	tool := songUpstream(t, `{"results":{"trackmatches":{"track":
		{"name":"Aquarela","artist":"Toquinho","url":"https://last.fm/3"}
	}}}`)

	out, err := tool.Execute(context.Background(), map[string]any{"title": "Aquarela"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	results := out["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("single object should become one result, got %v", out)
	}
}

func TestSongSearch_EmptyArray(t *testing.T) {
	tool := songUpstream(t, `{"results":{"trackmatches":{"track":[]}}}`)

	out, err := tool.Execute(context.Background(), map[string]any{"title": "nada"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if _, hasErr := out["error"]; hasErr {
		t.Fatalf("empty result set must not be an error: %v", out)
	}
	if results := out["results"].([]any); len(results) != 0 {
		t.Fatalf("expected empty results, got %v", results)
	}
	if out["message"] != msgSongNoMatches {
		t.Fatalf("expected no-matches message, got %v", out["message"])
	}
}

func TestSongSearch_EmptyObject(t *testing.T) {
	tool := songUpstream(t, `{"results":{"trackmatches":{"track":{}}}}`)

	out, err := tool.Execute(context.Background(), map[string]any{"title": "nada"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if _, hasErr := out["error"]; hasErr {
		t.Fatalf("empty object shape must not be an error: %v", out)
	}
	if out["message"] != msgSongNoMatches {
		t.Fatalf("expected no-matches message, got %v", out["message"])
	}
}

func TestSongSearch_CapsAtFive(t *testing.T) {
	body := `{"results":{"trackmatches":{"track":[`
	for i := 0; i < 7; i++ {
		if i > 0 {
			body += ","
		}
		body += fmt.Sprintf(`{"name":"t%d","artist":"a","url":"u"}`, i)
	}
	body += `]}}}`
	tool := songUpstream(t, body)

	out, _ := tool.Execute(context.Background(), map[string]any{"title": "t"})
	if results := out["results"].([]any); len(results) != 5 {
		t.Fatalf("expected cap at 5 results, got %d", len(results))
	}
}

func TestSongSearch_MissingKey(t *testing.T) {
	tool := NewSongSearchTool(SongSearchConfig{Logger: testLogger()})
	out, err := tool.Execute(context.Background(), map[string]any{"title": "x"})
	if err != nil {
		t.Fatalf("execute must not fail: %v", err)
	}
	if out["error"] != msgSongNoKey {
		t.Fatalf("expected missing-key message, got %v", out)
	}
}

func TestSongSearch_MissingTitle(t *testing.T) {
	tool := NewSongSearchTool(SongSearchConfig{APIKey: "k", Logger: testLogger()})
	out, _ := tool.Execute(context.Background(), map[string]any{})
	if out["error"] != msgSongNoTitle {
		t.Fatalf("expected missing-title message, got %v", out)
	}
}

func TestSongSearch_ArtistForwarded(t *testing.T) {
	var gotArtist string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotArtist = r.URL.Query().Get("artist")
		fmt.Fprint(w, `{"results":{"trackmatches":{"track":[]}}}`)
	}))
	t.Cleanup(srv.Close)
	tool := NewSongSearchTool(SongSearchConfig{APIKey: "k", APIBase: srv.URL, Logger: testLogger()})

	tool.Execute(context.Background(), map[string]any{"title": "x", "artist": "Elis Regina"})
	if gotArtist != "Elis Regina" {
		t.Fatalf("artist not forwarded, got %q", gotArtist)
	}
}
