package tool

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"melobot/internal/domain"
)

const (
	defaultMusicAPIBase = "https://ws.audioscrobbler.com/2.0/"
	defaultToolTimeout  = 15 * time.Second
	maxSongResults      = 5
)

const (
	msgSongNoKey     = "Chave da API Last.fm não configurada no servidor."
	msgSongNoTitle   = "Por favor, especifique o título da música."
	msgSongFailed    = "Não foi possível realizar a pesquisa de música no momento."
	msgSongNoMatches = "Nenhuma música encontrada com esses critérios."
)

// SongSearchTool looks up track metadata on Last.fm.
type SongSearchTool struct {
	apiKey     string
	apiBase    string
	maxResults int
	client     *http.Client
	logger     *slog.Logger
}

type SongSearchConfig struct {
	APIKey     string
	APIBase    string
	MaxResults int
	Logger     *slog.Logger
}

func NewSongSearchTool(cfg SongSearchConfig) *SongSearchTool {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultMusicAPIBase
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = maxSongResults
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &SongSearchTool{
		apiKey:     cfg.APIKey,
		apiBase:    cfg.APIBase,
		maxResults: cfg.MaxResults,
		client:     &http.Client{Timeout: defaultToolTimeout},
		logger:     cfg.Logger,
	}
}

func (t *SongSearchTool) Name() string { return "searchSong" }

func (t *SongSearchTool) Description() string {
	return "Pesquisa informações sobre uma música pelo título e, opcionalmente, pelo artista."
}

func (t *SongSearchTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"title":  {Type: "string", Description: "Título da música a ser pesquisada"},
			"artist": {Type: "string", Description: "Nome do artista (opcional, mas ajuda a refinar a busca)"},
		},
		[]string{"title"},
	)
}

type lastfmTrack struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
	URL    string `json:"url"`
}

type lastfmResponse struct {
	Results struct {
		TrackMatches struct {
			// Last.fm returns an array for multiple matches, a bare object
			// for a single match, and sometimes an empty object for none.
			Track json.RawMessage `json:"track"`
		} `json:"trackmatches"`
	} `json:"results"`
}

func (t *SongSearchTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	if t.apiKey == "" {
		t.logger.Error("music API key not configured")
		return map[string]any{"error": msgSongNoKey}, nil
	}
	title := ArgsString(args, "title")
	if title == "" {
		return map[string]any{"error": msgSongNoTitle}, nil
	}
	artist := ArgsString(args, "artist")

	q := url.Values{}
	q.Set("method", "track.search")
	q.Set("track", title)
	if artist != "" {
		q.Set("artist", artist)
	}
	q.Set("api_key", t.apiKey)
	q.Set("format", "json")
	q.Set("limit", strconv.Itoa(t.maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.apiBase+"?"+q.Encode(), nil)
	if err != nil {
		return map[string]any{"error": msgSongFailed}, nil
	}
	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Warn("song search request failed", "title", title, "err", err)
		return map[string]any{"error": msgSongFailed}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.logger.Warn("song search upstream error", "status", resp.StatusCode)
		return map[string]any{"error": msgSongFailed}, nil
	}

	var data lastfmResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		t.logger.Warn("song search response unreadable", "err", err)
		return map[string]any{"error": msgSongFailed}, nil
	}

	tracks := decodeTracks(data.Results.TrackMatches.Track)
	if len(tracks) == 0 {
		return map[string]any{"results": []any{}, "message": msgSongNoMatches}, nil
	}
	if len(tracks) > maxSongResults {
		tracks = tracks[:maxSongResults]
	}

	results := make([]any, 0, len(tracks))
	for _, tr := range tracks {
		results = append(results, map[string]any{
			"title":  tr.Name,
			"artist": tr.Artist,
			"url":    tr.URL,
		})
	}
	return map[string]any{"results": results}, nil
}

// decodeTracks tolerates the three observed upstream shapes: array, single
// object, and empty object/absent.
func decodeTracks(raw json.RawMessage) []lastfmTrack {
	if len(raw) == 0 {
		return nil
	}
	var list []lastfmTrack
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single lastfmTrack
	if err := json.Unmarshal(raw, &single); err == nil && single.Name != "" {
		return []lastfmTrack{single}
	}
	return nil
}

var _ domain.Tool = (*SongSearchTool)(nil)
