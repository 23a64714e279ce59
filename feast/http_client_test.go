package feast

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPClient_GetOnlineFeatures(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get-online-features" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{
			"metadata": {"feature_names": ["track_id", "track_audio_features__energy", "track_popularity__play_count_7d"]},
			"results": [
				{"values": ["t1", "t2"], "statuses": ["PRESENT", "PRESENT"]},
				{"values": [0.8, null], "statuses": ["PRESENT", "NOT_FOUND"]},
				{"values": [120, 3], "statuses": ["PRESENT", "PRESENT"]}
			]
		}`))
	}))
	defer srv.Close()

	client, err := NewHTTPClient(srv.URL+"/", "music", WithAuth(&AuthConfig{Type: "bearer", Token: "secret"}))
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	resp, err := client.GetOnlineFeatures(context.Background(), &GetOnlineFeaturesRequest{
		Features:   []string{"track_audio_features:energy", "track_popularity:play_count_7d"},
		EntityRows: []map[string]any{{"track_id": "t1"}, {"track_id": "t2"}},
	})
	if err != nil {
		t.Fatalf("GetOnlineFeatures() error = %v", err)
	}

	if gotBody["project"] != "music" {
		t.Errorf("project = %v, want music", gotBody["project"])
	}
	entities, _ := gotBody["entities"].(map[string]any)
	if ids, _ := entities["track_id"].([]any); len(ids) != 2 {
		t.Errorf("entities = %v, want columnar track_id with 2 values", gotBody["entities"])
	}

	if len(resp.FeatureVectors) != 2 {
		t.Fatalf("len(FeatureVectors) = %d, want 2", len(resp.FeatureVectors))
	}
	v0 := resp.FeatureVectors[0].Values
	if v0["track_audio_features:energy"] != 0.8 || v0["track_popularity:play_count_7d"] != float64(120) {
		t.Errorf("row 0 = %v", v0)
	}
	v1 := resp.FeatureVectors[1].Values
	if _, ok := v1["track_audio_features:energy"]; ok {
		t.Errorf("row 1 should not carry NOT_FOUND value: %v", v1)
	}
	if _, ok := v0["track_id"]; ok {
		t.Error("entity column should not be reported as a feature")
	}
}

func TestHTTPClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, _ := NewHTTPClient(srv.URL, "music")
	_, err := client.GetOnlineFeatures(context.Background(), &GetOnlineFeaturesRequest{
		Features:   []string{"user_listening_stats:play_count_7d"},
		EntityRows: []map[string]any{{"user_id": "u1"}},
	})
	if err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestHTTPClient_InvalidRequest(t *testing.T) {
	client, _ := NewHTTPClient("http://localhost:6566", "music")
	tests := []struct {
		name string
		req  *GetOnlineFeaturesRequest
	}{
		{"no features", &GetOnlineFeaturesRequest{EntityRows: []map[string]any{{"user_id": "u1"}}}},
		{"no entities", &GetOnlineFeaturesRequest{Features: []string{"a:b"}}},
		{"inconsistent entity keys", &GetOnlineFeaturesRequest{
			Features:   []string{"a:b"},
			EntityRows: []map[string]any{{"user_id": "u1"}, {"track_id": "t1"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := client.GetOnlineFeatures(context.Background(), tt.req); err == nil {
				t.Error("expected error")
			}
		})
	}
}
