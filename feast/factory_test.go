package feast

import "testing"

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		host     string
		port     int
		wantErr  bool
	}{
		{"localhost:6565", "localhost", 6565, false},
		{"grpc://feast.internal:7000", "feast.internal", 7000, false},
		{"feast.internal", "feast.internal", 0, false},
		{"localhost:abc", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			host, port, err := parseEndpoint(tt.endpoint)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if host != tt.host || port != tt.port {
				t.Errorf("parseEndpoint() = (%q, %d), want (%q, %d)", host, port, tt.host, tt.port)
			}
		})
	}
}

func TestNewClient_SelectsHTTP(t *testing.T) {
	c, err := NewClient("https://feast.internal", "music")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(*HTTPClient); !ok {
		t.Errorf("NewClient(https) = %T, want *HTTPClient", c)
	}
	if _, err := NewClient("", "music"); err == nil {
		t.Error("empty endpoint should fail")
	}
}
