package listen

import (
	"testing"

	"kr.dev/diff"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Config
		wantErr bool
	}{
		{name: "empty disables", input: "", want: Config{Disable: true}},
		{name: "blank disables", input: "   ", want: Config{Disable: true}},
		{name: "port only", input: "19080", want: Config{Port: "19080"}},
		{name: "prefixed port", input: ":19081", want: Config{Port: "19081"}},
		{name: "host only defaults port", input: "127.0.0.1", want: Config{Host: "127.0.0.1", Port: defaultPort}},
		{name: "hostname only", input: "localhost", want: Config{Host: "localhost", Port: defaultPort}},
		{name: "host and port", input: "0.0.0.0:20000", want: Config{Host: "0.0.0.0", Port: "20000"}},
		{name: "ipv6 host only", input: "[::1]", want: Config{Host: "::1", Port: defaultPort}},
		{name: "ipv6 host and port", input: "[::]:21000", want: Config{Host: "::", Port: "21000"}},
		{name: "invalid port", input: ":abc", wantErr: true},
		{name: "port out of range", input: "70000", wantErr: true},
		{name: "zero port", input: ":0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.input, err)
			}
			diff.Test(t, t.Errorf, got, tt.want)
		})
	}
}

func TestAddress(t *testing.T) {
	t.Parallel()

	cases := map[Config]string{
		{Port: "18480"}:                ":18480",
		{Host: "127.0.0.1", Port: "1"}: "127.0.0.1:1",
		{Host: "::1", Port: "18481"}:   "[::1]:18481",
		{Disable: true, Port: "18480"}: "",
	}
	for cfg, want := range cases {
		if got := cfg.Address(); got != want {
			t.Fatalf("%+v.Address() = %q, want %q", cfg, got, want)
		}
	}
}

func TestDisplayURL(t *testing.T) {
	t.Parallel()

	cfg := Config{Host: "", Port: "18480"}
	if got := cfg.DisplayURL(); got != "http://localhost:18480/" {
		t.Fatalf("DisplayURL default = %s", got)
	}

	ipv6 := Config{Host: "::1", Port: "18481"}
	if got := ipv6.DisplayURL(); got != "http://[::1]:18481/" {
		t.Fatalf("DisplayURL ipv6 = %s", got)
	}

	if got := cfg.WebsocketURL("/api/editor"); got != "ws://localhost:18480/api/editor" {
		t.Fatalf("WebsocketURL = %s", got)
	}
	if got := (Config{Disable: true}).WebsocketURL("/api/editor"); got != "" {
		t.Fatalf("disabled WebsocketURL = %s", got)
	}
}
