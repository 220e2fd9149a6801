package cmd

import (
	"os"
	"testing"
)

func TestValidateAddr(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{"loopback with port", "127.0.0.1:8080", false},
		{"localhost", "localhost:8080", false},
		{"port only", ":8080", false},
		{"port zero auto-assign", ":0", false},
		{"hostname", "api.example.com:443", false},
		{"missing port", "127.0.0.1", true},
		{"empty port", "127.0.0.1:", true},
		{"non-numeric port", ":http", true},
		{"port out of range", ":70000", true},
		{"whitespace host", "bad host:8080", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAddr(tt.addr)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateAddr(%q) error = %v, wantErr %v", tt.addr, err, tt.wantErr)
			}
		})
	}
}

func TestParseServeAddr(t *testing.T) {
	origArgs := os.Args
	defer func() { os.Args = origArgs }()

	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{"config default", []string{"wellnessgrid", "serve"}, "127.0.0.1:8080", false},
		{"positional override", []string{"wellnessgrid", "serve", ":9000"}, ":9000", false},
		{"flag override", []string{"wellnessgrid", "serve", "--addr", ":9001"}, ":9001", false},
		{"invalid positional", []string{"wellnessgrid", "serve", "nonsense"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args
			got, err := parseServeAddr("127.0.0.1:8080")
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseServeAddr() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseServeAddr() = %q, want %q", got, tt.want)
			}
		})
	}
}
