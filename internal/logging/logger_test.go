package logging

import (
	"context"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{
			name:    "default config is valid",
			cfg:     NewDefaultConfig(),
			wantErr: false,
		},
		{
			name:    "console format is valid",
			cfg:     &Config{Format: "console"},
			wantErr: false,
		},
		{
			name:    "unknown format rejected",
			cfg:     &Config{Format: "xml"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"info", zapcore.InfoLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"bogus", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := LevelFromString(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LevelFromString(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("LevelFromString(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestContextFields(t *testing.T) {
	ctx := context.Background()
	if got := ContextFields(ctx); len(got) != 0 {
		t.Errorf("ContextFields(empty ctx) = %d fields, want 0", len(got))
	}

	ctx = ContextWithTenantID(ctx, "org-123")
	ctx = ContextWithRequestID(ctx, "req-9")

	fields := ContextFields(ctx)
	if len(fields) != 2 {
		t.Fatalf("ContextFields() = %d fields, want 2", len(fields))
	}
}

func TestTenantIDRoundTrip(t *testing.T) {
	ctx := ContextWithTenantID(context.Background(), "org-abc")
	if got := TenantIDFromContext(ctx); got != "org-abc" {
		t.Errorf("TenantIDFromContext() = %q, want %q", got, "org-abc")
	}
	if got := TenantIDFromContext(context.Background()); got != "" {
		t.Errorf("TenantIDFromContext(empty) = %q, want empty", got)
	}
}

func TestNewLogger(t *testing.T) {
	log, err := NewLogger(nil)
	if err != nil {
		t.Fatalf("NewLogger(nil) error = %v", err)
	}
	log.Info(context.Background(), "hello")

	child := log.Named("embeddings")
	child.Debug(context.Background(), "not emitted at info level")

	if log.Enabled(zapcore.DebugLevel) {
		t.Error("debug should be disabled by default config")
	}
}
