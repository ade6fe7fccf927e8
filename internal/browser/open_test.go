package browser

import (
	"runtime"
	"testing"
)

func TestCommand(t *testing.T) {
	const url = "https://accounts.spotify.com/authorize?x=1"

	tests := []struct {
		goos     string
		wantName string
		wantLast string
	}{
		{"darwin", "open", url},
		{"linux", "xdg-open", url},
		{"windows", "rundll32", url},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			name, args, err := Command(tt.goos, url)
			if err != nil {
				t.Fatalf("Command() error = %v", err)
			}
			if name != tt.wantName {
				t.Errorf("name = %q, want %q", name, tt.wantName)
			}
			if len(args) == 0 || args[len(args)-1] != tt.wantLast {
				t.Errorf("args = %v, want url last", args)
			}
		})
	}
}

func TestCommandUnsupported(t *testing.T) {
	if _, _, err := Command("plan9", "https://example.com"); err == nil {
		t.Error("Command(plan9) error = nil, want error")
	}
}

func TestOpenSupported(t *testing.T) {
	switch runtime.GOOS {
	case "darwin", "linux", "windows":
		if _, _, err := Command(runtime.GOOS, "https://example.com"); err != nil {
			t.Errorf("Command(%s) error = %v", runtime.GOOS, err)
		}
	default:
		t.Skipf("Unsupported platform: %s", runtime.GOOS)
	}
}
