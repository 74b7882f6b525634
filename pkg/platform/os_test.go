// SPDX-License-Identifier: MPL-2.0

package platform

import "testing"

func TestNamingFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		goos       string
		wantNative string
		wantModule string
	}{
		{Linux, "librust_data_collector.so", "rust_data_collector.so"},
		{Darwin, "librust_data_collector.dylib", "rust_data_collector.so"},
		{Windows, "rust_data_collector.dll", "rust_data_collector.pyd"},
		{"freebsd", "librust_data_collector.so", "rust_data_collector.so"},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			t.Parallel()

			n := NamingFor(tt.goos)
			if got := n.NativeFileName("rust_data_collector"); got != tt.wantNative {
				t.Errorf("NativeFileName() = %q, want %q", got, tt.wantNative)
			}
			if got := n.ModuleFileName("rust_data_collector"); got != tt.wantModule {
				t.Errorf("ModuleFileName() = %q, want %q", got, tt.wantModule)
			}
		})
	}
}

func TestModuleStem(t *testing.T) {
	t.Parallel()

	n := NamingFor(Darwin)
	tests := map[string]string{
		"rust_data_collector.so":    "rust_data_collector",
		"rust_data_collector.dylib": "rust_data_collector",
		"rust_data_collector.py":    "rust_data_collector",
		"rust_data_collector":       "rust_data_collector",
		"rust_data_collector.txt":   "rust_data_collector.txt",
		"Cargo.toml":                "Cargo.toml",
	}
	for in, want := range tests {
		if got := n.ModuleStem(in); got != want {
			t.Errorf("ModuleStem(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestShadowExtsLinuxHasNoDuplicates(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for _, ext := range NamingFor(Linux).ShadowExts() {
		if seen[ext] {
			t.Errorf("duplicate extension %q", ext)
		}
		seen[ext] = true
	}
}

func TestIsWindowsReservedName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want bool
	}{
		{"con", true},
		{"aux.pyd", true},
		{"LPT1.cpython-311-x86_64-linux-gnu.so", true},
		{"auxiliary", false},
		{"rust_data_collector.pyd", false},
		{"com10", false},
	}

	for _, tt := range tests {
		if got := IsWindowsReservedName(tt.name); got != tt.want {
			t.Errorf("IsWindowsReservedName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
