package store

import "testing"

func TestPortString(t *testing.T) {
	tests := []struct {
		name string
		port Port
		want string
	}{
		{
			name: "with version",
			port: Port{Number: 80, Service: "http", Version: "nginx 1.18"},
			want: "80/http (nginx 1.18)",
		},
		{
			name: "without version",
			port: Port{Number: 22, Service: "ssh"},
			want: "22/ssh",
		},
		{
			name: "empty service keeps the slash",
			port: Port{Number: 8080},
			want: "8080/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.port.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
