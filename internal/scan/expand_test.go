package scan

import (
	"testing"

	"github.com/edgerunner0x01/violette/internal/errors"
)

func TestExpandCIDR(t *testing.T) {
	tests := []struct {
		name    string
		cidr    string
		want    []string
		wantLen int
		wantErr bool
	}{
		{
			name: "slash 30 excludes network and broadcast",
			cidr: "10.0.0.0/30",
			want: []string{"10.0.0.1", "10.0.0.2"},
		},
		{
			name: "slash 31 keeps both addresses",
			cidr: "10.0.0.0/31",
			want: []string{"10.0.0.0", "10.0.0.1"},
		},
		{
			name: "slash 32 single host",
			cidr: "192.168.1.5/32",
			want: []string{"192.168.1.5"},
		},
		{
			name:    "slash 24",
			cidr:    "192.168.1.0/24",
			wantLen: 254,
		},
		{
			name:    "slash 16 at the limit",
			cidr:    "10.1.0.0/16",
			wantLen: 65534,
		},
		{
			name:    "slash 8 too large",
			cidr:    "10.0.0.0/8",
			wantErr: true,
		},
		{
			name:    "not a cidr",
			cidr:    "192.168.1.1",
			wantErr: true,
		},
		{
			name:    "garbage",
			cidr:    "not-a-range",
			wantErr: true,
		},
		{
			name:    "ipv6 rejected",
			cidr:    "2001:db8::/64",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandCIDR(tt.cidr)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ExpandCIDR(%q) expected error, got %d addresses", tt.cidr, len(got))
				}
				if !errors.IsCode(err, errors.CodeRangeInvalid) {
					t.Errorf("expected range error code, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExpandCIDR(%q) unexpected error: %v", tt.cidr, err)
			}
			if tt.want != nil {
				if len(got) != len(tt.want) {
					t.Fatalf("got %d addresses, want %d", len(got), len(tt.want))
				}
				for i := range tt.want {
					if got[i] != tt.want[i] {
						t.Errorf("address[%d] = %q, want %q", i, got[i], tt.want[i])
					}
				}
			}
			if tt.wantLen > 0 && len(got) != tt.wantLen {
				t.Errorf("got %d addresses, want %d", len(got), tt.wantLen)
			}
		})
	}
}

func TestExpandCIDRFirstAndLast(t *testing.T) {
	got, err := ExpandCIDR("192.168.1.0/24")
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != "192.168.1.1" {
		t.Errorf("first address = %q, want 192.168.1.1", got[0])
	}
	if got[len(got)-1] != "192.168.1.254" {
		t.Errorf("last address = %q, want 192.168.1.254", got[len(got)-1])
	}
}
