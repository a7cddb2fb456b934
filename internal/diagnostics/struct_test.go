package diagnostics

import "testing"

func TestParseAddr(t *testing.T) {
	cases := []struct {
		in       string
		wantHost string
		wantPort int
	}{
		{"127.0.0.1:9090", "127.0.0.1", 9090},
		{":9090", "", 9090},
		{"not-a-host-port", "not-a-host-port", 0},
	}
	for _, c := range cases {
		host, port := ParseAddr(c.in)
		if host != c.wantHost || port != c.wantPort {
			t.Fatalf("ParseAddr(%q) = (%q, %d), want (%q, %d)", c.in, host, port, c.wantHost, c.wantPort)
		}
	}
}
