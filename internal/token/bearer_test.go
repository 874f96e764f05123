package token

import (
	"errors"
	"testing"
)

func TestBearerFromHeader(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{"valid", "Bearer abc.def.ghi", "abc.def.ghi", nil},
		{"missing header", "", "", ErrNoAuthHeader},
		{"wrong scheme", "Basic abc", "", ErrNotBearer},
		{"lowercase scheme", "bearer abc", "", ErrNotBearer},
		{"interior whitespace", "Bearer abc def", "", ErrHeaderSpaces},
		{"trailing space", "Bearer abc ", "", ErrHeaderSpaces},
		{"empty token", "Bearer ", "", ErrTokenMissing},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := BearerFromHeader(tc.header)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Fatalf("token = %q, want %q", got, tc.want)
			}
		})
	}
}
