package phone_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fleetline/msggate/internal/phone"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name   string
		number string
		want   string
	}{
		{"plain digits", "60123456789", "60123456789@c.us"},
		{"leading zero", "0123456789", "60123456789@c.us"},
		{"punctuation stripped", "+6012-345 6789", "60123456789@c.us"},
		{"already addressed", "60123456789@c.us", "60123456789@c.us"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, phone.Format(tt.number))
		})
	}
}
