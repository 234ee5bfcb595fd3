package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"5546999999999", "5546999999999"},
		{"+55 (46) 99999-9999", "5546999999999"},
		{"1234567", ""},
		{"0046999999999", ""},
		{"1234567890123456", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePhone(tt.in), tt.in)
	}
}

func TestNormalizePhoneE164BR(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"5546999999999", "+5546999999999"},
		{"46999999999", "+5546999999999"},
		{"4633334444", "+554633334444"},
		{"046999999999", "+5546999999999"},
		{"99999", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePhoneE164BR(tt.in), tt.in)
	}
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "5546*******99", MaskPhone("5546999999999"))
	assert.Equal(t, "***", MaskPhone("123"))
}
