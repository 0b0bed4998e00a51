package isbn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "9781400079278", Normalize("978-1-4000-7927-8"))
	assert.Equal(t, "080442957X", Normalize("0 8044 2957 x"))
	assert.Equal(t, "", Normalize("n/a"))
}

func TestType(t *testing.T) {
	assert.Equal(t, TypeISBN13, Type("9781400079278"))
	assert.Equal(t, TypeISBN10, Type("1400079276"))
	assert.Equal(t, "", Type("12345"))
}

func TestConversions(t *testing.T) {
	tests := []struct {
		isbn10 string
		isbn13 string
	}{
		{isbn10: "1400079276", isbn13: "9781400079278"},
		{isbn10: "0375713271", isbn13: "9780375713279"},
	}

	for _, tt := range tests {
		t.Run(tt.isbn13, func(t *testing.T) {
			assert.Equal(t, tt.isbn10, To10(tt.isbn13))
			assert.Equal(t, tt.isbn13, To13(tt.isbn10))
		})
	}
}

func TestTo10RejectsNon978(t *testing.T) {
	assert.Equal(t, "", To10("9791234567896"))
	assert.Equal(t, "", To10("978123"))
	assert.Equal(t, "", To13("12345"))
}
