package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYearOfPaymentDate(t *testing.T) {
	t.Run("valid dates", func(t *testing.T) {
		tests := []struct {
			date string
			year int
		}{
			{"2024-03-15", 2024},
			{"2024-01-01", 2024},
			{"2023-12-31", 2023},
			{"1999-06-30", 1999},
		}
		for _, tt := range tests {
			year, err := YearOfPaymentDate(tt.date)
			require.NoError(t, err, "date %q", tt.date)
			assert.Equal(t, tt.year, year)
		}
	})

	t.Run("invalid dates", func(t *testing.T) {
		for _, date := range []string{"", "15-03-2024", "2024/03/15", "2024-13-01", "2024-02-30", "yesterday"} {
			_, err := YearOfPaymentDate(date)
			assert.Error(t, err, "date %q", date)
		}
	})
}

func TestMemberTypeValid(t *testing.T) {
	assert.True(t, TypeCommunicant.Valid())
	assert.True(t, TypeCatechumen.Valid())
	assert.False(t, MemberType("Visitor").Valid())
	assert.False(t, MemberType("").Valid())
}
