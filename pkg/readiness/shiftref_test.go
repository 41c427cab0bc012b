package readiness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseShiftRef(t *testing.T) {
	tests := []struct {
		in      string
		want    ShiftRef
		wantErr bool
	}{
		{in: "#42", want: ShiftRef{ShiftID: "42"}},
		{in: "#3fa85f64-5717-4562-b3fc-2c963f66afa6", want: ShiftRef{ShiftID: "3fa85f64-5717-4562-b3fc-2c963f66afa6"}},
		{in: "2025-06-01@Day", want: ShiftRef{Date: "2025-06-01", ShiftCode: "Day"}},
		{in: " 2025-06-01 / night_2 ", want: ShiftRef{Date: "2025-06-01", ShiftCode: "night_2"}},
		{in: "", wantErr: true},
		{in: "2025-06-01", wantErr: true},
		{in: "2025-13-40@Day", wantErr: true},
		{in: "Day@2025-06-01", wantErr: true},
		{in: "#", wantErr: true},
		{in: "2025-06-01@Day@Night", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseShiftRef(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.False(t, got.IsZero())
		})
	}
}

func TestShiftRefString(t *testing.T) {
	assert.Equal(t, "#sh-1", ByID("sh-1").String())
	assert.Equal(t, "2025-06-01@Day", ByDate("2025-06-01", "Day").String())
	assert.True(t, ShiftRef{Date: "2025-06-01"}.IsZero())
}

func TestMeanScore(t *testing.T) {
	assert.Equal(t, 100.0, meanScore(nil))
	assert.Equal(t, 66.7, meanScore([]float64{1, 1, 0}))
	assert.Equal(t, 33.3, meanScore([]float64{1, 0, 0}))
}
