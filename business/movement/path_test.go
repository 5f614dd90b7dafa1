package movement

import (
	"math/rand"
	"testing"

	"github.com/transitsimtools/routesim/business/data/routes"
)

func TestTotalDistance(t *testing.T) {
	tests := []struct {
		name      string
		waypoints []routes.Location
		want      float64
	}{
		{
			name: "empty path",
			want: 0,
		},
		{
			name:      "single waypoint",
			waypoints: []routes.Location{{X: 5, Y: 5}},
			want:      0,
		},
		{
			name: "straight segments",
			waypoints: []routes.Location{
				{X: 0, Y: 0},
				{X: 300, Y: 0},
				{X: 300, Y: 400},
			},
			want: 700,
		},
		{
			name: "diagonal",
			waypoints: []routes.Location{
				{X: 0, Y: 0},
				{X: 3, Y: 4},
			},
			want: 5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TotalDistance(tt.waypoints); got != tt.want {
				t.Errorf("TotalDistance() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUniformPausePolicyRanges(t *testing.T) {
	policy := MakeUniformPausePolicy(rand.New(rand.NewSource(3)), 10, 30, 1.5, 4.5)
	for i := 0; i < 100; i++ {
		if wait := policy.NextWait(); wait < 10 || wait >= 30 {
			t.Fatalf("NextWait() = %v, want within [10,30)", wait)
		}
		if speed := policy.NextSpeed(); speed < 1.5 || speed >= 4.5 {
			t.Fatalf("NextSpeed() = %v, want within [1.5,4.5)", speed)
		}
	}
}

func TestUniformPausePolicyDegenerateRange(t *testing.T) {
	policy := MakeUniformPausePolicy(rand.New(rand.NewSource(3)), 7, 7, 2, 2)
	if wait := policy.NextWait(); wait != 7 {
		t.Errorf("NextWait() = %v, want 7", wait)
	}
	if speed := policy.NextSpeed(); speed != 2 {
		t.Errorf("NextSpeed() = %v, want 2", speed)
	}
}
