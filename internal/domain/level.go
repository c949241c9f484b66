package domain

import "math"

// RiskLevel is one rung of the fixed compounding ladder. Balance is the
// floor at which the rung activates, Target the profit goal for the rung,
// Ending the balance at which the next rung takes over, and Risk the margin
// committed per trade while on the rung.
type RiskLevel struct {
	Level   int     `json:"level"`
	Balance float64 `json:"balance"`
	Target  float64 `json:"target"`
	Ending  float64 `json:"ending"`
	Risk    float64 `json:"risk"`
}

// Levels is the full 30-rung ladder, ordered by ascending balance floor.
var Levels = []RiskLevel{
	{1, 20, 6, 26, 4.5},
	{2, 26, 8, 34, 6},
	{3, 34, 10, 44, 8},
	{4, 44, 14, 58, 10},
	{5, 58, 18, 76, 14},
	{6, 76, 22, 98, 18},
	{7, 98, 28, 126, 22},
	{8, 126, 38, 164, 28},
	{9, 164, 48, 212, 38},
	{10, 212, 64, 276, 48},
	{11, 276, 82, 358, 64},
	{12, 358, 108, 466, 82},
	{13, 466, 140, 606, 108},
	{14, 606, 182, 788, 140},
	{15, 788, 236, 1024, 182},
	{16, 1024, 308, 1332, 236},
	{17, 1332, 400, 1732, 308},
	{18, 1732, 520, 2252, 400},
	{19, 2252, 674, 2926, 520},
	{20, 2926, 878, 3804, 674},
	{21, 3804, 1140, 4944, 878},
	{22, 4944, 1482, 6426, 1140},
	{23, 6426, 1928, 8354, 1482},
	{24, 8354, 2506, 10860, 1928},
	{25, 10860, 3256, 14116, 2506},
	{26, 14116, 4234, 18350, 3256},
	{27, 18350, 5504, 23854, 4234},
	{28, 23854, 7156, 31010, 5504},
	{29, 31010, 9302, 40312, 7156},
	{30, 40312, 12092, 52404, 9302},
}

// LevelForBalance returns the highest rung whose floor is at or below the
// balance. Balances beneath the first floor still map to level 1 so a drawn
// down account keeps a defined risk amount. A non-finite balance has no
// level at all and returns nil.
func LevelForBalance(balance float64) *RiskLevel {
	if math.IsNaN(balance) || math.IsInf(balance, 0) {
		return nil
	}
	lvl := &Levels[0]
	for i := range Levels {
		if balance >= Levels[i].Balance {
			lvl = &Levels[i]
		}
	}
	return lvl
}

// NormalizePct accepts equity fractions in either human form ("2" meaning
// 2%) or fractional form ("0.02") and always returns the fraction.
func NormalizePct(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0
	}
	if v > 1 {
		return v / 100
	}
	return v
}
