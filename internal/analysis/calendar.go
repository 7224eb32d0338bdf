package analysis

import "time"

// losingMonthStreak is the longest run of consecutive calendar months with a
// negative net PnL. Months inside the span with no trades count as flat.
func losingMonthStreak(days []time.Time, pnl []float64) int {
	if len(days) == 0 {
		return 0
	}
	var monthly []float64
	curY, curM := days[0].Year(), days[0].Month()
	var sum float64
	for i, d := range days {
		if d.Year() != curY || d.Month() != curM {
			monthly = append(monthly, sum)
			curY, curM, sum = d.Year(), d.Month(), 0
		}
		sum += pnl[i]
	}
	monthly = append(monthly, sum)

	run, longest := 0, 0
	for _, m := range monthly {
		if m < 0 {
			run++
			continue
		}
		longest = max(longest, run)
		run = 0
	}
	return max(longest, run)
}
