package calendar

// IsLeapYear reports whether year is a leap year under the configured rule.
// Calendars without an enabled rule have no leap years.
func (c *Config) IsLeapYear(year int) bool {
	r := c.LeapYear
	if r == nil || !r.Enabled || r.Frequency <= 0 {
		return false
	}
	n := year - r.StartYear
	if n%r.Frequency != 0 {
		return false
	}
	if r.SkipFrequency > 0 && n%r.SkipFrequency == 0 {
		// Skipped unless the exception cycle puts it back.
		return r.SkipExceptionFrequency > 0 && n%r.SkipExceptionFrequency == 0
	}
	return true
}

// DaysInMonth returns the length of a month in the given year, including any
// leap adjustment. The result is never below 1 for a valid month index; an
// index outside the month list yields 0.
func (c *Config) DaysInMonth(month, year int) int {
	if month < 0 || month >= len(c.Months) {
		return 0
	}
	days := c.Months[month].BaseDays
	if c.LeapYear != nil && c.IsLeapYear(year) {
		days += c.LeapYear.Adjustments[month]
	}
	if days < 1 {
		days = 1
	}
	return days
}

// DaysInYear returns the total number of days in a year.
func (c *Config) DaysInYear(year int) int {
	total := 0
	for i := range c.Months {
		total += c.DaysInMonth(i, year)
	}
	return total
}

// ValidDate reports whether d names a day that exists in its year.
func (c *Config) ValidDate(d Date) bool {
	if d.Month < 0 || d.Month >= len(c.Months) || d.Day < 1 {
		return false
	}
	return d.Day <= c.DaysInMonth(d.Month, d.Year)
}

// ordinal returns the 0-based day of the year of d.
func (c *Config) ordinal(d Date) int {
	n := d.Day - 1
	for i := 0; i < d.Month; i++ {
		n += c.DaysInMonth(i, d.Year)
	}
	return n
}

// DateFromDayNumber converts a signed day-number (0 = epoch) to a civil date.
// It walks from the epoch one month boundary at a time, skipping whole years
// when it can, so the cost grows with the distance from the epoch.
func (c *Config) DateFromDayNumber(dayNumber int) Date {
	d := c.Epoch
	if len(c.Months) == 0 {
		return d
	}
	last := len(c.Months) - 1

	if dayNumber >= 0 {
		remaining := dayNumber
		for {
			if d.Month == 0 && d.Day == 1 {
				if n := c.DaysInYear(d.Year); remaining >= n {
					remaining -= n
					d.Year++
					continue
				}
			}
			left := c.DaysInMonth(d.Month, d.Year) - d.Day
			if remaining <= left {
				d.Day += remaining
				return d
			}
			remaining -= left + 1
			d.Day = 1
			d.Month++
			if d.Month > last {
				d.Month = 0
				d.Year++
			}
		}
	}

	remaining := -dayNumber
	for {
		if d.Month == last && d.Day == c.DaysInMonth(last, d.Year) {
			if n := c.DaysInYear(d.Year); remaining >= n {
				remaining -= n
				d.Year--
				d.Day = c.DaysInMonth(last, d.Year)
				continue
			}
		}
		if remaining < d.Day {
			d.Day -= remaining
			return d
		}
		remaining -= d.Day
		d.Month--
		if d.Month < 0 {
			d.Month = last
			d.Year--
		}
		d.Day = c.DaysInMonth(d.Month, d.Year)
	}
}

// DayNumberFromDate returns the signed number of days between the epoch and
// d. It is the inverse of DateFromDayNumber for valid dates.
func (c *Config) DayNumberFromDate(d Date) int {
	e := c.Epoch
	span := 0
	if d.Year >= e.Year {
		for y := e.Year; y < d.Year; y++ {
			span += c.DaysInYear(y)
		}
	} else {
		for y := d.Year; y < e.Year; y++ {
			span -= c.DaysInYear(y)
		}
	}
	return span + c.ordinal(d) - c.ordinal(e)
}

// DayOfWeek returns the weekday index for a day-number. Index 0 is the
// weekday of the epoch.
func (c *Config) DayOfWeek(dayNumber int) int {
	w := c.WeekLength()
	if w == 0 {
		return 0
	}
	return mod(dayNumber, w)
}

// DayOfWeekForDate returns the weekday index of a civil date.
func (c *Config) DayOfWeekForDate(d Date) int {
	return c.DayOfWeek(c.DayNumberFromDate(d))
}

// DayOfYear returns the 0-based day of the year and the year for a
// day-number.
func (c *Config) DayOfYear(dayNumber int) (int, int) {
	d := c.DateFromDayNumber(dayNumber)
	return c.ordinal(d), d.Year
}

// YearProgress returns the fraction of the year elapsed at the start of the
// given 0-based day of the year, in [0, 1).
func (c *Config) YearProgress(dayOfYear, year int) float64 {
	n := c.DaysInYear(year)
	if n == 0 {
		return 0
	}
	return float64(dayOfYear) / float64(n)
}

// NthWeekdayOfMonth returns the day of the month on which the nth occurrence
// of weekday falls. nth counts from 1; Last selects the final occurrence.
// The boolean is false when the month has no such occurrence.
func (c *Config) NthWeekdayOfMonth(nth, weekday, month, year int) (int, bool) {
	length := c.DaysInMonth(month, year)
	w := c.WeekLength()
	if length == 0 || w == 0 || weekday < 0 || weekday >= w {
		return 0, false
	}

	if nth == Last {
		lastWeekday := c.DayOfWeekForDate(Date{Month: month, Day: length, Year: year})
		day := length - mod(lastWeekday-weekday, w)
		if day < 1 {
			return 0, false
		}
		return day, true
	}

	if nth < 1 {
		return 0, false
	}
	first := c.DayOfWeekForDate(Date{Month: month, Day: 1, Year: year})
	day := 1 + mod(weekday-first, w) + (nth-1)*w
	if day > length {
		return 0, false
	}
	return day, true
}
