package service

import "time"

// Clock 提供可注入的当前时间与业务时区，便于在测试中固定"今天"
type Clock struct {
	now func() time.Time
	loc *time.Location
}

// NewClock 构造 Clock；now 为空时使用 time.Now，loc 为空时使用本地时区
func NewClock(now func() time.Time, loc *time.Location) Clock {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return Clock{now: now, loc: loc}
}

// Now 返回业务时区下的当前时间
func (c Clock) Now() time.Time {
	if c.now == nil {
		return time.Now()
	}
	if c.loc == nil {
		return c.now()
	}
	return c.now().In(c.loc)
}

// Today 返回业务时区下的今天
func (c Clock) Today() Day {
	return DayOf(c.Now())
}

// Location 返回业务时区
func (c Clock) Location() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

// startOfDay 将 YYYY-MM-DD 转换为该时区当天零点
func startOfDay(date string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dateFormat, date, loc)
}
