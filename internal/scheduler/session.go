package scheduler

import (
	"fmt"
	"time"

	"quantguard/internal/config"
)

// Window 是当日的一个交易时段，闭区间 [Start, End]，以零点起的偏移表示。
type Window struct {
	Start time.Duration
	End   time.Duration
}

func (w Window) contains(tod time.Duration) bool {
	return tod >= w.Start && tod <= w.End
}

// Gate 判断市场是否开盘。时段之外两个循环都不发起网络请求。
type Gate struct {
	loc      *time.Location
	windows  []Window
	weekdays map[time.Weekday]bool
	nowFn    func() time.Time
}

func NewGate(loc *time.Location, windows []Window, weekdays []time.Weekday) *Gate {
	if loc == nil {
		loc = time.Local
	}
	days := make(map[time.Weekday]bool, len(weekdays))
	for _, d := range weekdays {
		days[d] = true
	}
	return &Gate{loc: loc, windows: append([]Window(nil), windows...), weekdays: days, nowFn: time.Now}
}

// GateFromConfig 根据 schedule 配置构造 Gate。
func GateFromConfig(cfg config.ScheduleConfig) (*Gate, error) {
	windows := make([]Window, 0, len(cfg.Sessions))
	for _, s := range cfg.Sessions {
		start, err := config.ParseClock(s.Start)
		if err != nil {
			return nil, fmt.Errorf("session start: %w", err)
		}
		end, err := config.ParseClock(s.End)
		if err != nil {
			return nil, fmt.Errorf("session end: %w", err)
		}
		windows = append(windows, Window{Start: start, End: end})
	}
	days := make([]time.Weekday, 0, len(cfg.Weekdays))
	for _, d := range cfg.Weekdays {
		days = append(days, time.Weekday(d))
	}
	return NewGate(cfg.Location(), windows, days), nil
}

// WithClock 替换时钟，仅供测试。
func (g *Gate) WithClock(now func() time.Time) *Gate {
	if now != nil {
		g.nowFn = now
	}
	return g
}

func (g *Gate) Location() *time.Location { return g.loc }

func (g *Gate) Open() bool { return g.OpenAt(g.nowFn()) }

func (g *Gate) OpenAt(t time.Time) bool {
	local := t.In(g.loc)
	if !g.weekdays[local.Weekday()] {
		return false
	}
	tod := time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second
	for _, w := range g.windows {
		if w.contains(tod) {
			return true
		}
	}
	return false
}

// Always 是永不关闭的 Gate，供 CLI 单次执行与测试使用。
func Always() *Gate {
	all := []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}
	return NewGate(time.UTC, []Window{{Start: 0, End: 24 * time.Hour}}, all)
}

// cronSpecs converts HH:MM scan times into standard five-field cron specs.
func cronSpecs(times []string) ([]string, error) {
	specs := make([]string, 0, len(times))
	for _, raw := range times {
		d, err := config.ParseClock(raw)
		if err != nil {
			return nil, err
		}
		h := int(d / time.Hour)
		m := int((d % time.Hour) / time.Minute)
		specs = append(specs, fmt.Sprintf("%d %d * * *", m, h))
	}
	return specs, nil
}
