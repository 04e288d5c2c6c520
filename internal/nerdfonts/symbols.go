package nerdfonts

// Alarm and sleep symbols
const (
	Bed        = ""
	Bell       = ""
	AlarmClock = "\U000F0020"
	Moon       = ""
)

// Calendar related symbols
const (
	CalendarCheck = ""
	Clock         = ""
)

// Status symbols
const (
	ExclamationTriangle = ""
)
