package shell

const (
	Reset   = "\x1b[0m"
	Bold    = "\x1b[1m"
	red     = "\x1b[31m"
	green   = "\x1b[32m"
	yellow  = "\x1b[33m"
	blue    = "\x1b[34m"
	cyan    = "\x1b[36m"
	dimGray = "\x1b[90m"
)

func Red(s string) string    { return red + s + Reset }
func Green(s string) string  { return green + s + Reset }
func Yellow(s string) string { return yellow + s + Reset }
func Blue(s string) string   { return blue + s + Reset }
func Cyan(s string) string   { return cyan + s + Reset }
func Gray(s string) string   { return dimGray + s + Reset }
