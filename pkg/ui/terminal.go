package ui

import "fmt"

// Logo is printed by the CLI banner
const Logo = `
   ┌─┐┬ ┬┌─┐┬┌┐┌┌┐ ┬  ┌─┐┌─┐┬┌─
   │  ├─┤├─┤││││├┴┐│  │ ││  ├┴┐
   └─┘┴ ┴┴ ┴┴┘└┘└─┘┴─┘└─┘└─┘┴ ┴
`

var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// NoColor disables ANSI colors for every helper in this package
func NoColor() {
	plain := func(s string) string { return s }
	Cyan, Yellow, Red, Green, Magenta, Dim = plain, plain, plain, plain, plain, plain
}

func colorize(format string) func(string) string {
	return func(text string) string {
		return fmt.Sprintf(format, text)
	}
}

func PrintLogo() {
	fmt.Print(Cyan(Logo))
}

// PrintError prints msg in red, followed by err if given
func PrintError(msg string, err ...interface{}) {
	if len(err) > 0 {
		fmt.Println(Red(msg + ": " + fmt.Sprintf("%v", err[0])))
		return
	}
	fmt.Println(Red(msg))
}

func PrintSuccess(msg string) {
	fmt.Println(Green(msg))
}

// PrintInfo prints a "label: value" line
func PrintInfo(label, value string) {
	fmt.Printf("%s: %s\n", Cyan(label), Yellow(value))
}

func PrintWarning(msg string) {
	fmt.Println(Yellow(msg))
}
