// Command morningshift runs interval workouts from the terminal, a voice
// assistant webhook, or a background schedule.
package main

import "github.com/marcus/morningshift/cmd/morningshift/commands"

func main() {
	commands.Execute()
}
