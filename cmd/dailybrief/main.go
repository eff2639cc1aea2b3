package main

import "dailybrief/cmd"

func main() {
	cmd.Run()
}
