package main

import "number-stock-alerts/internal/cli"

func main() {
	cli.Execute()
}
