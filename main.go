package main

import "github.com/vibast-solutions/ms-go-mobile-payments/cmd"

func main() {
	cmd.Execute()
}
