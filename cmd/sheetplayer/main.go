package main

import "github.com/tessro/sheetplayer/internal/cli"

func main() {
	cli.Execute()
}
