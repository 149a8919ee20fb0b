// cmd/shearwater/main.go
package main

import (
	"shearwater/internal/app"
	"shearwater/internal/appshell"
)

func main() {
	appshell.Main(app.RunContext)
}
