// FilePath: cmd/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tm "github.com/buger/goterm"
	"github.com/itsatony/etbridge/internal/config"
	"github.com/itsatony/etbridge/internal/server"
	nuts "github.com/vaudience/go-nuts"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	ClearConsole()
	DrawLogo()
	nuts.InitVersion()
	nuts.L.Infof("[Main] Starting Energy Tracker Bridge v%s", nuts.GetVersion())

	cfg, err := config.Load()
	if err != nil {
		nuts.L.Errorf("[Main] Failed to load configuration: %v", err)
		return exitConfig
	}

	// SIGINT/SIGTERM stop the server; entries are marked unavailable on the way out
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.New(cfg).Start(ctx); err != nil {
		nuts.L.Errorf("[Main] Server error: %v", err)
		return exitRuntime
	}
	return exitOK
}

// ClearConsole clears the console screen.
func ClearConsole() {
	tm.Clear()
	tm.MoveCursor(1, 1)
	tm.Flush()
}

func DrawLogo() {
	fmt.Println()
	lines := []string{
		"    ______________   ____       _     __         ",
		"   / ____/_  __/ /  / __ )_____(_)___/ /___ ____ ",
		"  / __/   / / / /  / __  / ___/ / __  / __ `/ _ \\",
		" / /___  / / /_/  / /_/ / /  / / /_/ / /_/ /  __/",
		"/_____/ /_/ (_)  /_____/_/  /_/\\__,_/\\__, /\\___/ ",
		"                                    /____/       ",
		"..................................................  " + nuts.GetVersion(),
	}

	for _, line := range lines {
		fmt.Println(line)
	}
}
