package main

import (
	"os"

	appLog "opsplan/internal/log"
)

func main() {
	defer appLog.Sync()

	if err := New().Execute(); err != nil {
		appLog.Error("opsplan failed", err)
		appLog.Sync()
		os.Exit(1)
	}
}
